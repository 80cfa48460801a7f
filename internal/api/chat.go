package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/nexo-app/nexo/pkg/protocol"
)

// handleChat handles POST /api/v1/chat/message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.sendError(w, http.StatusBadRequest, "message is required")
		return
	}
	if !s.gemini.Enabled() {
		s.sendError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	result := s.gemini.Chat(r.Context(), req.Message, formatRepoContext(req.RepoContext))
	if result.Err != nil {
		s.sendError(w, http.StatusBadGateway, "chat failed: "+result.Err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.ChatResponse{Message: result.Content})
}

// formatRepoContext flattens the client's repository context into prompt
// text. Scalar fields become "key: value" lines in a stable order; nested
// structures are inlined as JSON.
func formatRepoContext(repoContext map[string]any) string {
	if len(repoContext) == 0 {
		return ""
	}

	keys := make([]string, 0, len(repoContext))
	for key := range repoContext {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		switch v := repoContext[key].(type) {
		case string:
			if v != "" {
				fmt.Fprintf(&b, "%s: %s\n", key, v)
			}
		case float64, bool:
			fmt.Fprintf(&b, "%s: %v\n", key, v)
		default:
			data, err := json.Marshal(v)
			if err != nil || len(data) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", key, data)
		}
	}
	return b.String()
}
