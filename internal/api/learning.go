package api

import (
	"net/http"

	"github.com/nexo-app/nexo/pkg/protocol"
)

// handleLearning handles POST /api/v1/learning-resources.
func (s *Server) handleLearning(w http.ResponseWriter, r *http.Request) {
	var req protocol.LearningRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Technologies) == 0 {
		s.sendError(w, http.StatusBadRequest, "technologies is required")
		return
	}

	resp := s.learning.Generate(r.Context(), req.Technologies, req.RepoContext)
	s.sendJSON(w, http.StatusOK, resp)
}
