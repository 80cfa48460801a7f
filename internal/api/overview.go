package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/githubapi"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// handleOverview handles POST /api/v1/overview. It extracts the repository
// and generates only the overview, for clients that already hold the rest
// of the analysis.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	var req protocol.AnalyzeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.GithubURL == "" {
		s.sendError(w, http.StatusBadRequest, "github_url is required")
		return
	}
	owner, repo, err := githubapi.ParseRepoURL(req.GithubURL)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.gemini.Enabled() {
		s.sendError(w, http.StatusServiceUnavailable, "overview generation is not configured")
		return
	}

	ctx := r.Context()
	repoName := owner + "/" + repo

	extraction, err := s.extractor.Process(ctx, req.GithubURL, req.Branch)
	if err != nil {
		s.sendJSON(w, http.StatusBadGateway, protocol.OverviewResponse{
			Status:         "error",
			RepositoryName: repoName,
			Error:          "extraction failed: " + err.Error(),
		})
		return
	}

	stats := &protocol.ContextStats{
		FilesAnalyzed:   extraction.FilesInContext,
		TotalChars:      len(extraction.Context),
		EstimatedTokens: len(extraction.Context) / 4,
	}

	overview := s.gemini.Overview(ctx, repoName, extraction.Context)
	if overview.Err != nil {
		s.sendJSON(w, http.StatusBadGateway, protocol.OverviewResponse{
			Status:         "error",
			RepositoryName: repoName,
			Error:          overview.Err.Error(),
			ContextStats:   stats,
		})
		return
	}

	logging.Info("overview generated",
		zap.String("repo", repoName),
		zap.Int("chars", len(overview.Content)))
	s.sendJSON(w, http.StatusOK, protocol.OverviewResponse{
		Status:         "success",
		RepositoryName: repoName,
		Overview:       overview.Content,
		Usage:          overview.Usage,
		ContextStats:   stats,
	})
}
