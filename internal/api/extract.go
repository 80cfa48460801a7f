package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/githubapi"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// handleExtract handles POST /api/v1/extract. It runs the analysis pipeline
// without the generated overview and returns the assembled code context
// verbatim, for clients that prompt a model themselves.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	resp := &protocol.ExtractResponse{Status: "success"}

	extraction, err := s.extractor.Process(ctx, req.GithubURL, req.Branch)
	if err != nil {
		resp.Status = "error"
		resp.Errors = append(resp.Errors, "extraction failed: "+err.Error())
		s.sendJSON(w, http.StatusBadGateway, resp)
		return
	}
	resp.FileAnalysis = extraction.FileAnalysis
	resp.Dependencies = extraction.Dependencies
	resp.DirectoryStructure = extraction.DirectoryStructure
	resp.Errors = append(resp.Errors, extraction.Errors...)
	resp.Context = protocol.ExtractContext{
		Payload:         extraction.Context,
		TotalChars:      len(extraction.Context),
		EstimatedTokens: len(extraction.Context) / 4,
	}

	github := s.github
	if req.Token != "" {
		github = githubapi.New(req.Token)
	}
	repository, err := github.FetchAll(ctx, req.GithubURL)
	if err != nil {
		resp.Errors = append(resp.Errors, "github metadata: "+err.Error())
	}
	resp.Repository = repository

	if len(resp.Errors) > 0 {
		resp.Status = "partial"
	}
	logging.Info("repository context extracted",
		zap.String("repo", owner+"/"+repo),
		zap.String("status", resp.Status),
		zap.Int("context_chars", len(extraction.Context)))
	s.sendJSON(w, http.StatusOK, resp)
}
