package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/auth"
	"github.com/nexo-app/nexo/internal/githubapi"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// handleAnalyze handles POST /api/v1/analyze/full. Responses are cached per
// user for an hour, keyed by the normalized repository URL.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
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

	userID := auth.UserID(r.Context())
	if data, ok := s.cache.Get(req.GithubURL, userID); ok {
		metrics.RecordCacheLookup(true)
		var cached protocol.AnalyzeResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			cached.Cached = true
			logging.Info("analysis served from cache",
				zap.String("repo", owner+"/"+repo))
			s.sendJSON(w, http.StatusOK, &cached)
			return
		}
		// Unreadable entry: drop it and analyze fresh.
		s.cache.Remove(req.GithubURL)
	}
	metrics.RecordCacheLookup(false)

	start := time.Now()
	resp := s.analyze(r, &req, owner, repo)
	metrics.RecordAnalysis(resp.Status)

	logging.Info("repository analyzed",
		zap.String("repo", owner+"/"+repo),
		zap.String("status", resp.Status),
		zap.Duration("duration", time.Since(start)))

	if resp.Status == "error" {
		s.sendJSON(w, http.StatusBadGateway, resp)
		return
	}

	if data, err := json.Marshal(resp); err == nil {
		s.cache.Put(req.GithubURL, data, userID)
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// analyze runs the full pipeline: archive extraction, GitHub metadata and
// the generated overview. Partial failures degrade the status instead of
// failing the request.
func (s *Server) analyze(r *http.Request, req *protocol.AnalyzeRequest, owner, repo string) *protocol.AnalyzeResponse {
	ctx := r.Context()
	resp := &protocol.AnalyzeResponse{Status: "success"}

	extraction, err := s.extractor.Process(ctx, req.GithubURL, req.Branch)
	if err != nil {
		resp.Status = "error"
		resp.Errors = append(resp.Errors, "extraction failed: "+err.Error())
		return resp
	}
	resp.FileAnalysis = extraction.FileAnalysis
	resp.Dependencies = extraction.Dependencies
	resp.DirectoryStructure = extraction.DirectoryStructure
	resp.Errors = append(resp.Errors, extraction.Errors...)

	// A caller-supplied token overrides the server's client, for private
	// repositories and higher rate limits.
	github := s.github
	if req.Token != "" {
		github = githubapi.New(req.Token)
	}
	repository, err := github.FetchAll(ctx, req.GithubURL)
	if err != nil {
		resp.Errors = append(resp.Errors, "github metadata: "+err.Error())
	}
	resp.Repository = repository

	resp.Context = &protocol.ContextInfo{
		TotalChars:      len(extraction.Context),
		EstimatedTokens: len(extraction.Context) / 4,
		FilesInContext:  extraction.FilesInContext,
		TotalAnalyzed:   extraction.TotalAnalyzed,
		IncludedFiles:   extraction.IncludedFiles,
	}

	if s.gemini.Enabled() {
		overview := s.gemini.Overview(ctx, owner+"/"+repo, extraction.Context)
		if overview.Err != nil {
			resp.OverviewError = overview.Err.Error()
		} else {
			resp.Overview = overview.Content
			resp.OverviewUsage = overview.Usage
		}
	}

	if len(resp.Errors) > 0 || resp.OverviewError != "" {
		resp.Status = "partial"
	}
	return resp
}
