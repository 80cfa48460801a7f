package api

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/auth"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/store"
	"github.com/nexo-app/nexo/pkg/protocol"
)

const (
	defaultRepoPageSize = 20
	maxRepoPageSize     = 100
)

// handleSaveRepo handles POST /api/v1/repos/save. Saving the same
// repository twice updates the stored record in place.
func (s *Server) handleSaveRepo(w http.ResponseWriter, r *http.Request) {
	var req protocol.SaveRepoRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.RepoURL == "" || req.RepoName == "" {
		s.sendError(w, http.StatusBadRequest, "repo_url and repo_name are required")
		return
	}
	if req.RepoFullName == "" {
		req.RepoFullName = req.RepoName
	}

	saved, err := s.store.SaveRepo(r.Context(), auth.UserID(r.Context()), &req)
	if err != nil {
		logging.Error("save repo", zap.String("repo", req.RepoURL), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to save repository")
		return
	}

	s.sendJSON(w, http.StatusCreated, saved)
}

// handleListRepos handles GET /api/v1/repos/list with skip/limit paging.
func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", defaultRepoPageSize)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultRepoPageSize
	}
	if limit > maxRepoPageSize {
		limit = maxRepoPageSize
	}

	repos, total, err := s.store.ListRepos(r.Context(), auth.UserID(r.Context()), skip, limit)
	if err != nil {
		logging.Error("list repos", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to list repositories")
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.SavedRepoListResponse{
		Repos: repos,
		Total: total,
	})
}

// handleGetRepo handles GET /api/v1/repos/{id}.
func (s *Server) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	repo, err := s.store.GetRepo(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "repository not found")
		return
	}
	if err != nil {
		logging.Error("get repo", zap.String("id", r.PathValue("id")), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to load repository")
		return
	}
	s.sendJSON(w, http.StatusOK, repo)
}

// handleDeleteRepo handles DELETE /api/v1/repos/{id}.
func (s *Server) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteRepo(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "repository not found")
		return
	}
	if err != nil {
		logging.Error("delete repo", zap.String("id", r.PathValue("id")), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to delete repository")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateRepoPodcast handles PATCH /api/v1/repos/{id}/podcast.
func (s *Server) handleUpdateRepoPodcast(w http.ResponseWriter, r *http.Request) {
	var req protocol.UpdatePodcastRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.PodcastURL == nil && req.PodcastScript == nil {
		s.sendError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	repo, err := s.store.UpdatePodcast(r.Context(), auth.UserID(r.Context()),
		r.PathValue("id"), req.PodcastURL, req.PodcastScript)
	if errors.Is(err, store.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "repository not found")
		return
	}
	if err != nil {
		logging.Error("update repo podcast", zap.String("id", r.PathValue("id")), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to update repository")
		return
	}
	s.sendJSON(w, http.StatusOK, repo)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
