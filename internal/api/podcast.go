package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/auth"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/podcast"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// handlePodcastGenerate handles POST /api/v1/podcast/generate/general.
// Generation is synchronous: the response carries the audio URL once
// synthesis and storage have finished.
func (s *Server) handlePodcastGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePodcastRequest(w, r)
	if !ok {
		return
	}

	key, script, err := s.generator.GenerateNow(r.Context(), req.RepoAnalysis)
	if err != nil {
		logging.Warn("podcast generation failed",
			zap.String("repo", req.RepositoryURL), zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "podcast generation failed: "+err.Error())
		return
	}

	resp := protocol.PodcastResponse{
		Success:  true,
		Message:  "podcast generated",
		AudioURL: "/api/v1/podcast/audio/" + key,
	}
	if req.IncludeScript {
		resp.Script = script
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handlePodcastGenerateAsync handles POST /api/v1/podcast/generate/async/general.
// The job is queued and progress is reported over SSE and the status endpoint.
func (s *Server) handlePodcastGenerateAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePodcastRequest(w, r)
	if !ok {
		return
	}

	job, err := s.generator.Enqueue(auth.UserID(r.Context()), req.RepoAnalysis)
	if errors.Is(err, podcast.ErrQueueFull) {
		s.sendError(w, http.StatusServiceUnavailable, "generation queue is full, try again later")
		return
	}
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.sendJSON(w, http.StatusAccepted, protocol.PodcastJobResponse{
		PodcastID: job.ID,
		Status:    job.Status,
		StatusURL: "/api/v1/podcast/status/" + job.ID,
	})
}

// handlePodcastGenerateSpecific handles POST /api/v1/podcast/generate/specific.
func (s *Server) handlePodcastGenerateSpecific(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSpecificPodcastRequest(w, r)
	if !ok {
		return
	}

	key, script, err := s.generator.GenerateSpecificNow(r.Context(), req.Question, req.Context, req.AIResponse)
	if err != nil {
		logging.Warn("podcast generation failed",
			zap.String("repo", req.RepositoryURL), zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "podcast generation failed: "+err.Error())
		return
	}

	resp := protocol.PodcastResponse{
		Success:  true,
		Message:  "podcast generated",
		AudioURL: "/api/v1/podcast/audio/" + key,
	}
	if req.IncludeScript {
		resp.Script = script
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handlePodcastGenerateAsyncSpecific handles POST /api/v1/podcast/generate/async/specific.
func (s *Server) handlePodcastGenerateAsyncSpecific(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSpecificPodcastRequest(w, r)
	if !ok {
		return
	}

	job, err := s.generator.EnqueueSpecific(auth.UserID(r.Context()), req.Question, req.Context, req.AIResponse)
	if errors.Is(err, podcast.ErrQueueFull) {
		s.sendError(w, http.StatusServiceUnavailable, "generation queue is full, try again later")
		return
	}
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.sendJSON(w, http.StatusAccepted, protocol.PodcastJobResponse{
		PodcastID: job.ID,
		Status:    job.Status,
		StatusURL: "/api/v1/podcast/status/" + job.ID,
	})
}

// handlePodcastStatus handles GET /api/v1/podcast/status/{id}.
func (s *Server) handlePodcastStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "podcast not found")
		return
	}
	s.sendJSON(w, http.StatusOK, job.WireStatus())
}

// handlePodcastAudio handles GET /api/v1/podcast/audio/{id}. The id is
// either a job id or, for synchronously generated episodes, the audio key
// itself.
func (s *Server) handlePodcastAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var key string
	switch {
	case isAudioKey(id):
		key = id
	default:
		job, ok := s.jobs.Get(id)
		if !ok || job.Status != podcast.StatusCompleted {
			s.sendError(w, http.StatusNotFound, "audio not found")
			return
		}
		key = job.AudioKey()
	}

	reader, size, err := s.backend.GetObject(r.Context(), key, 0, 0)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "audio not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, reader); err != nil {
		logging.Warn("audio transfer error", zap.String("key", key), zap.Error(err))
	}
}

// isAudioKey recognizes the storage keys handed out by the synchronous
// generation endpoints.
func isAudioKey(id string) bool {
	if !strings.HasSuffix(id, ".mp3") {
		return false
	}
	return strings.HasPrefix(id, podcast.KindGeneral+"_") ||
		strings.HasPrefix(id, podcast.KindSpecific+"_")
}

func (s *Server) decodePodcastRequest(w http.ResponseWriter, r *http.Request) (*protocol.GeneralPodcastRequest, bool) {
	var req protocol.GeneralPodcastRequest
	if !s.decodeJSON(w, r, &req) {
		return nil, false
	}
	if req.RepoAnalysis == nil {
		s.sendError(w, http.StatusBadRequest, "repo_analysis is required")
		return nil, false
	}
	if req.RepoAnalysis.Name == "" {
		req.RepoAnalysis.Name = repoNameFromURL(req.RepositoryURL)
	}
	return &req, true
}

// decodeSpecificPodcastRequest validates a single-question request and
// resolves the answer to narrate: the caller's pre-generated one when
// provided, a fresh generation otherwise.
func (s *Server) decodeSpecificPodcastRequest(w http.ResponseWriter, r *http.Request) (*protocol.SpecificPodcastRequest, bool) {
	var req protocol.SpecificPodcastRequest
	if !s.decodeJSON(w, r, &req) {
		return nil, false
	}
	if strings.TrimSpace(req.Question) == "" {
		s.sendError(w, http.StatusBadRequest, "question is required")
		return nil, false
	}
	if req.AIResponse == "" {
		if !s.gemini.Enabled() {
			s.sendError(w, http.StatusBadRequest, "ai_response is required when answer generation is unavailable")
			return nil, false
		}
		answer := s.gemini.Chat(r.Context(), req.Question, req.Context)
		if answer.Err != nil {
			s.sendError(w, http.StatusBadGateway, "answer generation failed: "+answer.Err.Error())
			return nil, false
		}
		req.AIResponse = answer.Content
	}
	return &req, true
}

func repoNameFromURL(repoURL string) string {
	trimmed := strings.TrimSuffix(repoURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
