// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nexo-app/nexo/internal/auth"
	"github.com/nexo-app/nexo/internal/config"
	"github.com/nexo-app/nexo/internal/events"
	"github.com/nexo-app/nexo/internal/extract"
	"github.com/nexo-app/nexo/internal/gemini"
	"github.com/nexo-app/nexo/internal/githubapi"
	"github.com/nexo-app/nexo/internal/learning"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/internal/podcast"
	"github.com/nexo-app/nexo/internal/quota"
	"github.com/nexo-app/nexo/internal/storage"
	"github.com/nexo-app/nexo/internal/store"
	"github.com/nexo-app/nexo/pkg/analysiscache"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// Server is the HTTP server.
type Server struct {
	store     *store.Store
	auth      *auth.Auth
	cache     *analysiscache.Cache
	extractor *extract.Extractor
	github    *githubapi.Client
	gemini    *gemini.Client
	learning  *learning.Service
	config    *config.Config

	// Podcasts
	jobs      *podcast.Jobs
	generator *podcast.Generator
	backend   storage.Backend

	// SSE
	broadcaster *events.Broadcaster

	// Rate limiting
	rateLimiter *quota.RateLimiter
}

// PodcastDeps bundles the podcast subsystem dependencies.
type PodcastDeps struct {
	Jobs        *podcast.Jobs
	Generator   *podcast.Generator
	Backend     storage.Backend
	Broadcaster *events.Broadcaster
}

// NewServer creates a new server.
func NewServer(
	st *store.Store,
	authHandler *auth.Auth,
	cache *analysiscache.Cache,
	extractor *extract.Extractor,
	githubClient *githubapi.Client,
	geminiClient *gemini.Client,
	learningService *learning.Service,
	rateLimiter *quota.RateLimiter,
	cfg *config.Config,
	podcastDeps *PodcastDeps,
) *Server {
	s := &Server{
		store:       st,
		auth:        authHandler,
		cache:       cache,
		extractor:   extractor,
		github:      githubClient,
		gemini:      geminiClient,
		learning:    learningService,
		rateLimiter: rateLimiter,
		config:      cfg,
	}
	if podcastDeps != nil {
		s.jobs = podcastDeps.Jobs
		s.generator = podcastDeps.Generator
		s.backend = podcastDeps.Backend
		s.broadcaster = podcastDeps.Broadcaster
	}
	return s
}

// Handler returns the HTTP handler with auth, CORS, logging and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/register", s.auth.HandleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.auth.HandleLogin)

	// Analysis endpoints. Anonymous access is allowed; identity, when
	// present, scopes the cache and the rate limit bucket.
	limited := quota.Middleware(s.rateLimiter, s.config.AnalyzeRequestsPerMin, callerKey)
	optional := func(h http.HandlerFunc) http.Handler {
		return s.auth.OptionalMiddleware(limited(h))
	}
	mux.Handle("POST /api/v1/analyze/full", optional(s.handleAnalyze))
	mux.Handle("POST /api/v1/extract", optional(s.handleExtract))
	mux.Handle("POST /api/v1/overview", optional(s.handleOverview))
	mux.Handle("POST /api/v1/chat/message", optional(s.handleChat))
	mux.Handle("POST /api/v1/learning-resources", optional(s.handleLearning))
	mux.Handle("POST /api/v1/podcast/generate/general", optional(s.handlePodcastGenerate))
	mux.Handle("POST /api/v1/podcast/generate/async/general", optional(s.handlePodcastGenerateAsync))
	mux.Handle("POST /api/v1/podcast/generate/specific", optional(s.handlePodcastGenerateSpecific))
	mux.Handle("POST /api/v1/podcast/generate/async/specific", optional(s.handlePodcastGenerateAsyncSpecific))

	// Podcast status and audio are cheap reads, not rate limited.
	mux.Handle("GET /api/v1/podcast/status/{id}", s.auth.OptionalMiddleware(http.HandlerFunc(s.handlePodcastStatus)))
	mux.Handle("GET /api/v1/podcast/audio/{id}", s.auth.OptionalMiddleware(http.HandlerFunc(s.handlePodcastAudio)))

	// Protected endpoints
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/auth/me", s.auth.HandleMe)

	// Saved repositories
	protected.HandleFunc("POST /api/v1/repos/save", s.handleSaveRepo)
	protected.HandleFunc("GET /api/v1/repos/list", s.handleListRepos)
	protected.HandleFunc("GET /api/v1/repos/{id}", s.handleGetRepo)
	protected.HandleFunc("DELETE /api/v1/repos/{id}", s.handleDeleteRepo)
	protected.HandleFunc("PATCH /api/v1/repos/{id}/podcast", s.handleUpdateRepoPodcast)

	// SSE endpoint
	protected.HandleFunc("GET /api/v1/podcast/events", s.handleEvents)

	// Cache admin
	protected.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	protected.HandleFunc("DELETE /api/v1/cache", s.handleCacheClear)

	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	// Apply CORS, logging and metrics middleware
	return metrics.Middleware(logging.Middleware(s.cors(mux)))
}

// callerKey buckets rate limiting by user id when authenticated, falling
// back to the client address.
func callerKey(r *http.Request) string {
	if userID := auth.UserID(r.Context()); userID != "" {
		return userID
	}
	return quota.ClientKey(r)
}

// cors handles cross-origin requests from the web frontend.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := strings.Split(s.config.AllowedOrigins, ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin, allowed) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe(auth.UserID(r.Context()))
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// ─── Cache admin ────────────────────────────────────────────────────────────

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.cache.ClearForUser(auth.UserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) sendJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.sendJSON(w, code, protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
