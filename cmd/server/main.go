// Nexo Server
//
// Features:
// - GitHub repository analysis with per-user response caching
// - AI-generated overviews, chat and learning resources (Gemini)
// - Podcast narration with background synthesis (ElevenLabs)
// - Saved repositories per user (PostgreSQL)
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/api"
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
	"github.com/nexo-app/nexo/internal/tts"
	"github.com/nexo-app/nexo/pkg/analysiscache"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Nexo Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logging.Info("connecting to PostgreSQL...")
	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logging.Fatal("migration failed", zap.Error(err))
	}

	// Initialize auth
	authHandler := auth.New(st, cfg.JWTSecret, cfg.AccessTokenExpires)

	// Open the analysis cache and drop anything already expired
	cache := analysiscache.Open(cfg.CacheFile, logging.L())
	if removed := cache.SweepExpired(); removed > 0 {
		logging.Info("expired cache entries removed", zap.Int("count", removed))
	}

	// Podcast audio storage
	backend, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer backend.Close()
	logging.Info("storage backend initialized", zap.String("type", backend.Type()))

	// External API clients. Missing keys disable the feature, not the server.
	geminiClient, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxPromptChars)
	if err != nil {
		logging.Fatal("gemini client init failed", zap.Error(err))
	}
	defer geminiClient.Close()
	if !geminiClient.Enabled() {
		logging.Warn("GEMINI_API_KEY not set, overviews and chat disabled")
	}

	ttsClient := tts.New(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoice)
	if !ttsClient.Enabled() {
		logging.Warn("ELEVENLABS_API_KEY not set, podcast synthesis disabled")
	}

	githubClient := githubapi.New(cfg.GithubToken)
	extractor := extract.NewExtractor(cfg.MaxRepoSize)
	learningService := learning.NewService(geminiClient)

	// SSE broadcaster and podcast generation workers
	broadcaster := events.NewBroadcaster()
	jobs := podcast.NewJobs()
	generator := podcast.NewGenerator(jobs, ttsClient, backend, broadcaster, cfg.PodcastWorkers)
	generator.Start(ctx)
	defer generator.Stop()

	rateLimiter := quota.NewRateLimiter()

	// Create API server
	srv := api.NewServer(
		st, authHandler, cache, extractor,
		githubClient, geminiClient, learningService,
		rateLimiter, cfg,
		&api.PodcastDeps{
			Jobs:        jobs,
			Generator:   generator,
			Backend:     backend,
			Broadcaster: broadcaster,
		},
	)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Start periodic metrics update
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.UpdateConnectionMetrics()
			}
		}
	}()

	// Start periodic cleanup (cache TTL sweep + rate limiter buckets)
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := cache.SweepExpired(); removed > 0 {
					logging.Info("expired cache entries removed", zap.Int("count", removed))
				}
				rateLimiter.Cleanup(24 * time.Hour)
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
