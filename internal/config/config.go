// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all Nexo server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret          string
	AccessTokenExpires int // minutes

	// External APIs
	GeminiAPIKey     string
	GeminiModel      string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	GithubToken      string

	// Analysis
	CacheFile      string
	MaxRepoSize    int64 // zipped, bytes
	MaxPromptChars int

	// Podcast audio storage ("local" or "s3")
	StorageBackend   string
	LocalStoragePath string
	PodcastWorkers   int

	// S3 storage (when StorageBackend is "s3")
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Rate limiting (requests per minute on analysis, 0 = unlimited)
	AnalyzeRequestsPerMin int

	// CORS
	AllowedOrigins string
}

// Load reads configuration from the environment with defaults. A .env file
// in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  envOr("LISTEN_ADDR", ":8000"),
		MetricsAddr: envOr("METRICS_ADDR", ":9090"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "json"),
		DatabaseURL: envOr("DATABASE_URL", ""),

		JWTSecret:          envOr("JWT_SECRET", ""),
		AccessTokenExpires: envInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),

		GeminiAPIKey:     envOr("GEMINI_API_KEY", ""),
		GeminiModel:      envOr("GEMINI_MODEL", "gemini-2.5-flash"),
		ElevenLabsAPIKey: envOr("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoice:  envOr("ELEVENLABS_VOICE_ID", ""),
		GithubToken:      envOr("GITHUB_TOKEN", ""),

		CacheFile:      envOr("ANALYSIS_CACHE_FILE", "data/analysis-cache.json"),
		MaxRepoSize:    envInt64("MAX_REPO_SIZE", 50*1024*1024),
		MaxPromptChars: envInt("MAX_PROMPT_CHARS", 100000),

		StorageBackend:   envOr("STORAGE_BACKEND", "local"),
		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "data/podcasts"),
		PodcastWorkers:   envInt("PODCAST_WORKERS", 2),

		S3Endpoint:  envOr("S3_ENDPOINT", ""),
		S3Bucket:    envOr("S3_BUCKET", "nexo-podcasts"),
		S3AccessKey: envOr("S3_ACCESS_KEY", ""),
		S3SecretKey: envOr("S3_SECRET_KEY", ""),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3UseSSL:    envBool("S3_USE_SSL", true),

		AnalyzeRequestsPerMin: envInt("ANALYZE_REQUESTS_PER_MINUTE", 10),

		AllowedOrigins: envOr("ALLOWED_ORIGINS", "*"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
