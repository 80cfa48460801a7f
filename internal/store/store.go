// Package store provides the PostgreSQL persistence layer for users and
// saved repositories.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/protocol"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by
	// the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when registering with an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email      TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL DEFAULT '',
    password   TEXT NOT NULL,
    is_active  BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS saved_repos (
    id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    repo_url        TEXT NOT NULL,
    repo_name       TEXT NOT NULL,
    repo_full_name  TEXT NOT NULL,
    description     TEXT,
    stars           INTEGER NOT NULL DEFAULT 0,
    forks           INTEGER NOT NULL DEFAULT 0,
    language        TEXT,
    overview        TEXT,
    podcast_url     TEXT,
    podcast_script  TEXT,
    repository_info JSONB,
    file_analysis   JSONB,
    dependencies    JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, repo_url)
);

CREATE INDEX IF NOT EXISTS idx_saved_repos_user_created
    ON saved_repos (user_id, created_at DESC);
`

// Store is a PostgreSQL-backed store.
type Store struct {
	db *sql.DB
}

// User is a user account row.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// New opens a connection pool against databaseURL.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	logging.Info("ensuring database schema")
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpdateConnectionMetrics publishes the pool's open connection count.
func (s *Store) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(s.db.Stats().OpenConnections)
}

// ─── Users ──────────────────────────────────────────────────────────────────

// CreateUser inserts a new user with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_user", time.Since(start)) }()

	u := &User{Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, password) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		email, name, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	logging.Info("user created", zap.String("email", email))
	return u, nil
}

// GetUserByEmail returns a user by email, or ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password, is_active, created_at
		 FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, name, password, is_active, created_at
		 FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ─── Saved repositories ─────────────────────────────────────────────────────

// SaveRepo inserts or updates the saved repository for (userID, repo_url).
// An update keeps the original created_at.
func (s *Store) SaveRepo(ctx context.Context, userID string, req *protocol.SaveRepoRequest) (*protocol.SavedRepoResponse, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_repo", time.Since(start)) }()

	var out protocol.SavedRepoResponse
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO saved_repos
		    (user_id, repo_url, repo_name, repo_full_name, description, stars, forks,
		     language, overview, podcast_url, podcast_script,
		     repository_info, file_analysis, dependencies)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (user_id, repo_url) DO UPDATE SET
		    repo_name       = EXCLUDED.repo_name,
		    repo_full_name  = EXCLUDED.repo_full_name,
		    description     = EXCLUDED.description,
		    stars           = EXCLUDED.stars,
		    forks           = EXCLUDED.forks,
		    language        = EXCLUDED.language,
		    overview        = EXCLUDED.overview,
		    podcast_url     = EXCLUDED.podcast_url,
		    podcast_script  = EXCLUDED.podcast_script,
		    repository_info = EXCLUDED.repository_info,
		    file_analysis   = EXCLUDED.file_analysis,
		    dependencies    = EXCLUDED.dependencies,
		    updated_at      = now()
		 RETURNING id, created_at, updated_at`,
		userID, req.RepoURL, req.RepoName, req.RepoFullName,
		nullStr(req.Description), req.Stars, req.Forks, nullStr(req.Language),
		nullStr(req.Overview), nullStr(req.PodcastURL), nullStr(req.PodcastScript),
		nullJSON(req.RepositoryInfo), nullJSON(req.FileAnalysis), nullJSON(req.Dependencies)).
		Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert saved repo: %w", err)
	}

	out.RepoURL = req.RepoURL
	out.RepoName = req.RepoName
	out.RepoFullName = req.RepoFullName
	out.Description = req.Description
	out.Stars = req.Stars
	out.Forks = req.Forks
	out.Language = req.Language
	out.Overview = req.Overview
	out.PodcastURL = req.PodcastURL
	out.PodcastScript = req.PodcastScript
	out.RepositoryInfo = req.RepositoryInfo
	out.FileAnalysis = req.FileAnalysis
	out.Dependencies = req.Dependencies
	return &out, nil
}

// ListRepos returns a page of the user's saved repositories, newest first,
// together with the user's total count.
func (s *Store) ListRepos(ctx context.Context, userID string, skip, limit int) ([]protocol.SavedRepoSummary, int, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_repos", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_url, repo_name, repo_full_name,
		        COALESCE(description, ''), stars, forks, COALESCE(language, ''),
		        COALESCE(overview, '') <> '', COALESCE(podcast_url, '') <> '',
		        created_at
		 FROM saved_repos WHERE user_id = $1
		 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		userID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query saved repos: %w", err)
	}
	defer rows.Close()

	repos := []protocol.SavedRepoSummary{}
	for rows.Next() {
		var r protocol.SavedRepoSummary
		if err := rows.Scan(&r.ID, &r.RepoURL, &r.RepoName, &r.RepoFullName,
			&r.Description, &r.Stars, &r.Forks, &r.Language,
			&r.HasOverview, &r.HasPodcast, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan saved repo: %w", err)
		}
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM saved_repos WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count saved repos: %w", err)
	}

	return repos, total, nil
}

// GetRepo returns the full saved repository if it belongs to userID.
func (s *Store) GetRepo(ctx context.Context, userID, repoID string) (*protocol.SavedRepoResponse, error) {
	var out protocol.SavedRepoResponse
	var description, language, overview, podcastURL, podcastScript sql.NullString
	var repositoryInfo, fileAnalysis, dependencies []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT id, repo_url, repo_name, repo_full_name, description, stars, forks,
		        language, overview, podcast_url, podcast_script,
		        repository_info, file_analysis, dependencies, created_at, updated_at
		 FROM saved_repos WHERE id = $1 AND user_id = $2`,
		repoID, userID).
		Scan(&out.ID, &out.RepoURL, &out.RepoName, &out.RepoFullName,
			&description, &out.Stars, &out.Forks, &language,
			&overview, &podcastURL, &podcastScript,
			&repositoryInfo, &fileAnalysis, &dependencies,
			&out.CreatedAt, &out.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query saved repo: %w", err)
	}

	out.Description = description.String
	out.Language = language.String
	out.Overview = overview.String
	out.PodcastURL = podcastURL.String
	out.PodcastScript = podcastScript.String
	out.RepositoryInfo = repositoryInfo
	out.FileAnalysis = fileAnalysis
	out.Dependencies = dependencies
	return &out, nil
}

// DeleteRepo removes a saved repository owned by userID.
func (s *Store) DeleteRepo(ctx context.Context, userID, repoID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_repos WHERE id = $1 AND user_id = $2`, repoID, userID)
	if err != nil {
		return fmt.Errorf("delete saved repo: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePodcast patches the podcast fields of a saved repository. Nil fields
// are left unchanged.
func (s *Store) UpdatePodcast(ctx context.Context, userID, repoID string, podcastURL, podcastScript *string) (*protocol.SavedRepoResponse, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE saved_repos SET
		    podcast_url    = COALESCE($3, podcast_url),
		    podcast_script = COALESCE($4, podcast_script),
		    updated_at     = now()
		 WHERE id = $1 AND user_id = $2`,
		repoID, userID, podcastURL, podcastScript)
	if err != nil {
		return nil, fmt.Errorf("update podcast: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrNotFound
	}
	return s.GetRepo(ctx, userID, repoID)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
