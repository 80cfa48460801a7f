// Package protocol defines the API request/response types.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/nexo-app/nexo/pkg/repotree"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// ─── Analysis Types ─────────────────────────────────────────────────────────

// AnalyzeRequest is the body for POST /api/v1/analyze/full and the other
// repository-addressed endpoints (extract, overview).
type AnalyzeRequest struct {
	GithubURL string `json:"github_url"`
	Branch    string `json:"branch"`
	Token     string `json:"token,omitempty"` // for private repositories
}

// RepoMetadata is the repository's GitHub metadata.
type RepoMetadata struct {
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Description   string   `json:"description"`
	Stars         int      `json:"stars"`
	Forks         int      `json:"forks"`
	OpenIssues    int      `json:"open_issues"`
	Watchers      int      `json:"watchers"`
	DefaultBranch string   `json:"default_branch"`
	Language      string   `json:"language"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	SizeKB        int      `json:"size_kb"`
	IsPrivate     bool     `json:"is_private"`
	Topics        []string `json:"topics"`
}

// Contributor is a single repository contributor.
type Contributor struct {
	Username      string `json:"username"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
	ProfileURL    string `json:"profile_url"`
}

// BranchInfo describes one branch.
type BranchInfo struct {
	Name        string `json:"name"`
	IsProtected bool   `json:"is_protected"`
}

// BranchSummary groups the branch list with its count.
type BranchSummary struct {
	Count int          `json:"count"`
	List  []BranchInfo `json:"list"`
}

// RepositoryInfo bundles everything fetched from the GitHub API.
// Info is nil when the metadata fetch failed; the lists degrade to empty.
type RepositoryInfo struct {
	Info         *RepoMetadata  `json:"info"`
	Contributors []Contributor  `json:"contributors"`
	Branches     BranchSummary  `json:"branches"`
	Languages    map[string]int `json:"languages"`
}

// FileAnalysisSummary is the headline numbers of a file analysis.
type FileAnalysisSummary struct {
	TotalFiles     int    `json:"total_files"`
	TotalLines     int    `json:"total_lines"`
	TotalSize      string `json:"total_size"`
	FilesInContext int    `json:"files_in_context"`
	TotalAnalyzed  int    `json:"total_analyzed"`
}

// CategoryStats is per-category file statistics.
type CategoryStats struct {
	Processed  int            `json:"processed"`
	Ignored    int            `json:"ignored"`
	TotalLines int            `json:"total_lines"`
	SizeBytes  int64          `json:"size_bytes"`
	Extensions map[string]int `json:"extensions"`
}

// FileAnalysis is the file-level portion of an analysis response.
type FileAnalysis struct {
	Summary       FileAnalysisSummary      `json:"summary"`
	ByCategory    map[string]CategoryStats `json:"by_category"`
	TopExtensions map[string]int           `json:"top_extensions"`
}

// DependencyInfo lists packages detected in one dependency manifest.
type DependencyInfo struct {
	Manager         string   `json:"manager"`
	File            string   `json:"file"`
	Count           int      `json:"count"`
	Dependencies    []string `json:"dependencies"`
	DevDependencies []string `json:"dev_dependencies"`
}

// ContextInfo describes the code context assembled for the LLM.
type ContextInfo struct {
	TotalChars      int      `json:"total_chars"`
	EstimatedTokens int      `json:"estimated_tokens"`
	FilesInContext  int      `json:"files_in_context"`
	TotalAnalyzed   int      `json:"total_analyzed"`
	IncludedFiles   []string `json:"included_files,omitempty"`
}

// TokenUsage reports LLM token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AnalyzeResponse is returned by POST /api/v1/analyze/full.
// Status is "success", "partial" (some data with errors) or "error".
type AnalyzeResponse struct {
	Status             string             `json:"status"`
	Repository         *RepositoryInfo    `json:"repository"`
	FileAnalysis       *FileAnalysis      `json:"file_analysis"`
	Dependencies       []DependencyInfo   `json:"dependencies"`
	DirectoryStructure repotree.Structure `json:"directory_structure"`
	Overview           string             `json:"overview,omitempty"`
	OverviewUsage      *TokenUsage        `json:"overview_usage,omitempty"`
	OverviewError      string             `json:"overview_error,omitempty"`
	Context            *ContextInfo       `json:"context,omitempty"`
	Errors             []string           `json:"errors,omitempty"`
	Cached             bool               `json:"cached"`
}

// ExtractContext carries the assembled code context verbatim, with its size
// measures, for clients that run their own prompting.
type ExtractContext struct {
	Payload         string `json:"payload"`
	TotalChars      int    `json:"total_chars"`
	EstimatedTokens int    `json:"estimated_tokens"`
}

// ExtractResponse is returned by POST /api/v1/extract. It is the analysis
// response without the generated overview, plus the raw context payload.
type ExtractResponse struct {
	Status             string             `json:"status"`
	Repository         *RepositoryInfo    `json:"repository"`
	FileAnalysis       *FileAnalysis      `json:"file_analysis"`
	Dependencies       []DependencyInfo   `json:"dependencies"`
	DirectoryStructure repotree.Structure `json:"directory_structure"`
	Context            ExtractContext     `json:"context"`
	Errors             []string           `json:"errors,omitempty"`
}

// ContextStats summarizes the context fed to the overview prompt.
type ContextStats struct {
	FilesAnalyzed   int `json:"files_analyzed"`
	TotalChars      int `json:"total_chars"`
	EstimatedTokens int `json:"estimated_tokens"`
}

// OverviewResponse is returned by POST /api/v1/overview.
type OverviewResponse struct {
	Status         string        `json:"status"`
	RepositoryName string        `json:"repository_name"`
	Overview       string        `json:"overview,omitempty"`
	Error          string        `json:"error,omitempty"`
	Usage          *TokenUsage   `json:"usage,omitempty"`
	ContextStats   *ContextStats `json:"context_stats,omitempty"`
}

// ─── Chat Types ─────────────────────────────────────────────────────────────

// ChatRequest is the body for POST /api/v1/chat/message. RepoContext is the
// client's view of the analyzed repository, passed through to the prompt.
type ChatRequest struct {
	Message     string         `json:"message"`
	RepoContext map[string]any `json:"repoContext"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Message string `json:"message"`
}

// ─── Auth Types ─────────────────────────────────────────────────────────────

// RegisterRequest is the body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned on successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserResponse describes the authenticated user.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Podcast Types ──────────────────────────────────────────────────────────

// RepositoryAnalysis is the analysis summary a podcast script is built from.
type RepositoryAnalysis struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	PrimaryLanguage string   `json:"primary_language,omitempty"`
	Technologies    []string `json:"technologies,omitempty"`
	Architecture    string   `json:"architecture,omitempty"`
	DataFlow        string   `json:"data_flow,omitempty"`
	KeyFeatures     []string `json:"key_features,omitempty"`
	FileStructure   string   `json:"file_structure,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
}

// GeneralPodcastRequest is the body for the general podcast endpoints.
type GeneralPodcastRequest struct {
	RepositoryURL string              `json:"repository_url"`
	RepoAnalysis  *RepositoryAnalysis `json:"repo_analysis,omitempty"`
	IncludeScript bool                `json:"include_script,omitempty"`
}

// SpecificPodcastRequest is the body for the single-question podcast
// endpoints. AIResponse may carry a pre-generated answer; when absent the
// answer is generated from Question and Context before narration.
type SpecificPodcastRequest struct {
	RepositoryURL string `json:"repository_url"`
	Question      string `json:"question"`
	Context       string `json:"context,omitempty"`
	AIResponse    string `json:"ai_response,omitempty"`
	IncludeScript bool   `json:"include_script,omitempty"`
}

// PodcastResponse is returned by the synchronous podcast endpoints.
type PodcastResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	AudioURL string `json:"audio_url,omitempty"`
	Script   string `json:"script,omitempty"`
}

// PodcastJobResponse is returned when an async generation is accepted.
type PodcastJobResponse struct {
	PodcastID string `json:"podcast_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// PodcastStatus reports the progress of an async generation job.
type PodcastStatus struct {
	PodcastID string `json:"podcast_id"`
	Status    string `json:"status"` // pending, processing, completed, failed
	Progress  int    `json:"progress"`
	AudioURL  string `json:"audio_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ─── Saved Repository Types ─────────────────────────────────────────────────

// SaveRepoRequest is the body for POST /api/v1/repos/save. The three raw
// payload fields carry the analysis response sections unmodified.
type SaveRepoRequest struct {
	RepoURL        string          `json:"repo_url"`
	RepoName       string          `json:"repo_name"`
	RepoFullName   string          `json:"repo_full_name"`
	Description    string          `json:"description,omitempty"`
	Stars          int             `json:"stars"`
	Forks          int             `json:"forks"`
	Language       string          `json:"language,omitempty"`
	Overview       string          `json:"overview,omitempty"`
	PodcastURL     string          `json:"podcast_url,omitempty"`
	PodcastScript  string          `json:"podcast_script,omitempty"`
	RepositoryInfo json.RawMessage `json:"repository_info,omitempty"`
	FileAnalysis   json.RawMessage `json:"file_analysis,omitempty"`
	Dependencies   json.RawMessage `json:"dependencies,omitempty"`
}

// SavedRepoResponse is the full stored record of a saved repository.
type SavedRepoResponse struct {
	ID             string          `json:"id"`
	RepoURL        string          `json:"repo_url"`
	RepoName       string          `json:"repo_name"`
	RepoFullName   string          `json:"repo_full_name"`
	Description    string          `json:"description,omitempty"`
	Stars          int             `json:"stars"`
	Forks          int             `json:"forks"`
	Language       string          `json:"language,omitempty"`
	Overview       string          `json:"overview,omitempty"`
	PodcastURL     string          `json:"podcast_url,omitempty"`
	PodcastScript  string          `json:"podcast_script,omitempty"`
	RepositoryInfo json.RawMessage `json:"repository_info,omitempty"`
	FileAnalysis   json.RawMessage `json:"file_analysis,omitempty"`
	Dependencies   json.RawMessage `json:"dependencies,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SavedRepoSummary is the list view of a saved repository.
type SavedRepoSummary struct {
	ID           string    `json:"id"`
	RepoURL      string    `json:"repo_url"`
	RepoName     string    `json:"repo_name"`
	RepoFullName string    `json:"repo_full_name"`
	Description  string    `json:"description,omitempty"`
	Stars        int       `json:"stars"`
	Forks        int       `json:"forks"`
	Language     string    `json:"language,omitempty"`
	HasOverview  bool      `json:"has_overview"`
	HasPodcast   bool      `json:"has_podcast"`
	CreatedAt    time.Time `json:"created_at"`
}

// SavedRepoListResponse is returned by GET /api/v1/repos/list.
type SavedRepoListResponse struct {
	Repos []SavedRepoSummary `json:"repos"`
	Total int                `json:"total"`
}

// UpdatePodcastRequest is the body for PATCH /api/v1/repos/{id}/podcast.
// Nil fields are left unchanged.
type UpdatePodcastRequest struct {
	PodcastURL    *string `json:"podcast_url,omitempty"`
	PodcastScript *string `json:"podcast_script,omitempty"`
}

// ─── Learning Resource Types ────────────────────────────────────────────────

// LearningRequest is the body for POST /api/v1/learning-resources.
type LearningRequest struct {
	Technologies []string `json:"technologies"`
	RepoContext  string   `json:"repo_context,omitempty"`
}

// LearningResource is a single recommended resource.
type LearningResource struct {
	Type        string `json:"type"` // docs, article or video
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// TechResources bundles the resources generated for one technology.
type TechResources struct {
	Technology string             `json:"technology"`
	Icon       string             `json:"icon"`
	Color      string             `json:"color"`
	Summary    string             `json:"summary"`
	Resources  []LearningResource `json:"resources"`
}

// LearningResponse is returned by POST /api/v1/learning-resources.
type LearningResponse struct {
	LearningResources    []TechResources `json:"learning_resources"`
	DetectedTechnologies []string        `json:"detected_technologies"`
	Error                string          `json:"error,omitempty"`
}
