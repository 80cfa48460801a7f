// Package githubapi fetches repository metadata from the GitHub REST API.
package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/github"
	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// Client wraps the GitHub REST client.
type Client struct {
	gh *github.Client
}

// tokenTransport adds a bearer token to every request.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// New creates a client. An empty token means unauthenticated requests with
// GitHub's lower rate limits.
func New(token string) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		httpClient.Transport = &tokenTransport{token: token, base: http.DefaultTransport}
	}
	return &Client{gh: github.NewClient(httpClient)}
}

// ParseRepoURL extracts owner and repo from a GitHub URL or an "owner/repo"
// shorthand. A trailing slash or ".git" suffix is tolerated.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	clean := strings.TrimSuffix(strings.TrimSpace(repoURL), "/")
	clean = strings.TrimSuffix(clean, ".git")
	clean = strings.TrimPrefix(clean, "https://github.com/")
	clean = strings.TrimPrefix(clean, "http://github.com/")

	parts := strings.Split(clean, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub repository URL: %q", repoURL)
	}
	return parts[0], parts[1], nil
}

// FetchAll gathers metadata, contributors, branches and languages in
// parallel. Each part degrades independently: a failed metadata fetch leaves
// Info nil, failed lists come back empty. Only an unparseable URL is an
// error.
func (c *Client) FetchAll(ctx context.Context, repoURL string) (*protocol.RepositoryInfo, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	info := &protocol.RepositoryInfo{
		Contributors: []protocol.Contributor{},
		Branches:     protocol.BranchSummary{List: []protocol.BranchInfo{}},
		Languages:    map[string]int{},
	}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		meta, err := c.metadata(ctx, owner, repo)
		metrics.RecordGithubCall("metadata", err == nil)
		if err != nil {
			logging.Warn("github metadata fetch failed",
				zap.String("repo", owner+"/"+repo), zap.Error(err))
			return
		}
		info.Info = meta
	}()

	go func() {
		defer wg.Done()
		contributors, err := c.contributors(ctx, owner, repo, 10)
		metrics.RecordGithubCall("contributors", err == nil)
		if err != nil {
			logging.Warn("github contributors fetch failed",
				zap.String("repo", owner+"/"+repo), zap.Error(err))
			return
		}
		info.Contributors = contributors
	}()

	go func() {
		defer wg.Done()
		branches, err := c.branches(ctx, owner, repo)
		metrics.RecordGithubCall("branches", err == nil)
		if err != nil {
			logging.Warn("github branches fetch failed",
				zap.String("repo", owner+"/"+repo), zap.Error(err))
			return
		}
		info.Branches = protocol.BranchSummary{Count: len(branches), List: branches}
	}()

	go func() {
		defer wg.Done()
		languages, _, err := c.gh.Repositories.ListLanguages(ctx, owner, repo)
		metrics.RecordGithubCall("languages", err == nil)
		if err != nil {
			logging.Warn("github languages fetch failed",
				zap.String("repo", owner+"/"+repo), zap.Error(err))
			return
		}
		info.Languages = languages
	}()

	wg.Wait()
	return info, nil
}

func (c *Client) metadata(ctx context.Context, owner, repo string) (*protocol.RepoMetadata, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	return &protocol.RepoMetadata{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		Watchers:      r.GetWatchersCount(),
		DefaultBranch: r.GetDefaultBranch(),
		Language:      r.GetLanguage(),
		CreatedAt:     r.GetCreatedAt().Format(time.RFC3339),
		UpdatedAt:     r.GetUpdatedAt().Format(time.RFC3339),
		SizeKB:        r.GetSize(),
		IsPrivate:     r.GetPrivate(),
		Topics:        r.Topics,
	}, nil
}

func (c *Client) contributors(ctx context.Context, owner, repo string, limit int) ([]protocol.Contributor, error) {
	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	}
	ghContributors, _, err := c.gh.Repositories.ListContributors(ctx, owner, repo, opts)
	if err != nil {
		return nil, err
	}

	contributors := make([]protocol.Contributor, 0, len(ghContributors))
	for _, gc := range ghContributors {
		contributors = append(contributors, protocol.Contributor{
			Username:      gc.GetLogin(),
			AvatarURL:     gc.GetAvatarURL(),
			Contributions: gc.GetContributions(),
			ProfileURL:    gc.GetHTMLURL(),
		})
	}
	return contributors, nil
}

func (c *Client) branches(ctx context.Context, owner, repo string) ([]protocol.BranchInfo, error) {
	opts := &github.ListOptions{PerPage: 100}
	ghBranches, _, err := c.gh.Repositories.ListBranches(ctx, owner, repo, opts)
	if err != nil {
		return nil, err
	}

	branches := make([]protocol.BranchInfo, 0, len(ghBranches))
	for _, gb := range ghBranches {
		branches = append(branches, protocol.BranchInfo{
			Name:        gb.GetName(),
			IsProtected: gb.GetProtected(),
		})
	}
	return branches, nil
}
