package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/githubapi"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/protocol"
	"github.com/nexo-app/nexo/pkg/repotree"
)

const (
	// maxContextFileSize keeps individual large files out of the LLM
	// context while still counting them in the statistics.
	maxContextFileSize = 100 * 1024

	topExtensionCount = 20
)

// Extractor downloads repository archives and runs the analyzer over them.
type Extractor struct {
	httpClient     *http.Client
	maxArchiveSize int64
}

// NewExtractor creates an extractor. maxArchiveSize bounds the downloaded
// zip; archives larger than that are rejected before extraction.
func NewExtractor(maxArchiveSize int64) *Extractor {
	return &Extractor{
		httpClient:     &http.Client{Timeout: 2 * time.Minute},
		maxArchiveSize: maxArchiveSize,
	}
}

// Result is the outcome of downloading and analyzing one repository.
type Result struct {
	Branch             string
	FileAnalysis       *protocol.FileAnalysis
	Dependencies       []protocol.DependencyInfo
	DirectoryStructure repotree.Structure
	Context            string
	IncludedFiles      []string
	FilesInContext     int
	TotalAnalyzed      int
	Errors             []string
}

// Process downloads the archive for the given branch and analyzes every
// file in it. An empty branch tries "main" and falls back to "master".
func (e *Extractor) Process(ctx context.Context, repoURL, branch string) (*Result, error) {
	owner, repo, err := githubapi.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	branches := []string{branch}
	if branch == "" {
		branches = []string{"main", "master"}
	}

	var archive []byte
	var used string
	for _, candidate := range branches {
		archive, err = e.download(ctx, owner, repo, candidate)
		if err == nil {
			used = candidate
			break
		}
	}
	if err != nil {
		metrics.RecordExtraction(0, time.Since(start))
		return nil, fmt.Errorf("downloading archive for %s/%s: %w", owner, repo, err)
	}
	metrics.RecordExtraction(int64(len(archive)), time.Since(start))

	result, err := e.analyze(archive)
	if err != nil {
		return nil, err
	}
	result.Branch = used

	logging.Info("repository extracted",
		zap.String("repo", owner+"/"+repo),
		zap.String("branch", used),
		zap.Int("archive_bytes", len(archive)),
		zap.Int("files", result.FileAnalysis.Summary.TotalAnalyzed),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

func (e *Extractor) download(ctx context.Context, owner, repo, branch string) ([]byte, error) {
	url := fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/%s.zip", owner, repo, branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("branch %q not found", branch)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > e.maxArchiveSize {
		return nil, fmt.Errorf("repository archive is %s, limit is %s",
			FormatBytes(resp.ContentLength), FormatBytes(e.maxArchiveSize))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxArchiveSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > e.maxArchiveSize {
		return nil, fmt.Errorf("repository archive exceeds the %s limit", FormatBytes(e.maxArchiveSize))
	}
	return data, nil
}

func (e *Extractor) analyze(archive []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("reading zip archive: %w", err)
	}

	analyzer := NewAnalyzer()
	var payload strings.Builder
	var included []string
	var errs []string
	filesInContext := 0
	totalAnalyzed := 0

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		// GitHub archives nest everything under "{repo}-{branch}/".
		name := entry.Name
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if name == "" {
			continue
		}

		content, err := readZipFile(entry)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		totalAnalyzed++
		include, decoded := analyzer.AnalyzeFile(name, content, int64(len(content)))
		if !include {
			continue
		}
		if int64(len(decoded)) > maxContextFileSize {
			continue
		}
		payload.WriteString(fmt.Sprintf("<file path='%s'>\n%s\n</file>\n\n", name, decoded))
		included = append(included, name)
		filesInContext++
	}

	analysis := analyzer.Result()
	return &Result{
		FileAnalysis:       buildFileAnalysis(analysis, filesInContext, totalAnalyzed),
		Dependencies:       buildDependencies(analysis.Dependencies),
		DirectoryStructure: analysis.Root.ToMap(),
		Context:            payload.String(),
		IncludedFiles:      included,
		FilesInContext:     filesInContext,
		TotalAnalyzed:      totalAnalyzed,
		Errors:             errs,
	}, nil
}

func readZipFile(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func buildFileAnalysis(analysis *AnalysisResult, filesInContext, totalAnalyzed int) *protocol.FileAnalysis {
	byCategory := make(map[string]protocol.CategoryStats, len(analysis.Categories))
	for name, stats := range analysis.Categories {
		if stats.Count == 0 && analysis.IgnoredFiles[name] == 0 {
			continue
		}
		byCategory[name] = protocol.CategoryStats{
			Processed:  stats.Count,
			Ignored:    analysis.IgnoredFiles[name],
			TotalLines: stats.TotalLines,
			SizeBytes:  stats.TotalSize,
			Extensions: stats.Extensions,
		}
	}

	return &protocol.FileAnalysis{
		Summary: protocol.FileAnalysisSummary{
			TotalFiles:     analysis.TotalFiles,
			TotalLines:     analysis.TotalLines,
			TotalSize:      FormatBytes(analysis.TotalSize),
			FilesInContext: filesInContext,
			TotalAnalyzed:  totalAnalyzed,
		},
		ByCategory:    byCategory,
		TopExtensions: topExtensions(analysis.FilesByExtension, topExtensionCount),
	}
}

func buildDependencies(manifests []Manifest) []protocol.DependencyInfo {
	deps := make([]protocol.DependencyInfo, 0, len(manifests))
	for _, m := range manifests {
		deps = append(deps, protocol.DependencyInfo{
			Manager:         m.Manager,
			File:            m.File,
			Count:           len(m.Dependencies) + len(m.DevDependencies),
			Dependencies:    m.Dependencies,
			DevDependencies: m.DevDependencies,
		})
	}
	return deps
}

func topExtensions(byExtension map[string]int, limit int) map[string]int {
	type pair struct {
		ext   string
		count int
	}
	pairs := make([]pair, 0, len(byExtension))
	for ext, count := range byExtension {
		pairs = append(pairs, pair{ext, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].ext < pairs[j].ext
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}

	top := make(map[string]int, len(pairs))
	for _, p := range pairs {
		top[p.ext] = p.count
	}
	return top
}
