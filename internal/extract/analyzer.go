// Package extract downloads a GitHub repository archive and analyzes its
// contents: file categories, line counts, dependency manifests, the
// directory structure and the code context payload for the LLM.
package extract

import (
	"path"
	"strings"
	"unicode/utf8"
)

// fileCategories maps extensions to a display category.
var fileCategories = map[string][]string{
	"code": {
		".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".c", ".cpp", ".h",
		".hpp", ".cs", ".go", ".rs", ".rb", ".php", ".swift", ".kt", ".scala",
		".r", ".m", ".lua", ".pl", ".sh", ".bash", ".zsh", ".ps1", ".sql",
		".html", ".css", ".scss", ".sass", ".less", ".vue", ".svelte",
	},
	"config": {
		".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf", ".env",
		".properties", ".xml", ".plist",
	},
	"docs": {".md", ".txt", ".rst", ".adoc", ".tex", ".rtf", ".doc", ".docx"},
	"assets": {
		".png", ".jpg", ".jpeg", ".gif", ".ico", ".svg", ".webp", ".bmp",
		".mp3", ".mp4", ".wav", ".ogg", ".webm", ".avi", ".mov",
		".ttf", ".otf", ".woff", ".woff2", ".eot",
	},
	"data":  {".csv", ".tsv", ".xls", ".xlsx", ".parquet", ".arrow", ".db", ".sqlite"},
	"build": {".lock", ".sum", ".mod"},
	"binary": {
		".exe", ".dll", ".so", ".dylib", ".bin", ".pyc", ".pyo", ".class",
		".jar", ".war", ".ear", ".zip", ".tar", ".gz", ".rar", ".7z",
	},
}

// categoryByExtension is the inverted index of fileCategories.
var categoryByExtension = func() map[string]string {
	m := make(map[string]string)
	for category, extensions := range fileCategories {
		for _, ext := range extensions {
			m[ext] = category
		}
	}
	return m
}()

var categoryNames = []string{"code", "config", "docs", "assets", "data", "build", "binary", "other"}

// ignoredDirs are directory names skipped entirely (any path segment).
var ignoredDirs = map[string]bool{
	".git": true, ".github": true, ".vscode": true, ".idea": true,
	"__pycache__": true, "node_modules": true, "venv": true, "env": true,
	"dist": true, "build": true, "coverage": true, ".next": true,
	"target": true, ".mypy_cache": true, ".pytest_cache": true, ".tox": true,
	"vendor": true, "bower_components": true, ".cache": true, ".parcel-cache": true,
}

// ignoredExtensions are skipped regardless of location.
var ignoredExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".svg": true, ".pdf": true, ".zip": true, ".tar": true, ".gz": true,
	".exe": true, ".dll": true, ".so": true, ".pyc": true, ".lock": true,
	".bin": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".wav": true, ".avi": true, ".mov": true,
	".webm": true, ".webp": true,
}

// allowedHidden are dotfiles still worth analyzing.
var allowedHidden = map[string]bool{
	".env.example": true, ".gitignore": true, "Dockerfile": true, ".dockerignore": true,
}

// CategoryStats accumulates per-category numbers.
type CategoryStats struct {
	Count      int
	TotalLines int
	TotalSize  int64
	Extensions map[string]int
}

// AnalysisResult is the aggregate output of an Analyzer run.
type AnalysisResult struct {
	TotalFiles       int
	TotalLines       int
	TotalSize        int64
	Categories       map[string]*CategoryStats
	IgnoredFiles     map[string]int
	Dependencies     []Manifest
	Root             *DirectoryNode
	FilesByExtension map[string]int
}

// Analyzer inspects repository files one at a time and accumulates
// statistics. Not safe for concurrent use.
type Analyzer struct {
	result AnalysisResult
}

// NewAnalyzer creates an analyzer with empty statistics.
func NewAnalyzer() *Analyzer {
	categories := make(map[string]*CategoryStats, len(categoryNames))
	ignored := make(map[string]int, len(categoryNames))
	for _, name := range categoryNames {
		categories[name] = &CategoryStats{Extensions: map[string]int{}}
		ignored[name] = 0
	}
	return &Analyzer{result: AnalysisResult{
		Categories:       categories,
		IgnoredFiles:     ignored,
		Root:             NewDirectoryNode("root"),
		FilesByExtension: map[string]int{},
	}}
}

// AnalyzeFile records one file. It returns whether the file should be part
// of the LLM context and, if so, its decoded content. Binary or ignored
// files return (false, "").
func (a *Analyzer) AnalyzeFile(filepath string, content []byte, size int64) (bool, string) {
	ext := strings.ToLower(path.Ext(filepath))
	base := path.Base(filepath)

	if ext != "" {
		a.result.FilesByExtension[ext]++
	}
	category := categoryFor(ext)

	// The directory tree includes ignored files; the stats do not.
	a.result.Root.Add(filepath)

	ignored := inIgnoredDir(filepath) || ignoredExtensions[ext]
	if strings.HasPrefix(base, ".") && !allowedHidden[base] {
		ignored = true
	}
	if ignored {
		a.result.IgnoredFiles[category]++
		return false, ""
	}

	if !utf8.Valid(content) {
		a.result.IgnoredFiles[category]++
		return false, ""
	}
	decoded := string(content)
	lines := 0
	if decoded != "" {
		lines = strings.Count(decoded, "\n") + 1
	}

	a.result.TotalFiles++
	a.result.TotalLines += lines
	a.result.TotalSize += size

	stats := a.result.Categories[category]
	stats.Count++
	stats.TotalLines += lines
	stats.TotalSize += size
	stats.Extensions[ext]++

	if manifest := parseManifest(base, decoded); manifest != nil {
		a.result.Dependencies = append(a.result.Dependencies, *manifest)
	}

	return true, decoded
}

// Result returns the accumulated analysis.
func (a *Analyzer) Result() *AnalysisResult {
	return &a.result
}

func categoryFor(ext string) string {
	if category, ok := categoryByExtension[ext]; ok {
		return category
	}
	return "other"
}

func inIgnoredDir(filepath string) bool {
	for _, part := range strings.Split(filepath, "/") {
		if ignoredDirs[part] {
			return true
		}
	}
	return false
}
