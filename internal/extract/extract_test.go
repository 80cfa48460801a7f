package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestAnalyzeArchive(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"demo-main/main.go":      "package main\n\nfunc main() {}\n",
		"demo-main/README.md":    "# demo\n",
		"demo-main/go.mod":       "module example.com/demo\n\nrequire github.com/lib/pq v1.11.1\n",
		"demo-main/assets/x.png": "\x89PNG",
	})

	e := NewExtractor(1 << 20)
	result, err := e.analyze(archive)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if result.TotalAnalyzed != 4 {
		t.Errorf("TotalAnalyzed = %d, want 4", result.TotalAnalyzed)
	}
	if result.FilesInContext != 3 {
		t.Errorf("FilesInContext = %d, want 3", result.FilesInContext)
	}
	if !strings.Contains(result.Context, "<file path='main.go'>") {
		t.Error("context payload missing main.go block")
	}
	if strings.Contains(result.Context, "x.png") {
		t.Error("context payload should not contain binary assets")
	}
	if len(result.Dependencies) != 1 || result.Dependencies[0].Manager != "go modules" {
		t.Errorf("Dependencies = %+v, want one go modules manifest", result.Dependencies)
	}
	if result.FileAnalysis.Summary.TotalFiles != 3 {
		t.Errorf("TotalFiles = %d, want 3", result.FileAnalysis.Summary.TotalFiles)
	}

	// The tree keeps ignored files so the client can render them.
	if _, ok := result.DirectoryStructure["assets/"]; !ok {
		t.Errorf("DirectoryStructure missing assets/: %#v", result.DirectoryStructure)
	}
}

func TestAnalyzeRejectsGarbage(t *testing.T) {
	e := NewExtractor(1 << 20)
	if _, err := e.analyze([]byte("not a zip")); err == nil {
		t.Fatal("analyze of non-zip data should fail")
	}
}
