package learning

import (
	"context"
	"strings"
	"testing"

	"github.com/nexo-app/nexo/internal/gemini"
)

func TestNormalizeTech(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"golang", "go"},
		{"Go", "go"},
		{"k8s", "kubernetes"},
		{"postgres", "postgresql"},
		{"NodeJS", "javascript"},
		{"  TS  ", "typescript"},
		{"Elixir", "elixir"},
	}
	for _, tt := range tests {
		if got := NormalizeTech(tt.in); got != tt.want {
			t.Errorf("NormalizeTech(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTechMetadata(t *testing.T) {
	icon, color := TechMetadata("golang")
	if icon != "🐹" || color != "#00add8" {
		t.Errorf("TechMetadata(golang) = (%q, %q)", icon, color)
	}

	icon, color = TechMetadata("some-obscure-tool")
	if icon != "📦" || color != "#6b7280" {
		t.Errorf("fallback metadata = (%q, %q)", icon, color)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateEmptyTechnologies(t *testing.T) {
	client, err := gemini.New(context.Background(), "", "gemini-2.5-flash", 1000)
	if err != nil {
		t.Fatalf("gemini.New: %v", err)
	}
	s := NewService(client)

	resp := s.Generate(context.Background(), nil, "")
	if len(resp.LearningResources) != 0 || len(resp.DetectedTechnologies) != 0 {
		t.Errorf("empty input response = %+v", resp)
	}
	if resp.Error != "" {
		t.Errorf("empty input should not error: %s", resp.Error)
	}
}

func TestGenerateWithoutAPIKey(t *testing.T) {
	client, err := gemini.New(context.Background(), "", "gemini-2.5-flash", 1000)
	if err != nil {
		t.Fatalf("gemini.New: %v", err)
	}
	s := NewService(client)

	resp := s.Generate(context.Background(), []string{"go", "docker"}, "")
	if resp.Error == "" {
		t.Error("disabled gemini should surface an error in the response")
	}
	if len(resp.DetectedTechnologies) != 2 {
		t.Errorf("detected technologies = %v", resp.DetectedTechnologies)
	}
	if resp.LearningResources == nil {
		t.Error("learning resources should be an empty slice, not nil")
	}
}

func TestBuildLearningPrompt(t *testing.T) {
	prompt := buildLearningPrompt([]string{"go", "redis"}, "A caching proxy")
	if !strings.Contains(prompt, "Technologies detected in the repository: go, redis") {
		t.Error("prompt missing technology list")
	}
	if !strings.Contains(prompt, "Repository context: A caching proxy") {
		t.Error("prompt missing repository context")
	}
	if !strings.Contains(prompt, "Generate for ALL technologies: go, redis") {
		t.Error("prompt missing closing technology list")
	}
}
