package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDisabledClient(t *testing.T) {
	c, err := New(context.Background(), "", "gemini-2.5-flash", 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Enabled() {
		t.Fatal("client without api key should be disabled")
	}

	result := c.Generate(context.Background(), "hello", Options{})
	if !errors.Is(result.Err, ErrNotConfigured) {
		t.Errorf("Generate err = %v, want ErrNotConfigured", result.Err)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := truncate(long, 1000)
	if len(got) >= 2000 {
		t.Errorf("truncate did not shorten: len = %d", len(got))
	}
	if !strings.Contains(got, "[CONTEXT TRUNCATED") {
		t.Error("truncated context missing marker")
	}

	if got := truncate("short", 1000); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("anything", 0); got != "anything" {
		t.Errorf("truncate with zero limit = %q", got)
	}
}

func TestBuildChatPromptKeepsRefusalSentence(t *testing.T) {
	prompt := buildChatPrompt("what is the weather?", "Name: demo")
	if !strings.Contains(prompt, `"This question is outside my scope"`) {
		t.Error("chat prompt missing the exact out-of-scope reply")
	}
	if !strings.Contains(prompt, "User Question: what is the weather?") {
		t.Error("chat prompt missing the user question")
	}
}

func TestBuildOverviewPromptEmptyContext(t *testing.T) {
	prompt := buildOverviewPrompt("owner/repo", "")
	if !strings.Contains(prompt, "No context extracted") {
		t.Error("empty context should be marked in the prompt")
	}
	if !strings.Contains(prompt, "owner/repo") {
		t.Error("prompt missing repository name")
	}
}
