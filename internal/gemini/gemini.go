// Package gemini wraps the Google Generative AI client for repository
// overviews, chat and learning-resource generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/protocol"
)

const (
	defaultTemperature = 0.7
	defaultTopP        = 0.95
	defaultTopK        = 40
	defaultMaxTokens   = 4096
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("gemini: api key not configured")

// Client generates text with a fixed model. A client created without an
// API key stays usable; every generation returns ErrNotConfigured.
type Client struct {
	genai          *genai.Client
	modelName      string
	maxPromptChars int
}

// Result carries a generation outcome. Err is part of the value rather
// than a second return so callers can embed failed generations in an
// otherwise successful analysis response.
type Result struct {
	Content string
	Usage   *protocol.TokenUsage
	Err     error
}

// Options tune a single generation.
type Options struct {
	Temperature float32
	JSONOutput  bool
}

// New connects to the Generative AI API. An empty apiKey yields a disabled
// client, not an error.
func New(ctx context.Context, apiKey, model string, maxPromptChars int) (*Client, error) {
	c := &Client{modelName: model, maxPromptChars: maxPromptChars}
	if apiKey == "" {
		return c, nil
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Enabled reports whether generations can succeed.
func (c *Client) Enabled() bool {
	return c != nil && c.genai != nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

// Generate runs one prompt through the model.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) Result {
	if !c.Enabled() {
		return Result{Err: ErrNotConfigured}
	}

	model := c.genai.GenerativeModel(c.modelName)
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	model.SetTemperature(temperature)
	model.SetTopP(defaultTopP)
	model.SetTopK(defaultTopK)
	model.SetMaxOutputTokens(defaultMaxTokens)
	if opts.JSONOutput {
		model.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		metrics.RecordGeminiCall(false, 0)
		logging.Warn("gemini generation failed",
			zap.String("model", c.modelName), zap.Error(err))
		return Result{Err: fmt.Errorf("gemini generation: %w", err)}
	}

	content := extractText(resp)
	if content == "" {
		metrics.RecordGeminiCall(false, 0)
		return Result{Err: errors.New("gemini: empty response")}
	}

	usage := extractUsage(resp)
	total := 0
	if usage != nil {
		total = usage.TotalTokens
	}
	metrics.RecordGeminiCall(true, total)
	logging.Debug("gemini generation complete",
		zap.String("model", c.modelName),
		zap.Int("chars", len(content)),
		zap.Int("total_tokens", total),
		zap.Duration("duration", time.Since(start)))
	return Result{Content: content, Usage: usage}
}

// Overview produces the repository overview from the extracted code
// context. Oversized contexts are truncated before prompting.
func (c *Client) Overview(ctx context.Context, repoName, codeContext string) Result {
	prompt := buildOverviewPrompt(repoName, truncate(codeContext, c.maxPromptChars))
	return c.Generate(ctx, prompt, Options{})
}

// Chat answers one user message about an analyzed repository.
func (c *Client) Chat(ctx context.Context, message string, repoContext string) Result {
	return c.Generate(ctx, buildChatPrompt(message, truncate(repoContext, c.maxPromptChars)), Options{})
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func extractUsage(resp *genai.GenerateContentResponse) *protocol.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &protocol.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

// truncate cuts oversized contexts at the limit minus a small margin and
// marks the cut so the model knows content is missing.
func truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := maxChars - 500
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + "\n\n[CONTEXT TRUNCATED: repository too large to include in full]"
}
