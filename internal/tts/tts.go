// Package tts synthesizes podcast audio through the ElevenLabs API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/retry"
)

const (
	baseURL = "https://api.elevenlabs.io/v1"

	// DefaultVoiceID is the "Adam" preset voice.
	DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"

	modelID = "eleven_turbo_v2"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("tts: api key not configured")

// Client calls the ElevenLabs text-to-speech API.
type Client struct {
	apiKey     string
	voiceID    string
	baseURL    string
	httpClient *http.Client
}

// New creates a client. An empty voiceID selects the default voice. An
// empty apiKey yields a disabled client whose Synthesize always fails
// with ErrNotConfigured.
func New(apiKey, voiceID string) *Client {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	return &Client{
		apiKey:     apiKey,
		voiceID:    voiceID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

// Enabled reports whether synthesis can succeed.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Synthesize converts a script into MP3 audio. Transient upstream errors
// (429 and 5xx) are retried with backoff.
func (c *Client) Synthesize(ctx context.Context, script string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if script == "" {
		return nil, errors.New("tts: empty script")
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    script,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	audio, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]byte, error) {
		return c.request(ctx, body)
	})
	metrics.RecordTTSCall(err == nil)
	if err != nil {
		logging.Warn("tts synthesis failed", zap.Error(err))
		return nil, err
	}

	logging.Info("tts synthesis complete",
		zap.Int("script_chars", len(script)),
		zap.Int("audio_bytes", len(audio)),
		zap.Duration("duration", time.Since(start)))
	return audio, nil
}

func (c *Client) request(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Retryable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, retry.Retryable(err)
		}
		return nil, err
	}
	return io.ReadAll(resp.Body)
}
