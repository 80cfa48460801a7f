package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesize(t *testing.T) {
	var gotPath string
	var gotReq synthesisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("xi-api-key") != "key123" {
			t.Errorf("xi-api-key = %q", r.Header.Get("xi-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte("mp3data"))
	}))
	defer srv.Close()

	c := New("key123", "")
	c.baseURL = srv.URL

	audio, err := c.Synthesize(context.Background(), "hello listeners")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3data" {
		t.Errorf("audio = %q", audio)
	}
	if gotPath != "/text-to-speech/"+DefaultVoiceID {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.ModelID != "eleven_turbo_v2" {
		t.Errorf("model_id = %q", gotReq.ModelID)
	}
	if gotReq.VoiceSettings.Stability != 0.5 || gotReq.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("voice_settings = %+v", gotReq.VoiceSettings)
	}
}

func TestSynthesizeRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New("key123", "voice1")
	c.baseURL = srv.URL

	audio, err := c.Synthesize(context.Background(), "script")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "ok" || calls != 3 {
		t.Errorf("audio = %q after %d calls", audio, calls)
	}
}

func TestSynthesizeDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("badkey", "voice1")
	c.baseURL = srv.URL

	if _, err := c.Synthesize(context.Background(), "script"); err == nil {
		t.Fatal("expected error for 401 response")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSynthesizeDisabled(t *testing.T) {
	c := New("", "")
	if _, err := c.Synthesize(context.Background(), "script"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
