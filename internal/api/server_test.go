package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nexo-app/nexo/internal/auth"
	"github.com/nexo-app/nexo/internal/config"
	"github.com/nexo-app/nexo/internal/events"
	"github.com/nexo-app/nexo/internal/extract"
	"github.com/nexo-app/nexo/internal/gemini"
	"github.com/nexo-app/nexo/internal/githubapi"
	"github.com/nexo-app/nexo/internal/learning"
	"github.com/nexo-app/nexo/internal/podcast"
	"github.com/nexo-app/nexo/internal/quota"
	"github.com/nexo-app/nexo/internal/storage"
	"github.com/nexo-app/nexo/internal/storage/local"
	"github.com/nexo-app/nexo/pkg/analysiscache"
	"github.com/nexo-app/nexo/pkg/protocol"
)

type testServer struct {
	*Server
	handler http.Handler
	backend storage.Backend
	cache   *analysiscache.Cache
	jobs    *podcast.Jobs
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{AllowedOrigins: "*"}
	}

	backend, err := local.New(local.Config{RootPath: t.TempDir(), CreateDirs: true})
	if err != nil {
		t.Fatalf("local backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	geminiClient, err := gemini.New(context.Background(), "", "gemini-2.5-flash", 1000)
	if err != nil {
		t.Fatalf("gemini client: %v", err)
	}

	cache := analysiscache.Open(filepath.Join(t.TempDir(), "cache.json"), nil)
	jobs := podcast.NewJobs()
	broadcaster := events.NewBroadcaster()

	srv := NewServer(
		nil,
		auth.New(nil, "test-secret", 30),
		cache,
		extract.NewExtractor(1024*1024),
		githubapi.New(""),
		geminiClient,
		learning.NewService(geminiClient),
		quota.NewRateLimiter(),
		cfg,
		&PodcastDeps{
			Jobs:        jobs,
			Generator:   podcast.NewGenerator(jobs, nil, backend, broadcaster, 1),
			Backend:     backend,
			Broadcaster: broadcaster,
		},
	)

	return &testServer{
		Server:  srv,
		handler: srv.Handler(),
		backend: backend,
		cache:   cache,
		jobs:    jobs,
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze/full", nil)
	req.Header.Set("Origin", "https://nexo.example.com")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://nexo.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	ts := newTestServer(t, &config.Config{AllowedOrigins: "https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin for unknown origin = %q, want empty", got)
	}
}

func TestProtectedRequiresAuth(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{
		"/api/v1/auth/me",
		"/api/v1/repos/list",
		"/api/v1/cache/stats",
	} {
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, rec.Code)
		}
	}
}

func TestAnalyzeRequiresURL(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/analyze/full", protocol.AnalyzeRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeRejectsBadURL(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/analyze/full",
		protocol.AnalyzeRequest{GithubURL: "not-a-repository"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeServedFromCache(t *testing.T) {
	ts := newTestServer(t, nil)

	cached := protocol.AnalyzeResponse{
		Status:   "success",
		Overview: "<h2>Cached overview</h2>",
	}
	data, err := json.Marshal(cached)
	if err != nil {
		t.Fatal(err)
	}
	ts.cache.Put("https://github.com/octocat/hello-world", data, "")

	rec := postJSON(t, ts.handler, "/api/v1/analyze/full",
		protocol.AnalyzeRequest{GithubURL: "https://github.com/Octocat/Hello-World/"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp protocol.AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Cached {
		t.Error("response should be marked cached")
	}
	if resp.Overview != cached.Overview {
		t.Errorf("overview = %q", resp.Overview)
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	ts := newTestServer(t, &config.Config{AllowedOrigins: "*", AnalyzeRequestsPerMin: 1})

	rec := postJSON(t, ts.handler, "/api/v1/analyze/full", protocol.AnalyzeRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("first request = %d, want 400", rec.Code)
	}
	rec = postJSON(t, ts.handler, "/api/v1/analyze/full", protocol.AnalyzeRequest{})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/chat/message",
		protocol.ChatRequest{Message: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatUnavailableWithoutGemini(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/chat/message",
		protocol.ChatRequest{Message: "what does this repo do?"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestLearningRequiresTechnologies(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/learning-resources", protocol.LearningRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPodcastGenerateRequiresAnalysis(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/podcast/generate/general",
		protocol.GeneralPodcastRequest{RepositoryURL: "https://github.com/foo/bar"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPodcastStatusNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/podcast/status/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPodcastStatusAndAudio(t *testing.T) {
	ts := newTestServer(t, nil)

	job := ts.jobs.Create("user-1", podcast.KindGeneral)
	audio := []byte("mp3 bytes")
	key := job.AudioKey()
	if err := ts.backend.PutObject(context.Background(), key, bytes.NewReader(audio), int64(len(audio))); err != nil {
		t.Fatalf("put audio: %v", err)
	}
	ts.jobs.Complete(job.ID, "/api/v1/podcast/audio/"+job.ID, "script")

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/podcast/status/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var status protocol.PodcastStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != podcast.StatusCompleted || status.Progress != 100 {
		t.Errorf("status = %+v", status)
	}

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/podcast/audio/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("audio endpoint = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), audio) {
		t.Error("audio body mismatch")
	}
}

func TestPodcastAudioByKey(t *testing.T) {
	ts := newTestServer(t, nil)

	audio := []byte("sync episode")
	if err := ts.backend.PutObject(context.Background(), "general_abcd1234.mp3", bytes.NewReader(audio), int64(len(audio))); err != nil {
		t.Fatalf("put audio: %v", err)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/podcast/audio/general_abcd1234.mp3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), audio) {
		t.Error("audio body mismatch")
	}
}

func TestPodcastAudioIncompleteJob(t *testing.T) {
	ts := newTestServer(t, nil)

	job := ts.jobs.Create("user-1", podcast.KindGeneral)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/podcast/audio/"+job.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestExtractRequiresURL(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/extract", protocol.AnalyzeRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, ts.handler, "/api/v1/extract",
		protocol.AnalyzeRequest{GithubURL: "not-a-repository"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad url status = %d, want 400", rec.Code)
	}
}

func TestOverviewUnavailableWithoutGemini(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/overview",
		protocol.AnalyzeRequest{GithubURL: "https://github.com/octocat/hello-world"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPodcastSpecificRequiresQuestion(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/podcast/generate/specific",
		protocol.SpecificPodcastRequest{RepositoryURL: "https://github.com/foo/bar"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// Without an answer generator configured, the caller has to supply the
// answer to narrate.
func TestPodcastSpecificRequiresAnswer(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/podcast/generate/specific",
		protocol.SpecificPodcastRequest{Question: "how does auth work?"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPodcastSpecificAsyncAccepted(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := postJSON(t, ts.handler, "/api/v1/podcast/generate/async/specific",
		protocol.SpecificPodcastRequest{
			Question:   "how does auth work?",
			AIResponse: "Tokens are issued at login and checked by middleware.",
		})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var accepted protocol.PodcastJobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.PodcastID == "" || accepted.Status != podcast.StatusPending {
		t.Errorf("accepted = %+v", accepted)
	}

	job, ok := ts.jobs.Get(accepted.PodcastID)
	if !ok || job.Kind != podcast.KindSpecific {
		t.Errorf("job = %+v, want specific kind", job)
	}

	statusRec := httptest.NewRecorder()
	ts.handler.ServeHTTP(statusRec, httptest.NewRequest(http.MethodGet, accepted.StatusURL, nil))
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", statusRec.Code)
	}
}

func TestPodcastAudioBySpecificKey(t *testing.T) {
	ts := newTestServer(t, nil)

	audio := []byte("focused episode")
	if err := ts.backend.PutObject(context.Background(), "specific_abcd1234.mp3", bytes.NewReader(audio), int64(len(audio))); err != nil {
		t.Fatalf("put audio: %v", err)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/podcast/audio/specific_abcd1234.mp3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), audio) {
		t.Error("audio body mismatch")
	}
}

func TestFormatRepoContext(t *testing.T) {
	got := formatRepoContext(map[string]any{
		"name":        "nexo",
		"stars":       float64(42),
		"description": "",
		"languages":   map[string]any{"Go": float64(90)},
	})

	if !strings.Contains(got, "name: nexo\n") {
		t.Errorf("missing name line: %q", got)
	}
	if !strings.Contains(got, "stars: 42\n") {
		t.Errorf("missing stars line: %q", got)
	}
	if strings.Contains(got, "description") {
		t.Errorf("empty string field should be skipped: %q", got)
	}
	if !strings.Contains(got, `languages: {"Go":90}`) {
		t.Errorf("nested value should be inlined as JSON: %q", got)
	}

	if formatRepoContext(nil) != "" {
		t.Error("nil context should format to empty string")
	}
}

func TestRepoNameFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://github.com/foo/bar", "bar"},
		{"https://github.com/foo/bar/", "bar"},
		{"bar", "bar"},
	}
	for _, tt := range tests {
		if got := repoNameFromURL(tt.in); got != tt.want {
			t.Errorf("repoNameFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
