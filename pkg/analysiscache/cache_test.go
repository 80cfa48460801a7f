package analysiscache

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "analysis-cache.json"), nil)
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://github.com/Foo/Bar/", "foo/bar"},
		{"https://github.com/foo/bar", "foo/bar"},
		{"foo/bar", "foo/bar"},
		{"FOO/BAR", "foo/bar"},
		{"https://gitlab.com/foo/bar", "https://gitlab.com/foo/bar"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := newTestCache(t)
	payload := json.RawMessage(`{"overview":"<h2>Hello</h2>","status":"success"}`)

	c.Put("https://github.com/Owner/Repo", payload, "u1")

	got, ok := c.Get("owner/repo", "u1")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("data = %s, want %s", got, payload)
	}
}

func TestUserIsolation(t *testing.T) {
	c := newTestCache(t)
	c.Put("owner/repo", json.RawMessage(`{"x":1}`), "u1")

	if _, ok := c.Get("owner/repo", "u2"); ok {
		t.Error("expected miss for a different user")
	}
	if _, ok := c.Get("owner/repo", ""); ok {
		t.Error("expected miss for anonymous reader of a user-owned entry")
	}
}

func TestAnonymousSentinel(t *testing.T) {
	c := newTestCache(t)
	c.Put("https://github.com/a/b", json.RawMessage(`{"x":1}`), "")

	if removed := c.SweepExpired(); removed != 0 {
		t.Errorf("SweepExpired() = %d, want 0", removed)
	}
	if _, ok := c.Get("a/b", ""); !ok {
		t.Error("expected anonymous entry to survive immediate sweep")
	}
}

func TestCrossUserOverwrite(t *testing.T) {
	c := newTestCache(t)
	c.Put("owner/repo", json.RawMessage(`{"by":"u1"}`), "u1")
	c.Put("owner/repo", json.RawMessage(`{"by":"u2"}`), "u2")

	// Last writer owns the key: u1's entry is gone, u2 reads its own.
	if _, ok := c.Get("owner/repo", "u1"); ok {
		t.Error("expected u1 entry to be evicted by u2's write")
	}
	got, ok := c.Get("owner/repo", "u2")
	if !ok {
		t.Fatal("expected hit for u2")
	}
	if string(got) != `{"by":"u2"}` {
		t.Errorf("data = %s", got)
	}
}

func TestExpiryOnRead(t *testing.T) {
	c := newTestCache(t)
	c.Put("owner/repo", json.RawMessage(`{"x":1}`), "u1")

	// Age the entry past the window.
	c.now = func() time.Time { return time.Now().Add(TTL + time.Minute) }

	if _, ok := c.Get("owner/repo", "u1"); ok {
		t.Fatal("expected expired entry to miss")
	}

	// Lazy eviction removed it from the store entirely.
	if s := c.Stats(); s.TotalEntries != 0 {
		t.Errorf("TotalEntries = %d after expiry-on-read, want 0", s.TotalEntries)
	}
}

func TestSweepExpired(t *testing.T) {
	c := newTestCache(t)
	c.Put("a/old", json.RawMessage(`{}`), "u1")
	c.Put("b/old", json.RawMessage(`{}`), "u2")

	c.now = func() time.Time { return time.Now().Add(TTL + time.Minute) }
	c.Put("c/fresh", json.RawMessage(`{}`), "u1")

	if removed := c.SweepExpired(); removed != 2 {
		t.Errorf("SweepExpired() = %d, want 2", removed)
	}
	if _, ok := c.Get("c/fresh", "u1"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := newTestCache(t)
	c.Put("a/b", json.RawMessage(`{}`), "u1")
	c.Put("c/d", json.RawMessage(`{}`), "u1")

	c.Remove("https://github.com/A/B")
	if _, ok := c.Get("a/b", "u1"); ok {
		t.Error("expected removed entry to miss")
	}
	if _, ok := c.Get("c/d", "u1"); !ok {
		t.Error("unrelated entry should remain after Remove")
	}

	c.Clear()
	if s := c.Stats(); s.TotalEntries != 0 {
		t.Errorf("TotalEntries = %d after Clear, want 0", s.TotalEntries)
	}
}

func TestClearForUser(t *testing.T) {
	c := newTestCache(t)
	c.Put("a/b", json.RawMessage(`{}`), "u1")
	c.Put("c/d", json.RawMessage(`{}`), "u2")
	c.Put("e/f", json.RawMessage(`{}`), "")

	c.ClearForUser("u1")

	if _, ok := c.Get("a/b", "u1"); ok {
		t.Error("u1 entry should be gone")
	}
	if _, ok := c.Get("c/d", "u2"); !ok {
		t.Error("u2 entry should remain")
	}
	if _, ok := c.Get("e/f", ""); !ok {
		t.Error("anonymous entry should remain")
	}
}

func TestPersistenceAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := Open(path, nil)
	first.Put("owner/repo", json.RawMessage(`{"x":1}`), "u1")

	second := Open(path, nil)
	got, ok := second.Get("owner/repo", "u1")
	if !ok {
		t.Fatal("expected entry to survive reopen")
	}
	if string(got) != `{"x":1}` {
		t.Errorf("data = %s", got)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := Open(path, nil)
	if s := c.Stats(); s.TotalEntries != 0 {
		t.Errorf("TotalEntries = %d for corrupt file, want 0", s.TotalEntries)
	}

	// The cache still works after a bad load.
	c.Put("a/b", json.RawMessage(`{}`), "u1")
	if _, ok := c.Get("a/b", "u1"); !ok {
		t.Error("expected put/get to work after corrupt load")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t)
	c.Put("a/b", json.RawMessage(`{"big":"payload"}`), "u1")

	c.now = func() time.Time { return time.Now().Add(TTL + time.Minute) }
	c.Put("c/d", json.RawMessage(`{}`), "u1")

	s := c.Stats()
	if s.TotalEntries != 2 {
		t.Errorf("TotalEntries = %d, want 2", s.TotalEntries)
	}
	if s.ValidEntries != 1 {
		t.Errorf("ValidEntries = %d, want 1", s.ValidEntries)
	}
	if s.ExpiredEntries != 1 {
		t.Errorf("ExpiredEntries = %d, want 1", s.ExpiredEntries)
	}
	if !strings.HasSuffix(s.ApproximateSize, " KB") {
		t.Errorf("ApproximateSize = %q, want a KB figure", s.ApproximateSize)
	}
}
