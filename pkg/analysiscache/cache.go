// Package analysiscache stores repository analysis responses keyed by
// normalized repository URL, scoped per user, with a fixed one-hour TTL.
//
// The store is held in memory behind a mutex and persisted as a single JSON
// file on every mutation. Persistence is best effort: a read or write failure
// is logged and the cache degrades to a miss rather than failing the caller.
package analysiscache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TTL is how long an entry stays valid. Fixed, not configurable per entry.
const TTL = time.Hour

// AnonymousUser is the owner recorded for entries written without a signed-in
// user.
const AnonymousUser = "anonymous"

// Entry is a single cached analysis response. Data is opaque to the cache and
// returned byte for byte.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	UserID    string          `json:"userId"`
}

// Stats is a read-only snapshot of the store.
type Stats struct {
	TotalEntries    int    `json:"total_entries"`
	ValidEntries    int    `json:"valid_entries"`
	ExpiredEntries  int    `json:"expired_entries"`
	ApproximateSize string `json:"approximate_size"`
}

// Cache is a user-scoped TTL cache of analysis responses.
type Cache struct {
	path string
	log  *zap.Logger

	mu      sync.Mutex
	entries map[string]Entry

	// now is swappable in tests.
	now func() time.Time
}

// Open loads the cache from path, creating the parent directory if needed.
// A missing or unreadable file starts the cache empty.
func Open(path string, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{
		path:    path,
		log:     log,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	c.load()
	return c
}

// NormalizeKey collapses the accepted repository URL spellings into one cache
// key: lower-cased, one trailing slash stripped, and the github.com prefix
// removed. Both "https://github.com/Foo/Bar/" and "foo/bar" map to "foo/bar",
// so callers may pass a full URL or an owner/repo shorthand interchangeably.
func NormalizeKey(repoURL string) string {
	key := strings.ToLower(repoURL)
	key = strings.TrimSuffix(key, "/")
	key = strings.TrimPrefix(key, "https://github.com/")
	return key
}

// Get returns the cached data for repoURL if a valid entry owned by userID
// exists. An expired entry is evicted on the spot and the store persisted
// without it. The second return is false on any miss.
func (c *Cache) Get(repoURL, userID string) (json.RawMessage, bool) {
	key := NormalizeKey(repoURL)
	owner := ownerOr(userID)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if entry.UserID != owner {
		return nil, false
	}
	if c.expired(entry) {
		delete(c.entries, key)
		c.persist()
		return nil, false
	}
	return entry.Data, true
}

// Put stores data for repoURL, unconditionally replacing any existing entry
// for the same key, whoever wrote it. Reads are owner-checked but writes are
// not, so a write by one user evicts another user's entry for the same
// repository.
func (c *Cache) Put(repoURL string, data json.RawMessage, userID string) {
	key := NormalizeKey(repoURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Data:      data,
		Timestamp: c.now().UnixMilli(),
		UserID:    ownerOr(userID),
	}
	c.persist()
}

// Remove deletes the entry for repoURL if present.
func (c *Cache) Remove(repoURL string) {
	key := NormalizeKey(repoURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.persist()
}

// Clear drops every entry and removes the backing file.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		c.log.Warn("remove cache file", zap.String("path", c.path), zap.Error(err))
	}
}

// SweepExpired removes every expired entry regardless of owner and returns
// how many were removed. Intended to run at startup and periodically.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.persist()
	}
	return removed
}

// ClearForUser removes all entries owned by exactly userID. Anonymous entries
// are only touched when called with the anonymous sentinel itself.
func (c *Cache) ClearForUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.UserID == userID {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.persist()
	}
}

// Stats reports entry counts and the serialized size of the store.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{TotalEntries: len(c.entries)}
	for _, entry := range c.entries {
		if c.expired(entry) {
			s.ExpiredEntries++
		} else {
			s.ValidEntries++
		}
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		s.ApproximateSize = "0.00 KB"
	} else {
		s.ApproximateSize = fmt.Sprintf("%.2f KB", float64(len(data))/1024)
	}
	return s
}

func (c *Cache) expired(entry Entry) bool {
	age := c.now().UnixMilli() - entry.Timestamp
	return age >= TTL.Milliseconds()
}

func ownerOr(userID string) string {
	if userID == "" {
		return AnonymousUser
	}
	return userID
}

// load reads the persisted store. Any failure leaves the cache empty.
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("read cache file", zap.String("path", c.path), zap.Error(err))
		}
		return
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.log.Warn("parse cache file", zap.String("path", c.path), zap.Error(err))
		return
	}
	c.entries = entries
}

// persist writes the whole store atomically (temp file then rename).
// Must be called with the lock held. Failures are logged, never returned.
func (c *Cache) persist() {
	data, err := json.Marshal(c.entries)
	if err != nil {
		c.log.Warn("serialize cache", zap.Error(err))
		return
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.log.Warn("create cache dir", zap.String("dir", dir), zap.Error(err))
			return
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.log.Warn("write cache file", zap.String("path", tmp), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		c.log.Warn("rename cache file", zap.String("path", c.path), zap.Error(err))
	}
}
