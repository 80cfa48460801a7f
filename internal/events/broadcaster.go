// Package events provides an SSE event broadcaster for podcast job progress.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nexo-app/nexo/internal/metrics"
)

const (
	EventPodcastPending    = "podcast_pending"
	EventPodcastProcessing = "podcast_processing"
	EventPodcastCompleted  = "podcast_completed"
	EventPodcastFailed     = "podcast_failed"
)

// Event represents a podcast job state change.
type Event struct {
	Type      string `json:"type"`
	PodcastID string `json:"podcast_id"`
	UserID    string `json:"-"`
	Progress  int    `json:"progress"`
	AudioURL  string `json:"audio_url,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster manages SSE subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]string
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]string),
	}
}

// Subscribe adds a subscriber that receives events for the given user only.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe(userID string) chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = userID
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
}

// Publish sends an event to the owning user's subscribers. Non-blocking:
// drops events for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, userID := range b.subscribers {
		if userID != event.UserID {
			continue
		}
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordSSEEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
