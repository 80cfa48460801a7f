package events

import (
	"testing"
	"time"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe("user-1")
	ch2 := b.Subscribe("user-2")

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("user-1")
	defer b.Unsubscribe(ch)

	event := Event{
		Type:      EventPodcastCompleted,
		PodcastID: "abc",
		UserID:    "user-1",
		Progress:  100,
		AudioURL:  "/api/v1/podcast/audio/abc",
	}
	b.Publish(event)

	select {
	case received := <-ch:
		if received.Type != EventPodcastCompleted {
			t.Errorf("expected type %s, got %s", EventPodcastCompleted, received.Type)
		}
		if received.PodcastID != "abc" {
			t.Errorf("expected podcast id abc, got %s", received.PodcastID)
		}
		if received.Timestamp == 0 {
			t.Error("expected non-zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterFiltersByUser(t *testing.T) {
	b := NewBroadcaster()
	mine := b.Subscribe("user-1")
	theirs := b.Subscribe("user-2")
	defer b.Unsubscribe(mine)
	defer b.Unsubscribe(theirs)

	b.Publish(Event{Type: EventPodcastProcessing, PodcastID: "job", UserID: "user-1"})

	select {
	case received := <-mine:
		if received.PodcastID != "job" {
			t.Errorf("expected job, got %s", received.PodcastID)
		}
	case <-time.After(time.Second):
		t.Fatal("owner did not receive the event")
	}

	select {
	case received := <-theirs:
		t.Fatalf("other user received event %+v", received)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("user-1")
	defer b.Unsubscribe(ch)

	// Fill the channel buffer (64)
	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: EventPodcastProcessing, PodcastID: "overflow", UserID: "user-1"})
	}

	// Should not block or panic
	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			goto done
		}
	}
done:
	if count != 64 {
		t.Errorf("expected 64 buffered events, got %d", count)
	}
}

func TestMarshalEventOmitsUserID(t *testing.T) {
	e := Event{
		Type:      EventPodcastFailed,
		PodcastID: "xyz",
		UserID:    "user-1",
		Error:     "synthesis failed",
		Timestamp: 1234567890,
	}
	data, err := MarshalEvent(e)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"podcast_failed","podcast_id":"xyz","progress":0,"error":"synthesis failed","timestamp":1234567890}`
	if string(data) != want {
		t.Errorf("MarshalEvent = %s, want %s", data, want)
	}
}
