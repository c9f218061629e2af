package events

import (
	"sync"
	"testing"

	"github.com/srosecker/resonance-slimproto/internal/player"
)

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	var received []Event

	b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})
	b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	b.Publish(Event{Kind: KindPlayerConnected, PlayerID: "aa:bb:cc:dd:ee:ff", Name: "Kitchen"})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(received))
	}
	for _, e := range received {
		if e.PlayerID != "aa:bb:cc:dd:ee:ff" || e.Name != "Kitchen" {
			t.Fatalf("unexpected event: %+v", e)
		}
	}
}

func TestBus_SubscriberPanicDoesNotStopDelivery(t *testing.T) {
	b := NewBus()
	var called bool

	b.Subscribe(func(Event) { panic("boom") })
	b.Subscribe(func(Event) { called = true })

	b.Publish(Event{Kind: KindPlayerDisconnected, PlayerID: "11:22:33:44:55:66"})

	if !called {
		t.Fatal("second subscriber should still be called after first panics")
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	b := NewBus()
	// Must not panic with zero subscribers.
	b.Publish(Event{Kind: KindPlayerStatus, State: player.StatePlaying})
}
