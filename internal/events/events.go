// Package events is the server's notification bus: a tagged union of
// player lifecycle and status events, fanned out to any number of
// subscribers (such as the optional journal sink).
package events

import (
	"log"
	"sync"

	"github.com/srosecker/resonance-slimproto/internal/player"
)

// Kind identifies which variant of Event is populated.
type Kind int

const (
	KindPlayerConnected Kind = iota
	KindPlayerDisconnected
	KindPlayerStatus
	KindPlayerTrackFinished
)

// Event is a tagged union over the four event kinds the server publishes.
// Only the fields relevant to Kind are meaningful; the others are zero.
type Event struct {
	Kind     Kind
	PlayerID player.MAC

	// KindPlayerConnected
	Name  string
	Model string

	// KindPlayerStatus
	State               player.State
	Volume              int
	Muted               bool
	ElapsedSeconds      uint32
	ElapsedMilliseconds uint32

	// KindPlayerTrackFinished
	StreamGeneration *uint64
}

// Subscriber receives published events. Implementations must not block for
// long: Publish calls subscribers synchronously, one after another.
type Subscriber func(Event)

// Bus is an in-process fan-out publisher. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn to receive every future published event. There is
// no unsubscribe; subscribers are expected to live as long as the bus.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish delivers evt to every current subscriber. A subscriber panic is
// recovered and logged so one misbehaving sink cannot take down the
// protocol server's dispatch loop.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, fn := range subs {
		b.deliver(fn, evt)
	}
}

func (b *Bus) deliver(fn Subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: subscriber panic: %v", r)
		}
	}()
	fn(evt)
}
