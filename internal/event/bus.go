package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives published events. It runs on the publisher's goroutine.
type Handler func(Event)

type subscription struct {
	types   []Type // empty: all types
	handler Handler
}

// Bus is a synchronous fan-out of events to subscribers.
// Sequence numbers are assigned by Stamp and grow monotonically per bus.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]subscription
	next uint64

	seq atomic.Uint64
	now func() time.Time
}

// NewBus creates a bus. A nil now uses time.Now.
func NewBus(now func() time.Time) *Bus {
	if now == nil {
		now = time.Now
	}
	return &Bus{subs: make(map[uint64]subscription), now: now}
}

// Stamp returns the header for the next event.
func (b *Bus) Stamp() BaseEvent {
	return BaseEvent{Seq: b.seq.Add(1), Ts: b.now().UnixMilli()}
}

// Subscribe registers h for the given types, or for every type when none are given.
// The returned func unsubscribes and is safe to call more than once.
func (b *Bus) Subscribe(h Handler, types ...Type) (cancel func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = subscription{types: types, handler: h}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every matching subscriber.
// A panicking handler is logged and does not stop delivery to the others.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(ev.GetType()) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, ev)
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s subscription) matches(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, want := range s.types {
		if want == t {
			return true
		}
	}
	return false
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked",
				slog.String("type", ev.GetType().String()),
				slog.Uint64("seq", ev.GetSeq()),
				slog.Any("panic", r))
		}
	}()
	h(ev)
}
