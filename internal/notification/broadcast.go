package notification

import (
	"context"
	"log"
	"sync"

	"ticket-queue-backend/internal/queue"
)

// Broadcaster relays events to live subscribers such as SSE streams. A
// subscriber that falls behind misses events rather than blocking others.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan queue.Event]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{subs: make(map[chan queue.Event]struct{}), buffer: buffer}
}

// Subscribe registers a listener. The returned cancel function unregisters
// it and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan queue.Event, func()) {
	ch := make(chan queue.Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers is the number of live listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) Name() string { return "broadcast" }

func (b *Broadcaster) Handle(_ context.Context, evt queue.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			log.Printf("Broadcast subscriber is behind; skipping %s", evt.Kind)
		}
	}
	return nil
}
