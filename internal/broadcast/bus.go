// Package broadcast implements the Broadcast Bus: a channel-subscriber
// fan-out that pushes state-change envelopes to connected dashboards.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/signalgrid/controlplane/internal/engine"
	"github.com/signalgrid/controlplane/internal/metrics"
)

const defaultSubscriberBuffer = 64

// Bus fans engine.Envelope values out to every live subscriber. Delivery to
// a slow or disconnected subscriber is dropped rather than allowed to block
// the publisher.
type Bus struct {
	log *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan<- engine.Envelope]struct{}
}

// New constructs an empty Bus. log may be nil, in which case slog.Default()
// is used.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:         log,
		subscribers: make(map[chan<- engine.Envelope]struct{}),
	}
}

// Subscribe registers ch to receive future envelopes and returns a function
// that unsubscribes it. ch should be buffered; an unbuffered or full channel
// only ever receives envelopes that arrive while it has room.
func (b *Bus) Subscribe(ch chan<- engine.Envelope) func() {
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	count := len(b.subscribers)
	b.mu.Unlock()
	metrics.BroadcastSubscribers.Set(float64(count))

	return func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		count := len(b.subscribers)
		b.mu.Unlock()
		metrics.BroadcastSubscribers.Set(float64(count))
	}
}

// SubscriberCount reports the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish implements engine.Publisher. It never blocks: subscribers whose
// channel is full miss the envelope and must bootstrap from the Phase
// Cache on reconnect.
func (b *Bus) Publish(env engine.Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- env:
		default:
			b.log.Warn("dropping broadcast envelope for slow subscriber")
		}
	}
}

// NewSubscription allocates a buffered channel sized for one subscriber and
// registers it with the bus.
func (b *Bus) NewSubscription() (<-chan engine.Envelope, func()) {
	ch := make(chan engine.Envelope, defaultSubscriberBuffer)
	unsubscribe := b.Subscribe(ch)
	return ch, unsubscribe
}
