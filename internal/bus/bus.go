// Package bus fans decoded control-plane messages out to subscribers.
//
// Delivery is at-most-once with a bounded queue per subscriber: when a
// consumer falls behind, the oldest pending messages are dropped so that
// producers (worker connections) never stall on a slow consumer.
package bus

import (
	"sync"
	"sync/atomic"

	"freight/internal/protocol"
)

// DefaultCapacity is the per-subscriber queue bound.
const DefaultCapacity = 1000

// Bus is a multi-producer, multi-consumer fan-out of status messages.
type Bus struct {
	mu       sync.RWMutex
	capacity int
	subs     map[*Subscription]struct{}
}

// Subscription receives every message published after it was created.
type Subscription struct {
	name    string
	ch      chan protocol.Message
	dropped atomic.Uint64
}

// New constructs a bus. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{capacity: capacity, subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new consumer. The name is only for diagnostics.
func (b *Bus) Subscribe(name string) *Subscription {
	sub := &Subscription{name: name, ch: make(chan protocol.Message, b.capacity)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe detaches a consumer. Its channel is left open; pending
// messages may still be drained.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers msg to every current subscriber without ever blocking.
// A full subscriber queue sheds its oldest entry first.
func (b *Bus) Publish(msg protocol.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		sub.offer(msg)
	}
}

// Subscribers reports the number of attached consumers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *Subscription) offer(msg protocol.Message) {
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		// Queue full: shed the oldest pending message and retry. The
		// consumer may race us for it, in which case the retry succeeds
		// without a drop.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// C is the receive side of the subscription.
func (s *Subscription) C() <-chan protocol.Message { return s.ch }

// Name returns the diagnostic name given at Subscribe time.
func (s *Subscription) Name() string { return s.name }

// Dropped reports how many messages were shed because this subscriber
// fell behind.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }
