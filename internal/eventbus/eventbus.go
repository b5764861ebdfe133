// Package eventbus implements the fan-out of domain events to live
// subscribers. Delivery is best effort: a slow subscriber loses events rather
// than blocking publishers or other sinks, and events delivered to one
// subscriber arrive in publish order.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Event represents an arbitrary domain event passed on the bus.
type Event interface{}

// EventBus is the publish/subscribe surface exposed to the engine.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	SubscribeBuffered(size int) <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

const defaultBuffer = 16

// Bus is the default EventBus implementation using fan-out channels.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	closed  bool
	dropped atomic.Uint64
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish sends the event to all subscribers. Delivery per subscriber is
// non-blocking: when a subscriber's buffer is full the event is dropped for
// that subscriber only.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber with the default buffer size.
func (b *Bus) Subscribe() <-chan Event { return b.SubscribeBuffered(defaultBuffer) }

// SubscribeBuffered registers a subscriber with a custom buffer size and
// returns its channel.
func (b *Bus) SubscribeBuffered(size int) <-chan Event {
	if size <= 0 {
		size = defaultBuffer
	}
	ch := make(chan Event, size)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Dropped reports how many events were discarded due to full subscriber
// buffers since the bus was created.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
