// Package pubsub provides a latest-value broadcaster. Publishers never block: each
// subscriber has a single-slot mailbox and a newer value replaces an unread one.
package pubsub

import (
	"context"
	"sync"
)

// Hub fans values out to any number of subscribers.
type Hub[T any] struct {
	mu      sync.Mutex
	subs    map[chan T]struct{}
	last    T
	hasLast bool
	retain  bool
	closed  bool
	done    chan struct{}
}

// NewHub creates a hub. When retain is true the most recent value is replayed to
// every new subscriber.
func NewHub[T any](retain bool) *Hub[T] {
	return &Hub[T]{
		subs:   make(map[chan T]struct{}),
		retain: retain,
		done:   make(chan struct{}),
	}
}

// Subscribe registers a subscriber. The channel is closed when ctx is done or the hub is closed.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	if h.retain && h.hasLast {
		ch <- h.last
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			h.remove(ch)
		case <-h.done:
		}
	}()

	return ch
}

// Publish delivers v to every subscriber without blocking.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = v
	h.hasLast = true
	for ch := range h.subs {
		Offer(ch, v)
	}
}

// Current returns the last published value.
func (h *Hub[T]) Current() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasLast
}

// Subscribers returns the number of live subscribers.
func (h *Hub[T]) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
	close(h.done)
}

func (h *Hub[T]) remove(ch chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Offer puts v into a single-slot channel, replacing an unread value. It must only be
// called by the channel's sole sender.
func Offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Distinct projects every value of in and forwards it only when it differs from the
// previous projection. The output has the same latest-value semantics as a hub
// subscription and is closed when in is closed.
func Distinct[T, U any](in <-chan T, project func(T) U, equal func(a, b U) bool) <-chan U {
	out := make(chan U, 1)
	go func() {
		defer close(out)
		var prev U
		seen := false
		for v := range in {
			u := project(v)
			if seen && equal(prev, u) {
				continue
			}
			prev, seen = u, true
			Offer(out, u)
		}
	}()
	return out
}
