// Package notify fans values out to subscribers grouped by key.
//
// Each subscriber owns a channel with a single slot. Publishing never blocks: if a
// subscriber has not consumed the previous value yet, that value is replaced by the new
// one. This suits snapshot streams, where only the latest state matters.
package notify

import (
	"context"
	"sync"
)

// Hub delivers published values to the subscribers of a key.
// It is safe for concurrent use.
type Hub[K comparable, T any] struct {
	mu     sync.Mutex
	subs   map[K]map[*subscriber[T]]struct{}
	closed bool
}

type subscriber[T any] struct {
	ch   chan T
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub[K comparable, T any]() *Hub[K, T] {
	return &Hub[K, T]{
		subs: make(map[K]map[*subscriber[T]]struct{}),
	}
}

// Subscribe registers interest in key. The returned channel is closed when the returned
// cancel func is called, when ctx is done, or when the hub is closed.
// Calling cancel more than once is safe.
func (h *Hub[K, T]) Subscribe(ctx context.Context, key K) (<-chan T, func()) {
	return h.subscribe(ctx, key, nil)
}

// SubscribeWith is Subscribe with initial already waiting in the new channel. Other
// subscribers of key do not see initial.
func (h *Hub[K, T]) SubscribeWith(ctx context.Context, key K, initial T) (<-chan T, func()) {
	return h.subscribe(ctx, key, &initial)
}

func (h *Hub[K, T]) subscribe(ctx context.Context, key K, initial *T) (<-chan T, func()) {
	sub := &subscriber[T]{ch: make(chan T, 1), done: make(chan struct{})}
	if initial != nil {
		sub.ch <- *initial
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber[T]]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() { h.remove(key, sub) }

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel
}

// Publish delivers v to every current subscriber of key.
func (h *Hub[K, T]) Publish(key K, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[key] {
		select {
		case sub.ch <- v:
		default:
			// Drop the stale value and keep the newest.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- v
		}
	}
}

// Count returns the number of live subscriptions for key.
func (h *Hub[K, T]) Count(key K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// Total returns the number of live subscriptions across all keys.
func (h *Hub[K, T]) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}

// Close ends every subscription. Later subscriptions receive an already-closed channel.
func (h *Hub[K, T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for key, subs := range h.subs {
		for sub := range subs {
			close(sub.ch)
			close(sub.done)
		}
		delete(h.subs, key)
	}
}

func (h *Hub[K, T]) remove(key K, sub *subscriber[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subs[key]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	close(sub.done)
	if len(subs) == 0 {
		delete(h.subs, key)
	}
}
