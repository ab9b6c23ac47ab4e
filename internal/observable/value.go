// Package observable holds published state that many readers can watch.
package observable

import (
	"context"
	"sync"
)

// Value holds the current state of a store and fans every change out to its
// watchers. Watchers are conflated: a slow reader skips intermediate values and
// always ends up with the latest one.
type Value[T any] struct {
	mu       sync.Mutex
	current  T
	watchers map[int]chan T
	nextID   int
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current:  initial,
		watchers: make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies watchers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = val
	v.broadcast()
}

// Update applies fn to the current value atomically and publishes the result.
// fn must not call back into v.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	v.broadcast()
	return v.current
}

// Watch returns a channel that first yields the current value and then every
// later change. The channel is closed once ctx is done.
func (v *Value[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.watchers[id] = ch
	ch <- v.current
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.watchers, id)
		close(ch)
		v.mu.Unlock()
	}()
	return ch
}

// Watchers reports how many watch channels are open.
func (v *Value[T]) Watchers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watchers)
}

// broadcast must be called with v.mu held.
func (v *Value[T]) broadcast() {
	for _, ch := range v.watchers {
		select {
		case ch <- v.current:
		default:
			// Drop the stale pending value so the watcher only sees the latest.
			select {
			case <-ch:
			default:
			}
			ch <- v.current
		}
	}
}
