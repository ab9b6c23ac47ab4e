package repository

import (
	"context"
	"sync"
)

// remoteListeners tracks listeners whose notifications come from a remote
// service (Redis pub/sub, Firestore snapshots). Each listener runs on its own
// context, cancelled by Subscription.Cancel or by closeAll.
type remoteListeners struct {
	mu      sync.Mutex
	nextID  int
	cancels map[int]context.CancelFunc
	closed  bool
}

type remoteSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
	remove func()
}

func (s *remoteSubscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.remove()
	})
}

// add registers a new listener. ok is false once the set has been closed; the
// returned context is then already cancelled.
func (l *remoteListeners) add() (ctx context.Context, sub Subscription, ok bool) {
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		cancel()
		return ctx, &remoteSubscription{cancel: cancel, remove: func() {}}, false
	}
	if l.cancels == nil {
		l.cancels = make(map[int]context.CancelFunc)
	}
	id := l.nextID
	l.nextID++
	l.cancels[id] = cancel

	return ctx, &remoteSubscription{cancel: cancel, remove: func() {
		l.mu.Lock()
		delete(l.cancels, id)
		l.mu.Unlock()
	}}, true
}

func (l *remoteListeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cancels)
}

func (l *remoteListeners) closeAll() {
	l.mu.Lock()
	l.closed = true
	cancels := l.cancels
	l.cancels = nil
	l.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
