package repository

import "sync"

// broker fans change notifications out to in-process listeners. Each listener
// owns a goroutine and a one-slot signal channel, so bursts of writes collapse
// into a single reload, the way value listeners behave in hosted databases.
type broker struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]*localSubscription
	closed    bool
}

func newBroker() *broker {
	return &broker{listeners: make(map[string]map[int]*localSubscription)}
}

type localSubscription struct {
	b      *broker
	key    string
	id     int
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// subscribe registers deliver under key. deliver runs once immediately and then
// after every notify(key), until the subscription is cancelled. On a closed
// broker fail receives ErrClosed instead.
func (b *broker) subscribe(key string, deliver func(), fail func(error)) *localSubscription {
	s := &localSubscription{
		b:      b,
		key:    key,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.done)
		go fail(ErrClosed)
		return s
	}
	s.id = b.nextID
	b.nextID++
	if b.listeners[key] == nil {
		b.listeners[key] = make(map[int]*localSubscription)
	}
	b.listeners[key][s.id] = s
	b.mu.Unlock()

	s.signal <- struct{}{}
	go s.run(deliver)
	return s
}

func (s *localSubscription) run(deliver func()) {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
			select {
			case <-s.done:
				return
			default:
			}
			deliver()
		}
	}
}

func (s *localSubscription) Cancel() {
	s.once.Do(func() {
		s.b.remove(s)
		close(s.done)
	})
}

func (b *broker) remove(s *localSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.listeners[s.key]; ok {
		delete(set, s.id)
		if len(set) == 0 {
			delete(b.listeners, s.key)
		}
	}
}

func (b *broker) notify(keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		for _, s := range b.listeners[key] {
			select {
			case s.signal <- struct{}{}:
			default:
			}
		}
	}
}

// count returns the number of live listeners.
func (b *broker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, set := range b.listeners {
		n += len(set)
	}
	return n
}

// close cancels every listener; later subscriptions fail with ErrClosed.
func (b *broker) close() {
	b.mu.Lock()
	var all []*localSubscription
	for _, set := range b.listeners {
		for _, s := range set {
			all = append(all, s)
		}
	}
	b.closed = true
	b.mu.Unlock()

	for _, s := range all {
		s.Cancel()
	}
}

func conversationsKey(scope string) string { return "conversations:" + scope }

func messagesKey(scope, conversationID string) string {
	return "messages:" + scope + "/" + conversationID
}
