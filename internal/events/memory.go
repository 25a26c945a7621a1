package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus. Handlers run synchronously on the publishing
// goroutine, in subscription order.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler
	closed bool
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[uint64]Handler)}
}

// Publish delivers data to every current subscriber of subject.
func (b *MemoryBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, 0, len(b.subs[subject]))
	for _, h := range b.subs[subject] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribe registers h for subject.
func (b *MemoryBus) Subscribe(subject string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	id := b.nextID
	if b.subs[subject] == nil {
		b.subs[subject] = make(map[uint64]Handler)
	}
	b.subs[subject][id] = h

	return &memorySubscription{bus: b, subject: subject, id: id}, nil
}

// Close drops every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = make(map[string]map[uint64]Handler)
	return nil
}

// SubscriberCount returns the number of subscriptions on subject.
func (b *MemoryBus) SubscriberCount(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[subject])
}

type memorySubscription struct {
	bus     *MemoryBus
	subject string
	id      uint64
	once    sync.Once
}

func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		delete(s.bus.subs[s.subject], s.id)
		if len(s.bus.subs[s.subject]) == 0 {
			delete(s.bus.subs, s.subject)
		}
	})
	return nil
}
