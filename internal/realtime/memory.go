package realtime

import (
	"context"
	"sync"
)

// MemoryBroker dispatches events to in-process subscribers. It backs
// single-node deployments without Redis and doubles as the injected
// broker in tests.
type MemoryBroker struct {
	mu          sync.Mutex
	subscribers map[string]map[int]func(Event)
	nextID      int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subscribers: make(map[string]map[int]func(Event))}
}

func (b *MemoryBroker) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	handlers := make([]func(Event), 0, len(b.subscribers[event.Collection]))
	for _, handler := range b.subscribers[event.Collection] {
		handlers = append(handlers, handler)
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, collection string, handler func(Event)) (Unsubscribe, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subscribers[collection]
	if !ok {
		set = make(map[int]func(Event))
		b.subscribers[collection] = set
	}

	b.nextID++
	id := b.nextID
	set[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers[collection], id)
		})
	}, nil
}
