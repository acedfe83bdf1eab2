package events

import (
	"context"
	"strings"
	"sync"
)

// Event carries a topic and an arbitrary payload to subscribers.
type Event struct {
	Topic   string
	Payload any
}

// Handler reacts to an emitted event. Handlers run synchronously on the
// emitting goroutine, so state mutation and the recomputations it triggers
// stay atomic with respect to the caller.
type Handler func(ctx context.Context, e Event)

// Bus fans session events out to subscribed handlers. Events are ephemeral;
// nothing is persisted.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// Subscribe registers a handler for the given topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	topic = strings.TrimSpace(topic)
	if topic == "" || h == nil {
		return
	}
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[string][]Handler)
	}
	b.subs[topic] = append(b.subs[topic], h)
	b.mu.Unlock()
}

// Emit dispatches the event to every handler subscribed to its topic.
func (b *Bus) Emit(ctx context.Context, topic string, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := b.subs[topic]
	b.mu.RUnlock()
	e := Event{Topic: topic, Payload: payload}
	for _, h := range handlers {
		h(ctx, e)
	}
}
