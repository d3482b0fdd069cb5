package handler

import (
	"sync"

	"github.com/capitalize-ai/knowledge-chat/internal/controller"
)

const subscriberBuffer = 16

// Hub fans controller changes out to stream subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan controller.Change]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan controller.Change]struct{})}
}

// Hook returns the controller hook that feeds the hub.
func (h *Hub) Hook() controller.Hook {
	return h.Publish
}

// Publish delivers ch to every subscriber without blocking. A subscriber
// that has fallen behind loses its oldest pending change; every change
// carries the full state, so the newest one is enough to catch up.
func (h *Hub) Publish(ch controller.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub <- ch:
			continue
		default:
		}
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- ch:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes it
// and must be called exactly once.
func (h *Hub) Subscribe() (<-chan controller.Change, func()) {
	sub := make(chan controller.Change, subscriberBuffer)

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub, func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
