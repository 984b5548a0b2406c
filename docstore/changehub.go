package docstore

import (
	"sync"
)

// ChangeHub is a minimal in-process fan-out for acknowledged writes.
// Engines publish every committed document to the hub; interested components
// subscribe per collection. Callbacks run synchronously on the publishing
// goroutine and must not block.
type ChangeHub struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[string]map[int]func(Document)
}

// NewChangeHub creates an empty ChangeHub.
func NewChangeHub() *ChangeHub {
	return &ChangeHub{
		subscribers: make(map[string]map[int]func(Document)),
	}
}

// Subscribe registers fn for all committed documents of the given collection.
// The returned cancel func removes the subscription and is safe to call more than once.
func (h *ChangeHub) Subscribe(collection string, fn func(Document)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[collection] == nil {
		h.subscribers[collection] = make(map[int]func(Document))
	}

	id := h.nextID
	h.nextID++
	h.subscribers[collection][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers[collection], id)
	}
}

// Publish delivers a committed document to all subscribers of its collection.
func (h *ChangeHub) Publish(doc Document) {
	h.mu.RLock()
	fns := make([]func(Document), 0, len(h.subscribers[doc.Collection]))
	for _, fn := range h.subscribers[doc.Collection] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(doc)
	}
}

// Ensure ChangeHub implements ChangeFeed.
var _ ChangeFeed = (*ChangeHub)(nil)
