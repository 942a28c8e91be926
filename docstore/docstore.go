// Package docstore stores JSON documents in named collections.
//
// It is the durable side of the board: tiles are written here
// and read back in bulk when a board loads.
// Implementations are safe for concurrent use.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Store is a collection oriented document database.
type Store interface {
	// GetAll returns every document in collection ordered by id.
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set creates or replaces a document.
	Set(ctx context.Context, collection, id string, data json.RawMessage) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Subscribe calls fn after every Set or Delete made through this Store in collection.
	// fn must not block. The returned func stops the subscription.
	Subscribe(collection string, fn func(Change)) (cancel func())
	Close() error
}

type Document struct {
	ID   string
	Data json.RawMessage
}

// ChangeKind is the type of a document change.
type ChangeKind uint8

const (
	Updated ChangeKind = iota + 1
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("ChangeKind(%d)", k)
	}
}

// Change describes a single write observed by a subscriber.
// Data is nil for deletions.
type Change struct {
	Collection string
	ID         string
	Kind       ChangeKind
	Data       json.RawMessage
}

// hub fans changes out to subscribers.
// Subscribers are called synchronously by the goroutine that made the write,
// outside of any store lock.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func(Change)
}

func (h *hub) Subscribe(collection string, fn func(Change)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[string]map[int]func(Change))
	}
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]func(Change))
	}
	id := h.next
	h.next++
	h.subs[collection][id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[collection], id)
		})
	}
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	fns := make([]func(Change), 0, len(h.subs[c.Collection]))
	for _, fn := range h.subs[c.Collection] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func validate(collection, id string) error {
	if collection == "" {
		return errors.New("empty collection name")
	}
	if id == "" {
		return errors.New("empty document id")
	}
	return nil
}

// clone copies data so callers cannot modify stored documents.
func clone(data json.RawMessage) json.RawMessage {
	if data == nil {
		return nil
	}
	return append(json.RawMessage(nil), data...)
}
