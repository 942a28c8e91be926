package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory is a Store that keeps documents in memory.
type Memory struct {
	hub

	mu   sync.RWMutex
	docs map[string]map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]json.RawMessage)}
}

func (m *Memory) GetAll(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]Document, 0, len(m.docs[collection]))
	for id, data := range m.docs[collection] {
		docs = append(docs, Document{ID: id, Data: clone(data)})
	}
	slices.SortFunc(docs, func(a, b Document) int { return strings.Compare(a.ID, b.ID) })
	return docs, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: clone(data)}, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data json.RawMessage) error {
	if err := validate(collection, id); err != nil {
		return fmt.Errorf("docstore.Memory.Set: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("docstore.Memory.Set: %s/%s: invalid json", collection, id)
	}
	m.mu.Lock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]json.RawMessage)
	}
	m.docs[collection][id] = clone(data)
	m.mu.Unlock()

	m.publish(Change{Collection: collection, ID: id, Kind: Updated, Data: clone(data)})
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	_, existed := m.docs[collection][id]
	delete(m.docs[collection], id)
	m.mu.Unlock()

	if existed {
		m.publish(Change{Collection: collection, ID: id, Kind: Deleted})
	}
	return nil
}

func (m *Memory) Close() error { return nil }
