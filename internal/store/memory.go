package store

import (
	"context"
	"sync"
)

// Memory keeps documents in process. Used by tests and --once runs without
// persistence.
type Memory struct {
	mu   sync.Mutex
	docs map[string]Document
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

func (m *Memory) Get(_ context.Context, key string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

func (m *Memory) Merge(_ context.Context, key string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		doc = make(Document, len(fields))
		m.docs[key] = doc
	}
	for k, v := range fields {
		doc[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func copyDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
