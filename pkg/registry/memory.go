package registry

import (
	"context"
	"sort"
	"sync"
)

type memoryRegistry struct {
	mu      sync.RWMutex
	records map[Kind]map[string]Record
}

// NewMemory returns an in-process registry. Records are value-copied
// on the way in and out so callers can mutate their structs freely.
func NewMemory() Registry {
	return &memoryRegistry{
		records: map[Kind]map[string]Record{
			KindRequest: {},
			KindBatch:   {},
		},
	}
}

func (m *memoryRegistry) Set(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.records[rec.Kind]
	if !ok {
		byID = make(map[string]Record)
		m.records[rec.Kind] = byID
	}
	byID[rec.ID] = rec
	return nil
}

func (m *memoryRegistry) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[kind][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *memoryRegistry) List(ctx context.Context, kind Kind, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records[kind]))
	for _, rec := range m.records[kind] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRegistry) Close() error {
	return nil
}
