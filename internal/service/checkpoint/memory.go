package checkpoint

import (
	"context"
	"sort"
	"sync"
)

type memoryEntry struct {
	data    []byte
	updated int64
}

// memoryBackend is the volatile store used in development and tests.
type memoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory returns a non-durable in-process store.
func NewMemory() Store {
	return newStore(&memoryBackend{entries: make(map[string]memoryEntry)})
}

func (m *memoryBackend) name() string { return BackendMemory }

func (m *memoryBackend) load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (m *memoryBackend) save(_ context.Context, key string, data []byte, updated int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{data: append([]byte(nil), data...), updated: updated}
	return nil
}

func (m *memoryBackend) remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memoryBackend) keys(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	type kv struct {
		key     string
		updated int64
	}
	all := make([]kv, 0, len(m.entries))
	for k, e := range m.entries {
		all = append(all, kv{k, e.updated})
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].updated != all[j].updated {
			return all[i].updated > all[j].updated
		}
		return all[i].key < all[j].key
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.key
	}
	return out, nil
}

func (m *memoryBackend) ping(context.Context) error { return nil }

func (m *memoryBackend) close() error { return nil }
