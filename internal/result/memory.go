package result

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// Results live until the list is cleared or the process exits.
type MemoryRepository struct {
	mu      sync.RWMutex
	results map[string]*Result
	// seq orders results saved within the same clock tick.
	seq   map[string]uint64
	count uint64
}

// NewMemoryRepository creates a new in-memory result repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		results: make(map[string]*Result),
		seq:     make(map[string]uint64),
	}
}

// Save stores a clone of r.
func (m *MemoryRepository) Save(_ context.Context, r *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seq[r.ID]; !ok {
		m.count++
		m.seq[r.ID] = m.count
	}
	m.results[r.ID] = r.Clone()
	return nil
}

// FindByID returns a clone of the stored result.
func (m *MemoryRepository) FindByID(_ context.Context, id string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// Update applies fn to a copy of the stored result and stores the copy if fn succeeds.
func (m *MemoryRepository) Update(_ context.Context, id string, fn func(*Result) error) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := stored.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	m.results[id] = updated
	return updated.Clone(), nil
}

// List returns clones of all results, newest first.
func (m *MemoryRepository) List(_ context.Context) ([]*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Result, 0, len(m.results))
	for _, r := range m.results {
		list = append(list, r.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return m.seq[list[i].ID] > m.seq[list[j].ID]
	})
	return list, nil
}

// Clear removes every result.
func (m *MemoryRepository) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]*Result)
	m.seq = make(map[string]uint64)
	return nil
}
