package job

import (
	"context"
	"slices"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in process memory, indexed by result.
type MemoryRepository struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	byResult map[string][]string // job IDs in creation order
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs:     make(map[string]*Job),
		byResult: make(map[string][]string),
	}
}

// Save stores a clone of job.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	snapshot := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[snapshot.ID]; !ok {
		r.byResult[snapshot.ResultID] = append(r.byResult[snapshot.ResultID], snapshot.ID)
	}
	r.jobs[snapshot.ID] = snapshot
	return nil
}

// FindByID returns a clone of the stored job.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListByResult returns clones of the result's jobs, newest first.
func (r *MemoryRepository) ListByResult(_ context.Context, resultID string) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byResult[resultID]
	list := make([]*Job, 0, len(ids))
	for _, id := range slices.Backward(ids) {
		list = append(list, r.jobs[id].Clone())
	}
	return list, nil
}

// Clear removes every job.
func (r *MemoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.jobs)
	clear(r.byResult)
	return nil
}
