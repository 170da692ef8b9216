package audit

import (
	"context"
	"sync"
)

// MemoryRepository keeps records in process, for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
	err     error
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Append stores rec, or returns the configured failure.
func (r *MemoryRepository) Append(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

// FailWith makes every later Append return err. A nil err restores writes.
func (r *MemoryRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Records returns a copy of the stored records in insertion order.
func (r *MemoryRepository) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Record(nil), r.records...)
}
