// Package runrepo stores the history of summarization runs.
package runrepo

import (
	"context"
	"sync"

	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
)

const defaultCapacity = 500

// MemoryRepository keeps the most recent runs in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	records  []summarizer.RunRecord
	capacity int
}

// NewMemoryRepository constructs a repository bounded to capacity records.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryRepository{capacity: capacity}
}

// Record implements summarizer.HistoryRepository.
func (r *MemoryRepository) Record(_ context.Context, rec summarizer.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if over := len(r.records) - r.capacity; over > 0 {
		r.records = append(r.records[:0:0], r.records[over:]...)
	}
	return nil
}

// List returns up to limit records, newest first.
func (r *MemoryRepository) List(_ context.Context, limit int) ([]summarizer.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]summarizer.RunRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

var _ summarizer.HistoryRepository = (*MemoryRepository)(nil)
