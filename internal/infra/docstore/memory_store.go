// Package docstore persists notes in memory, on disk, in Valkey, or in an
// S3 compatible bucket.
package docstore

import (
	"context"
	"sync"

	"github.com/yanqian/ai-notesum/internal/domain/note"
	"github.com/yanqian/ai-notesum/pkg/util"
)

// MemoryStore keeps notes in process memory for tests/dev.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[string]note.Note
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[string]note.Note)}
}

// Get implements note.Repository.
func (s *MemoryStore) Get(_ context.Context, id string) (note.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return note.Note{}, note.NotFound(id)
	}
	return n, nil
}

// Put implements note.Repository.
func (s *MemoryStore) Put(_ context.Context, n note.Note) error {
	if err := note.ValidateID(n.ID); err != nil {
		return err
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = util.NowUTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = n
	return nil
}

var _ note.Repository = (*MemoryStore)(nil)
