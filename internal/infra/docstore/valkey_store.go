package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-notesum/internal/domain/note"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
	"github.com/yanqian/ai-notesum/pkg/util"
)

// ValkeyStore persists notes using a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "notesum"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get implements note.Repository.
func (s *ValkeyStore) Get(ctx context.Context, id string) (note.Note, error) {
	cmd := s.client.B().Get().Key(s.noteKey(id)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return note.Note{}, note.NotFound(id)
		}
		return note.Note{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load document", err)
	}
	var n note.Note
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return note.Note{}, apperrors.Wrap(apperrors.CodeStorageError, "stored document is corrupt", err)
	}
	return n, nil
}

// Put implements note.Repository.
func (s *ValkeyStore) Put(ctx context.Context, n note.Note) error {
	if err := note.ValidateID(n.ID); err != nil {
		return err
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = util.NowUTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to encode document", err)
	}
	cmd := s.client.B().Set().Key(s.noteKey(n.ID)).Value(string(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to save document", err)
	}
	return nil
}

func (s *ValkeyStore) noteKey(id string) string {
	return fmt.Sprintf("%s:note:%s", s.prefix, id)
}

var _ note.Repository = (*ValkeyStore)(nil)
