package docstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yanqian/ai-notesum/internal/domain/note"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

// FileStore keeps each note as <dir>/<id>.md. The title is the id.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to create document directory", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get implements note.Repository.
func (s *FileStore) Get(_ context.Context, id string) (note.Note, error) {
	if err := note.ValidateID(id); err != nil {
		return note.Note{}, err
	}
	path := s.path(id)
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return note.Note{}, note.NotFound(id)
		}
		return note.Note{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to read document", err)
	}
	n := note.Note{ID: id, Title: id, Body: string(body)}
	if info, err := os.Stat(path); err == nil {
		n.UpdatedAt = info.ModTime().UTC()
	}
	return n, nil
}

// Put implements note.Repository. The file is replaced atomically.
func (s *FileStore) Put(_ context.Context, n note.Note) error {
	if err := note.ValidateID(n.ID); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+n.ID+".*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to write document", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(n.Body); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to write document", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to write document", err)
	}
	if err := os.Rename(tmp.Name(), s.path(n.ID)); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to write document", err)
	}
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".md")
}

var _ note.Repository = (*FileStore)(nil)
