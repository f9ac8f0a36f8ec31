// Package note defines stored markdown notes.
package note

import (
	"context"
	"fmt"
	"regexp"
	"time"

	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

// Note is a stored markdown document.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository persists notes.
type Repository interface {
	Get(ctx context.Context, id string) (Note, error)
	Put(ctx context.Context, n Note) error
}

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateID rejects ids that are unsafe as file names or object keys.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid document id %q", id))
	}
	return nil
}

// NotFound reports a missing note.
func NotFound(id string) error {
	return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("document %q not found", id), nil)
}
