package note

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

func TestValidateID(t *testing.T) {
	t.Parallel()
	for _, id := range []string{"meeting-notes", "2024.06.01", "a_b"} {
		require.NoError(t, ValidateID(id), id)
	}
	for _, id := range []string{"", "../etc/passwd", ".hidden", "a/b", "with space"} {
		require.True(t, apperrors.IsCode(ValidateID(id), apperrors.CodeInvalidInput), id)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	require.True(t, apperrors.IsCode(NotFound("x"), apperrors.CodeNotFound))
}
