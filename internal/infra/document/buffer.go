// Package document provides an in-memory editable note with selection,
// cursor, and a YAML front matter block.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

// Edit describes one applied ReplaceSelection call.
type Edit struct {
	Offset  int    `json:"offset"`
	Removed int    `json:"removed"`
	Text    string `json:"text"`
}

// Buffer is a note being edited. Offsets are in runes.
type Buffer struct {
	mu        sync.Mutex
	id        string
	title     string
	text      []rune
	selStart  int
	selEnd    int
	observers []func(Edit)
}

// NewBuffer returns a buffer with the cursor at the start.
func NewBuffer(id, title, text string) *Buffer {
	return &Buffer{id: id, title: title, text: []rune(text)}
}

// TitleFromPath derives a note title from a file name.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ID returns the document id.
func (b *Buffer) ID() string { return b.id }

// Title returns the note title.
func (b *Buffer) Title() string { return b.title }

// Subscribe registers fn to be called after every edit.
func (b *Buffer) Subscribe(fn func(Edit)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// Text returns the whole document.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

// Len returns the document length in runes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}

// Select marks [from, to) as the selection.
func (b *Buffer) Select(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from < 0 || to < from || to > len(b.text) {
		return apperrors.InvalidInput(fmt.Sprintf("selection [%d,%d) is outside the document (length %d)", from, to, len(b.text)))
	}
	b.selStart, b.selEnd = from, to
	return nil
}

// SelectAll selects the whole document.
func (b *Buffer) SelectAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selStart, b.selEnd = 0, len(b.text)
}

// SelectLines selects lines first through last, 1-based and inclusive,
// including the trailing newline of the last line when there is one.
func (b *Buffer) SelectLines(first, last int) error {
	b.mu.Lock()
	lines := splitLines(string(b.text))
	b.mu.Unlock()
	if first < 1 || last < first || last > len(lines) {
		return apperrors.InvalidInput(fmt.Sprintf("line range %d-%d is outside the document (%d lines)", first, last, len(lines)))
	}
	from := 0
	for _, line := range lines[:first-1] {
		from += utf8.RuneCountInString(line)
	}
	to := from
	for _, line := range lines[first-1 : last] {
		to += utf8.RuneCountInString(line)
	}
	return b.Select(from, to)
}

// LineCount is the number of lines. A trailing newline does not start a
// new line.
func (b *Buffer) LineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(splitLines(string(b.text)))
}

func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Selection returns the selected text.
func (b *Buffer) Selection() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text[b.selStart:b.selEnd])
}

// SelectionEnd returns the offset just past the selection.
func (b *Buffer) SelectionEnd() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selEnd
}

// SetCursor collapses the selection at pos, clamped to the document.
func (b *Buffer) SetCursor(pos int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos = min(max(pos, 0), len(b.text))
	b.selStart, b.selEnd = pos, pos
}

// Cursor returns the selection end, which is where the next insert lands.
func (b *Buffer) Cursor() int {
	return b.SelectionEnd()
}

// ReplaceSelection replaces the selection with text and leaves the cursor
// right after the inserted text.
func (b *Buffer) ReplaceSelection(text string) error {
	b.mu.Lock()
	inserted := []rune(text)
	edit := Edit{Offset: b.selStart, Removed: b.selEnd - b.selStart, Text: text}
	next := make([]rune, 0, len(b.text)-edit.Removed+len(inserted))
	next = append(next, b.text[:b.selStart]...)
	next = append(next, inserted...)
	next = append(next, b.text[b.selEnd:]...)
	b.text = next
	b.selStart += len(inserted)
	b.selEnd = b.selStart
	observers := slices.Clone(b.observers)
	b.mu.Unlock()

	for _, fn := range observers {
		fn(edit)
	}
	return nil
}

// ProcessMetadata applies fn to the front matter fields and rewrites the
// block. The selection keeps pointing at the same body text.
func (b *Buffer) ProcessMetadata(_ context.Context, fn func(fields map[string]any)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := string(b.text)
	fm, err := ParseFrontMatter(current)
	if err != nil {
		return err
	}
	fields := fm.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	fn(fields)
	block, err := RenderFrontMatter(fields)
	if err != nil {
		return err
	}

	oldLen := utf8.RuneCountInString(current) - utf8.RuneCountInString(fm.Body)
	shift := utf8.RuneCountInString(block) - oldLen
	b.text = []rune(block + fm.Body)
	b.selStart = shiftOffset(b.selStart, oldLen, shift)
	b.selEnd = shiftOffset(b.selEnd, oldLen, shift)
	return nil
}

func shiftOffset(pos, blockLen, shift int) int {
	if pos < blockLen {
		return max(0, blockLen+shift)
	}
	return pos + shift
}
