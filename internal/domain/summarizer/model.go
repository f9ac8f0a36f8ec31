package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yanqian/ai-notesum/internal/domain/output"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
	"github.com/yanqian/ai-notesum/pkg/metrics"
)

// Placement decides where the finished summary goes.
type Placement string

const (
	// PlacementReplace streams the summary over the selection.
	PlacementReplace Placement = "replace"
	// PlacementBelow streams the summary after the selection.
	PlacementBelow Placement = "below"
	// PlacementFrontmatter writes the summary into the document metadata once.
	PlacementFrontmatter Placement = "frontmatter"
)

// ParsePlacement validates a placement name. Empty input yields "".
func ParsePlacement(raw string) (Placement, error) {
	switch p := Placement(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", PlacementReplace, PlacementBelow, PlacementFrontmatter:
		return p, nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown placement %q", raw))
	}
}

// Live reports whether deltas are written to the editor while streaming.
func (p Placement) Live() bool {
	return p != PlacementFrontmatter
}

func (p Placement) doneMessage() string {
	switch p {
	case PlacementBelow:
		return "Summary inserted below selection."
	case PlacementFrontmatter:
		return "Summary added to frontmatter."
	default:
		return "Selection summarized successfully."
	}
}

// State is a step of the assembly state machine.
type State string

const (
	StateIdle             State = "idle"
	StateBudgeting        State = "budgeting"
	StateSingleCall       State = "single_call"
	StateChunkingPipeline State = "chunking_pipeline"
	StateReducing         State = "reducing"
	StatePlacing          State = "placing"
	StateDone             State = "done"
	StateAborted          State = "aborted"
	StateFailed           State = "failed"
)

// Config configures the summarizer.
type Config struct {
	APIKey            string
	Model             string
	MaxTokens         int
	SystemInstruction string
	DefaultPrompt     string
	Placement         Placement
	MinWords          int
	MetadataKey       string
	Output            output.Config
}

// Editor is the live destination of a summary.
type Editor interface {
	Selection() string
	ReplaceSelection(text string) error
	SelectionEnd() int
	SetCursor(pos int)
}

// MetadataStore edits the structured key/value block of a document atomically.
type MetadataStore interface {
	ProcessMetadata(ctx context.Context, fn func(fields map[string]any)) error
}

// Notifier displays messages to the user.
type Notifier interface {
	Notify(message string)
	NotifyError(err error)
}

// RunRecord is the history entry of one finished or failed run.
type RunRecord struct {
	RunID      uint64    `json:"runId"`
	DocumentID string    `json:"documentId,omitempty"`
	Model      string    `json:"model"`
	Placement  Placement `json:"placement"`
	Chunks     int       `json:"chunks"`
	State      State     `json:"state"`
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// HistoryRepository persists run records.
type HistoryRepository interface {
	Record(ctx context.Context, rec RunRecord) error
	List(ctx context.Context, limit int) ([]RunRecord, error)
}

// Request is one user triggered invocation. Editor is nil when no document
// is open. Zero overrides use the configured defaults.
type Request struct {
	DocumentID string
	Title      string
	Editor     Editor
	Metadata   MetadataStore
	Notifier   Notifier
	Placement  Placement
	Model      string
	MaxTokens  int
}

// Result describes how a run ended.
type Result struct {
	RunID     uint64                `json:"runId"`
	Summary   string                `json:"summary"`
	Chunks    int                   `json:"chunks"`
	State     State                 `json:"state"`
	Placement Placement             `json:"placement"`
	Model     string                `json:"model"`
	Estimate  metrics.TokenEstimate `json:"estimate"`
}

// Aborted reports whether a newer run superseded this one.
func (r Result) Aborted() bool {
	return r.State == StateAborted
}
