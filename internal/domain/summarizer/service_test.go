package summarizer

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-notesum/internal/domain/budget"
	"github.com/yanqian/ai-notesum/internal/domain/completion"
	"github.com/yanqian/ai-notesum/internal/domain/run"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
	"github.com/yanqian/ai-notesum/pkg/util"
)

type fakeEditor struct {
	mu        sync.Mutex
	selection string
	writes    []string
	cursor    int
}

func (e *fakeEditor) Selection() string { return e.selection }

func (e *fakeEditor) ReplaceSelection(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writes = append(e.writes, text)
	return nil
}

func (e *fakeEditor) SelectionEnd() int { return len([]rune(e.selection)) }

func (e *fakeEditor) SetCursor(pos int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = pos
}

func (e *fakeEditor) Writes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.writes...)
}

type fakeMetadata struct {
	calls  int
	fields map[string]any
	err    error
}

func (m *fakeMetadata) ProcessMetadata(_ context.Context, fn func(map[string]any)) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	if m.fields == nil {
		m.fields = map[string]any{}
	}
	fn(m.fields)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	errs     []error
}

func (n *fakeNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) NotifyError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *fakeNotifier) Count(message string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.messages {
		if m == message {
			count++
		}
	}
	return count
}

// scriptedCompleter answers the n-th call with replies[n].
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  [][]string
	err      error
	requests []completion.Request
}

func (c *scriptedCompleter) Stream(_ context.Context, req completion.Request) iter.Seq2[string, error] {
	c.mu.Lock()
	idx := len(c.requests)
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return func(yield func(string, error) bool) {
		if c.err != nil {
			yield("", c.err)
			return
		}
		if idx >= len(c.replies) {
			return
		}
		for _, delta := range c.replies[idx] {
			if !yield(delta, nil) {
				return
			}
		}
	}
}

type memoryHistory struct {
	mu      sync.Mutex
	records []RunRecord
}

func (h *memoryHistory) Record(_ context.Context, rec RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *memoryHistory) List(_ context.Context, limit int) ([]RunRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit > len(h.records) {
		limit = len(h.records)
	}
	return append([]RunRecord(nil), h.records[:limit]...), nil
}

var longText = strings.Repeat("the quick brown fox jumps over the lazy dog ", 8)

func newTestService(completer Completer, history HistoryRepository, mutate func(*Config)) Service {
	cfg := Config{
		APIKey:        "sk-test",
		Model:         "gpt-4",
		MaxTokens:     500,
		DefaultPrompt: "Summarize this:",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	windows := budget.DefaultTable.With(map[string]int{"tiny": 2500})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(cfg, completer, budget.New(windows, budget.Params{}), run.NewCoordinator(), history, nil, util.NewManualClock(time.Unix(0, 0)), logger)
}

func TestSummarizeReplaceStreamsIntoSelection(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: [][]string{{"Hello", " world"}}}
	history := &memoryHistory{}
	svc := newTestService(completer, history, nil)
	editor := &fakeEditor{selection: longText}
	notifier := &fakeNotifier{}

	res, err := svc.Summarize(context.Background(), Request{Title: "Fox", Editor: editor, Notifier: notifier})
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)
	require.Equal(t, "Hello world", res.Summary)
	require.Equal(t, 1, res.Chunks)
	require.Equal(t, []string{"Hello world"}, editor.Writes())

	require.Len(t, completer.requests, 1)
	require.Equal(t, "Summarize this: title of the note is: Fox\n\n\n"+longText, completer.requests[0].Prompt)
	require.Equal(t, 500, completer.requests[0].MaxOutputTokens)

	require.Len(t, notifier.messages, 3)
	require.True(t, strings.HasPrefix(notifier.messages[0], "Token estimate: ~"))
	require.Contains(t, notifier.messages[0], "500 output (model gpt-4, ~8192 ctx)")
	require.Equal(t, "Generating summary...", notifier.messages[1])
	require.Equal(t, "Selection summarized successfully.", notifier.messages[2])

	require.Len(t, history.records, 1)
	require.Equal(t, StateDone, history.records[0].State)
	require.Equal(t, res.RunID, history.records[0].RunID)
}

func TestSummarizeBelowMovesCursorFirst(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: [][]string{{"Short."}}}
	svc := newTestService(completer, nil, nil)
	editor := &fakeEditor{selection: longText}
	notifier := &fakeNotifier{}

	_, err := svc.Summarize(context.Background(), Request{Editor: editor, Notifier: notifier, Placement: PlacementBelow})
	require.NoError(t, err)
	require.Equal(t, editor.SelectionEnd(), editor.cursor)
	require.Equal(t, []string{"\n", "Short."}, editor.Writes())
	require.Equal(t, 1, notifier.Count("Summary inserted below selection."))
}

func TestSummarizeFrontmatterWritesOnce(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: [][]string{{"Meta", " summary"}}}
	svc := newTestService(completer, nil, nil)
	editor := &fakeEditor{selection: longText}
	meta := &fakeMetadata{fields: map[string]any{"tags": "x"}}
	notifier := &fakeNotifier{}

	res, err := svc.Summarize(context.Background(), Request{Editor: editor, Metadata: meta, Notifier: notifier, Placement: PlacementFrontmatter})
	require.NoError(t, err)
	require.Equal(t, "Meta summary", res.Summary)
	require.Empty(t, editor.Writes())
	require.Equal(t, 1, meta.calls)
	require.Equal(t, "Meta summary", meta.fields["summary"])
	require.Equal(t, "x", meta.fields["tags"])
	require.Equal(t, 1, notifier.Count("Summary added to frontmatter."))
}

func TestSummarizeFrontmatterStorageFailure(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: [][]string{{"text"}}}
	svc := newTestService(completer, nil, nil)
	meta := &fakeMetadata{err: errors.New("disk full")}
	notifier := &fakeNotifier{}

	res, err := svc.Summarize(context.Background(), Request{Editor: &fakeEditor{selection: longText}, Metadata: meta, Notifier: notifier, Placement: PlacementFrontmatter})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeStorageError))
	require.Equal(t, StateFailed, res.State)
	require.Len(t, notifier.errs, 1)
}

func TestSummarizeChunkedPipeline(t *testing.T) {
	t.Parallel()
	para := strings.TrimSpace(strings.Repeat("word ", 1000))
	text := para + "\n\n" + para + "\n\n" + para
	completer := &scriptedCompleter{replies: [][]string{{"A"}, {"B"}, {"Fin", "al"}}}
	svc := newTestService(completer, nil, func(cfg *Config) {
		cfg.Model = "tiny"
		cfg.MaxTokens = 800
	})
	editor := &fakeEditor{selection: text}
	notifier := &fakeNotifier{}

	res, err := svc.Summarize(context.Background(), Request{Editor: editor, Notifier: notifier})
	require.NoError(t, err)
	require.Equal(t, 2, res.Chunks)
	require.Equal(t, "Final", res.Summary)
	require.Equal(t, []string{"Part 1/2: ", "A", "\n\nPart 2/2: ", "B", "\n\nFinal summary:\n", "Final"}, editor.Writes())

	require.Len(t, completer.requests, 3)
	require.Equal(t, 512, completer.requests[0].MaxOutputTokens)
	require.Equal(t, 512, completer.requests[1].MaxOutputTokens)
	require.Equal(t, 800, completer.requests[2].MaxOutputTokens)
	require.True(t, strings.HasSuffix(completer.requests[0].Prompt, para+"\n\n"+para))
	reduction := completer.requests[2].Prompt
	require.Contains(t, reduction, "You will be given 2 partial summaries.")
	require.Contains(t, reduction, "Keep it under 800 tokens.")
	require.True(t, strings.HasSuffix(reduction, "Partial summaries:\n(1) A\n\n(2) B"))

	require.True(t, strings.HasPrefix(notifier.messages[1], "Large selection detected (~"))
}

func TestSummarizeFrontmatterChunkedWritesNoHeaders(t *testing.T) {
	t.Parallel()
	para := strings.TrimSpace(strings.Repeat("word ", 1000))
	text := strings.Join([]string{para, para, para}, "\n\n")
	completer := &scriptedCompleter{replies: [][]string{{"A"}, {"B"}, {"C"}}}
	svc := newTestService(completer, nil, func(cfg *Config) { cfg.Model = "tiny" })
	editor := &fakeEditor{selection: text}
	meta := &fakeMetadata{}

	res, err := svc.Summarize(context.Background(), Request{Editor: editor, Metadata: meta, Placement: PlacementFrontmatter})
	require.NoError(t, err)
	require.Equal(t, "C", res.Summary)
	require.Empty(t, editor.Writes())
	require.Equal(t, 1, meta.calls)
}

func TestSummarizeValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		req     Request
		message string
	}{
		{name: "no document", req: Request{}, message: msgNoDocument},
		{name: "too short", req: Request{Editor: &fakeEditor{selection: "only a few words here"}}, message: msgTooShort},
		{name: "empty selection", req: Request{Editor: &fakeEditor{}}, message: msgTooShort},
		{name: "missing key", mutate: func(cfg *Config) { cfg.APIKey = "" }, req: Request{Editor: &fakeEditor{selection: longText}}, message: msgNoAPIKey},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			completer := &scriptedCompleter{}
			svc := newTestService(completer, nil, tc.mutate)
			notifier := &fakeNotifier{}
			tc.req.Notifier = notifier

			_, err := svc.Summarize(context.Background(), tc.req)
			require.Error(t, err)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
			require.Equal(t, tc.message, apperrors.Message(err))
			require.Len(t, notifier.errs, 1)
			require.Empty(t, completer.requests)
		})
	}
}

func TestSummarizeTransportFailure(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{err: apperrors.Wrap(apperrors.CodeTransportError, "completion request failed", errors.New("boom"))}
	history := &memoryHistory{}
	svc := newTestService(completer, history, nil)
	notifier := &fakeNotifier{}

	res, err := svc.Summarize(context.Background(), Request{Editor: &fakeEditor{selection: longText}, Notifier: notifier})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeTransportError))
	require.Equal(t, StateFailed, res.State)
	require.Len(t, notifier.errs, 1)
	require.Zero(t, notifier.Count("Selection summarized successfully."))
	require.Len(t, history.records, 1)
	require.Equal(t, StateFailed, history.records[0].State)
	require.NotEmpty(t, history.records[0].Error)
}

// gatedCompleter lets the first call stall mid-stream until released.
type gatedCompleter struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (c *gatedCompleter) Stream(_ context.Context, _ completion.Request) iter.Seq2[string, error] {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()
	return func(yield func(string, error) bool) {
		if !first {
			yield("second summary", nil)
			return
		}
		if !yield("early ", nil) {
			return
		}
		close(c.started)
		<-c.release
		yield("LATE", nil)
	}
}

func TestSummarizeLatestRunWins(t *testing.T) {
	t.Parallel()
	completer := &gatedCompleter{started: make(chan struct{}), release: make(chan struct{})}
	history := &memoryHistory{}
	svc := newTestService(completer, history, nil)
	editor := &fakeEditor{selection: longText}
	notifier := &fakeNotifier{}

	type outcome struct {
		res Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := svc.Summarize(context.Background(), Request{Editor: editor, Notifier: notifier})
		first <- outcome{res, err}
	}()
	<-completer.started

	second, err := svc.Summarize(context.Background(), Request{Editor: editor, Notifier: notifier})
	require.NoError(t, err)
	require.Equal(t, StateDone, second.State)

	close(completer.release)
	out := <-first
	require.NoError(t, out.err)
	require.True(t, out.res.Aborted())
	require.Greater(t, second.RunID, out.res.RunID)

	require.Equal(t, []string{"second summary"}, editor.Writes())
	require.Equal(t, 1, notifier.Count("Selection summarized successfully."))
	require.Len(t, history.records, 1)
	require.Equal(t, second.RunID, history.records[0].RunID)
}

func TestCancelSupersedesAndModelSwap(t *testing.T) {
	t.Parallel()
	svc := newTestService(&scriptedCompleter{}, &memoryHistory{}, nil)
	require.Equal(t, "gpt-4", svc.Model())
	svc.SetModel("gpt-4o")
	require.Equal(t, "gpt-4o", svc.Model())
	svc.Cancel()

	runs, err := svc.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestParsePlacement(t *testing.T) {
	t.Parallel()
	p, err := ParsePlacement(" Below ")
	require.NoError(t, err)
	require.Equal(t, PlacementBelow, p)

	_, err = ParsePlacement("sideways")
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}
