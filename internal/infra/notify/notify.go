// Package notify delivers user facing summarizer messages.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"

	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

// LogNotifier writes messages to the structured log. It is the default
// when a request carries no notifier of its own.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Notify implements summarizer.Notifier.
func (n *LogNotifier) Notify(message string) {
	n.logger.Info(message)
}

// NotifyError implements summarizer.Notifier.
func (n *LogNotifier) NotifyError(err error) {
	n.logger.Warn(apperrors.Message(err), "error", err)
}

// TerminalNotifier prints colored messages for the CLI.
type TerminalNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	notice *color.Color
	fail   *color.Color
}

// NewTerminalNotifier writes to out, usually stderr.
func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{
		out:    out,
		notice: color.New(color.FgCyan),
		fail:   color.New(color.FgRed, color.Bold),
	}
}

// Notify implements summarizer.Notifier.
func (n *TerminalNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notice.Fprintf(n.out, "  • %s\n", message)
}

// NotifyError implements summarizer.Notifier.
func (n *TerminalNotifier) NotifyError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail.Fprintf(n.out, "  ✗ %s\n", apperrors.Message(err))
}

// Funcs adapts two callbacks to summarizer.Notifier.
type Funcs struct {
	OnNotice func(message string)
	OnError  func(err error)
}

// Notify implements summarizer.Notifier.
func (f Funcs) Notify(message string) {
	if f.OnNotice != nil {
		f.OnNotice(message)
	}
}

// NotifyError implements summarizer.Notifier.
func (f Funcs) NotifyError(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// String renders an error the way users see it.
func String(err error) string {
	return fmt.Sprintf("Error: %s", apperrors.Message(err))
}

var (
	_ summarizer.Notifier = (*LogNotifier)(nil)
	_ summarizer.Notifier = (*TerminalNotifier)(nil)
	_ summarizer.Notifier = Funcs{}
)
