// Package output paces streamed text into a destination.
package output

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/yanqian/ai-notesum/pkg/util"
)

// Defaults of the flush policy.
const (
	DefaultThreshold = 96
	DefaultDelay     = 50 * time.Millisecond
)

// Sink receives flushed text.
type Sink func(text string) error

// Gate reports whether the owning run may still write.
type Gate func() bool

// Config tunes the flush policy. Zero values use the defaults.
type Config struct {
	Threshold int
	Delay     time.Duration
}

// Writer buffers deltas and flushes them when the buffer grows past the
// threshold or after Delay without new input, whichever happens first.
// Flushes issued while the gate is closed drop the buffer.
type Writer struct {
	mu     sync.Mutex
	sink   Sink
	gate   Gate
	clock  util.Clock
	cfg    Config
	logger *slog.Logger

	pending    strings.Builder
	pendingLen int
	timer      util.Timer
	generation uint64
	closed     bool

	err       error
	flushes   int
	discarded int
}

// NewWriter constructs a Writer. A nil clock uses the system clock.
func NewWriter(sink Sink, gate Gate, clock util.Clock, cfg Config, logger *slog.Logger) *Writer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &Writer{
		sink:   sink,
		gate:   gate,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With("component", "output.writer"),
	}
}

// Write queues delta.
func (w *Writer) Write(delta string) {
	if delta == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending.WriteString(delta)
	w.pendingLen += utf8.RuneCountInString(delta)
	w.stopTimerLocked()
	if w.pendingLen > w.cfg.Threshold {
		w.flushLocked()
		return
	}
	w.generation++
	gen := w.generation
	w.timer = w.clock.AfterFunc(w.cfg.Delay, func() { w.onIdle(gen) })
}

// Flush writes whatever is pending now. It returns the first sink error seen.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimerLocked()
	w.flushLocked()
	return w.err
}

// Close flushes and stops accepting writes.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimerLocked()
	w.flushLocked()
	w.closed = true
	return w.err
}

// Stats reports how many flushes reached the sink and how many characters
// were dropped by the gate.
func (w *Writer) Stats() (flushes, discarded int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushes, w.discarded
}

func (w *Writer) onIdle(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || w.timer == nil {
		return
	}
	w.timer = nil
	w.flushLocked()
}

func (w *Writer) stopTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Writer) flushLocked() {
	if w.pendingLen == 0 {
		return
	}
	text := w.pending.String()
	w.pending.Reset()
	w.pendingLen = 0
	if w.gate != nil && !w.gate() {
		w.discarded += utf8.RuneCountInString(text)
		return
	}
	if err := w.sink(text); err != nil {
		w.logger.Error("output flush failed", "error", err)
		if w.err == nil {
			w.err = err
		}
		return
	}
	w.flushes++
}
