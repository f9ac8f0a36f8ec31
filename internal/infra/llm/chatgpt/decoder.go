package chatgpt

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yanqian/ai-notesum/internal/domain/completion"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"

	typeOutputTextDelta = "response.output_text.delta"
	typeCompleted       = "response.completed"
)

// streamFrame covers both payload shapes seen on the wire: chat completion
// chunks with a nested delta, and typed response events.
type streamFrame struct {
	Type    string `json:"type"`
	Delta   any    `json:"delta"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder reads a server-sent event body line by line. It is single pass: once
// the sentinel or the end of the body is reached every Recv returns io.EOF.
type Decoder struct {
	scanner *bufio.Scanner
	closer  io.Closer
	logger  *slog.Logger
	done    bool
}

// NewDecoder wraps r. If r is an io.Closer it is closed by Close.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1<<20)
	closer, _ := r.(io.Closer)
	return &Decoder{scanner: scanner, closer: closer, logger: logger}
}

// Recv returns the next content delta or the done marker. Malformed lines are
// logged and skipped.
func (d *Decoder) Recv() (completion.Event, error) {
	if d.done {
		return completion.Event{}, io.EOF
	}
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" {
			continue
		}
		ev := ClassifyLine(line)
		switch ev.Kind {
		case completion.EventStreamDone:
			d.done = true
			return ev, nil
		case completion.EventContentDelta:
			return ev, nil
		default:
			if ev.Err != nil {
				d.logger.Warn("skipping malformed stream line", "line", line, "error", ev.Err)
			}
		}
	}
	d.done = true
	if err := d.scanner.Err(); err != nil {
		return completion.Event{}, err
	}
	return completion.Event{}, io.EOF
}

// Close closes the underlying body.
func (d *Decoder) Close() error {
	d.done = true
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// ClassifyLine maps one non-blank stream line to an event.
func ClassifyLine(line string) completion.Event {
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		// event:, id:, retry: and ":" comment lines carry nothing for us.
		return completion.Event{Kind: completion.EventUnrecognized}
	}
	payload = strings.TrimSpace(payload)
	if payload == doneSentinel {
		return completion.Event{Kind: completion.EventStreamDone}
	}

	var frame streamFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return completion.Event{Kind: completion.EventUnrecognized, Err: fmt.Errorf("decode stream chunk: %w", err)}
	}
	switch frame.Type {
	case "":
	case typeOutputTextDelta:
		if text, ok := frame.Delta.(string); ok && text != "" {
			return completion.Event{Kind: completion.EventContentDelta, Text: text}
		}
		return completion.Event{Kind: completion.EventUnrecognized}
	case typeCompleted:
		return completion.Event{Kind: completion.EventStreamDone}
	default:
		return completion.Event{Kind: completion.EventUnrecognized}
	}

	if len(frame.Choices) == 0 || frame.Choices[0].Delta.Content == "" {
		return completion.Event{Kind: completion.EventUnrecognized}
	}
	return completion.Event{Kind: completion.EventContentDelta, Text: frame.Choices[0].Delta.Content}
}

var _ completion.EventStream = (*Decoder)(nil)
