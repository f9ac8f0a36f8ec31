package completion

import (
	"context"
	"strings"
)

// EventKind is the closed set of things a transport can report for one
// received line or event.
type EventKind int

const (
	// EventUnrecognized covers malformed payloads and events that carry no text.
	EventUnrecognized EventKind = iota
	// EventContentDelta carries an incremental fragment of generated text.
	EventContentDelta
	// EventStreamDone marks the explicit end of the stream.
	EventStreamDone
)

func (k EventKind) String() string {
	switch k {
	case EventContentDelta:
		return "content_delta"
	case EventStreamDone:
		return "stream_done"
	default:
		return "unrecognized"
	}
}

// Event is one classified transport event.
type Event struct {
	Kind EventKind
	Text string
	// Err is set when an unrecognized event was malformed rather than merely empty.
	Err error
}

// EventStream is a single-pass source of events. Recv returns io.EOF once the
// underlying stream is exhausted.
type EventStream interface {
	Recv() (Event, error)
	Close() error
}

// Params is the transport level request. Temperature is nil when the model
// must not receive one.
type Params struct {
	Model           string
	Prompt          string
	System          string
	MaxOutputTokens int
	Temperature     *float32
}

// Transport issues completion requests over the network.
type Transport interface {
	OpenStream(ctx context.Context, params Params) (EventStream, error)
	Complete(ctx context.Context, params Params) (string, error)
}

// Request is what the summarizer asks for.
type Request struct {
	Prompt          string
	System          string
	Model           string
	MaxOutputTokens int
}

// Config holds client-wide sampling settings.
type Config struct {
	Temperature float32
}

var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// SupportsTemperature reports whether a model accepts a sampling temperature.
// Reasoning families reject the parameter outright.
func SupportsTemperature(model string) bool {
	id := strings.ToLower(strings.TrimSpace(model))
	if strings.HasPrefix(id, "gpt-5-chat") {
		return true
	}
	for _, prefix := range reasoningPrefixes {
		if strings.HasPrefix(id, prefix) {
			return false
		}
	}
	return true
}
