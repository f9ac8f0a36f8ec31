package completion

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

// ErrConsumed is yielded when a delta sequence is ranged over a second time.
var ErrConsumed = errors.New("completion stream already consumed")

var errStopped = errors.New("consumer stopped")

// Client turns a Transport into lazy delta sequences.
type Client struct {
	transport Transport
	cfg       Config
	logger    *slog.Logger
}

// NewClient constructs a completion client.
func NewClient(transport Transport, cfg Config, logger *slog.Logger) *Client {
	return &Client{transport: transport, cfg: cfg, logger: logger.With("component", "completion.client")}
}

// Stream returns a single-pass sequence of text deltas for req.
//
// Cancelling ctx ends the sequence without an error; everything yielded so far
// is the partial result. When streaming fails for any other reason the request
// is retried once without streaming and the missing text is yielded as one
// delta. A failure of that retry is yielded as a transport_error.
func (c *Client) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	params := c.params(req)
	var started atomic.Bool
	return func(yield func(string, error) bool) {
		if started.Swap(true) {
			yield("", ErrConsumed)
			return
		}

		var emitted strings.Builder
		err := c.consume(ctx, params, &emitted, yield)
		if err == nil || errors.Is(err, errStopped) {
			return
		}
		if cancelled(ctx, err) {
			c.logger.Debug("completion stream cancelled", "model", params.Model, "partial_len", emitted.Len())
			return
		}

		c.logger.Warn("completion stream failed, falling back to single request", "model", params.Model, "error", err)
		full, fallbackErr := c.transport.Complete(ctx, params)
		if fallbackErr != nil {
			if cancelled(ctx, fallbackErr) {
				return
			}
			yield("", apperrors.Wrap(apperrors.CodeTransportError, "completion request failed", errors.Join(err, fallbackErr)))
			return
		}
		rest, ok := strings.CutPrefix(full, emitted.String())
		if !ok {
			yield("", apperrors.Wrap(apperrors.CodeTransportError, "fallback completion diverged from streamed text", err))
			return
		}
		if rest != "" {
			yield(rest, nil)
		}
	}
}

// Collect drains a delta sequence into one string. The partial text is
// returned alongside any error.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var out strings.Builder
	for delta, err := range seq {
		if err != nil {
			return out.String(), err
		}
		out.WriteString(delta)
	}
	return out.String(), nil
}

func (c *Client) consume(ctx context.Context, params Params, emitted *strings.Builder, yield func(string, error) bool) error {
	stream, err := c.transport.OpenStream(ctx, params)
	if err != nil {
		return err
	}
	defer stream.Close()

	for delta, err := range Deltas(stream) {
		if err != nil {
			return err
		}
		emitted.WriteString(delta)
		if !yield(delta, nil) {
			return errStopped
		}
	}
	return nil
}

func (c *Client) params(req Request) Params {
	params := Params{
		Model:           req.Model,
		Prompt:          req.Prompt,
		System:          strings.TrimSpace(req.System),
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if SupportsTemperature(req.Model) {
		temperature := c.cfg.Temperature
		params.Temperature = &temperature
	}
	return params
}

// Deltas adapts an EventStream into a lazy sequence of non-empty content
// deltas. The sequence ends on EventStreamDone or io.EOF; unrecognized events
// are skipped.
func Deltas(stream EventStream) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			ev, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield("", err)
				}
				return
			}
			switch ev.Kind {
			case EventStreamDone:
				return
			case EventContentDelta:
				if ev.Text == "" {
					continue
				}
				if !yield(ev.Text, nil) {
					return
				}
			}
		}
	}
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
