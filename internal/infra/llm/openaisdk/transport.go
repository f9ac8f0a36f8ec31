// Package openaisdk streams completions through github.com/sashabaranov/go-openai,
// classifying its typed stream responses into completion events.
package openaisdk

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yanqian/ai-notesum/internal/domain/completion"
)

// ChatClient captures the subset of the go-openai client used by the transport.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Transport implements completion.Transport on top of go-openai.
type Transport struct {
	client ChatClient
	logger *slog.Logger
}

// New wraps an existing go-openai client.
func New(client ChatClient, logger *slog.Logger) *Transport {
	return &Transport{client: client, logger: logger.With("component", "openaisdk.transport")}
}

// NewClient builds the go-openai client for apiKey, honoring a custom base URL.
func NewClient(apiKey, baseURL string) (*openai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key cannot be empty")
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg), nil
}

// OpenStream implements completion.Transport.
func (t *Transport) OpenStream(ctx context.Context, params completion.Params) (completion.EventStream, error) {
	req := buildRequest(params)
	req.Stream = true
	stream, err := t.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &eventStream{stream: stream}, nil
}

// Complete implements completion.Transport.
func (t *Transport) Complete(ctx context.Context, params completion.Params) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, buildRequest(params))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildRequest maps the output cap to max_completion_tokens, the field this
// API expects for every model family.
func buildRequest(params completion.Params) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if params.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: params.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: params.Prompt})
	req := openai.ChatCompletionRequest{
		Model:               params.Model,
		Messages:            messages,
		MaxCompletionTokens: params.MaxOutputTokens,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	return req
}

type eventStream struct {
	stream *openai.ChatCompletionStream
}

func (s *eventStream) Recv() (completion.Event, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return completion.Event{}, err
	}
	return classify(resp), nil
}

func (s *eventStream) Close() error {
	return s.stream.Close()
}

func classify(resp openai.ChatCompletionStreamResponse) completion.Event {
	var (
		text     strings.Builder
		finished bool
	)
	for _, choice := range resp.Choices {
		text.WriteString(choice.Delta.Content)
		if choice.FinishReason != "" {
			finished = true
		}
	}
	switch {
	case text.Len() > 0:
		return completion.Event{Kind: completion.EventContentDelta, Text: text.String()}
	case finished:
		return completion.Event{Kind: completion.EventStreamDone}
	default:
		return completion.Event{Kind: completion.EventUnrecognized}
	}
}

var _ completion.Transport = (*Transport)(nil)
