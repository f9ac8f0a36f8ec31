package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-notesum/internal/domain/completion"
	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/config"
	"github.com/yanqian/ai-notesum/internal/infra/docstore"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

type stubModels []string

func (s stubModels) Models(context.Context) []string { return s }

type stubService struct {
	summarizer.Service
	model     string
	cancelled int
}

func (s *stubService) Model() string         { return s.model }
func (s *stubService) SetModel(model string) { s.model = model }
func (s *stubService) Cancel()               { s.cancelled++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPluginInitializeKeepsAvailableModel(t *testing.T) {
	t.Parallel()
	svc := &stubService{model: "gpt-4o"}
	p := NewPlugin(svc, stubModels{"gpt-4", "gpt-4o"}, discardLogger())
	require.Equal(t, []string{"gpt-4", "gpt-4o"}, p.Initialize(context.Background()))
	require.Equal(t, "gpt-4o", svc.model)
}

func TestPluginInitializeReplacesUnknownModel(t *testing.T) {
	t.Parallel()
	svc := &stubService{model: "gpt-2"}
	NewPlugin(svc, stubModels{"gpt-4.1", "o3"}, discardLogger()).Initialize(context.Background())
	require.Equal(t, "gpt-4.1", svc.model)

	svc = &stubService{model: "gpt-2"}
	NewPlugin(svc, stubModels{}, discardLogger()).Initialize(context.Background())
	require.Equal(t, "gpt-4", svc.model)
}

func TestPluginShutdownCancels(t *testing.T) {
	t.Parallel()
	svc := &stubService{}
	NewPlugin(svc, stubModels{}, discardLogger()).Shutdown()
	require.Equal(t, 1, svc.cancelled)
}

func TestNewTransportWithoutKey(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	client, err := NewOpenAIClient(cfg)
	require.NoError(t, err)
	require.Nil(t, client)

	transport, err := NewTransport(cfg, client, discardLogger())
	require.NoError(t, err)
	_, err = transport.Complete(context.Background(), completionParams())
	require.True(t, apperrors.IsCode(err, apperrors.CodeTransportError))
}

func TestNewDocumentRepository(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	repo, err := NewDocumentRepository(cfg, discardLogger())
	require.NoError(t, err)
	require.IsType(t, &docstore.MemoryStore{}, repo)

	cfg.Documents.Backend = config.BackendFile
	cfg.Documents.Dir = t.TempDir()
	repo, err = NewDocumentRepository(cfg, discardLogger())
	require.NoError(t, err)
	require.IsType(t, &docstore.FileStore{}, repo)
}

func TestSummarizerConfigMapping(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.LLM.APIKey = "sk"
	got := SummarizerConfig(cfg)
	require.Equal(t, "sk", got.APIKey)
	require.Equal(t, summarizer.PlacementReplace, got.Placement)
	require.Equal(t, 96, got.Output.Threshold)
	require.Equal(t, 500, got.MaxTokens)
}

func completionParams() completion.Params {
	return completion.Params{Model: "gpt-4", Prompt: "hi"}
}
