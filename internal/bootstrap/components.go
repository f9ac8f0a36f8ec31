package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-notesum/internal/domain/budget"
	"github.com/yanqian/ai-notesum/internal/domain/completion"
	"github.com/yanqian/ai-notesum/internal/domain/note"
	"github.com/yanqian/ai-notesum/internal/domain/output"
	"github.com/yanqian/ai-notesum/internal/domain/run"
	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/config"
	"github.com/yanqian/ai-notesum/internal/infra/docstore"
	"github.com/yanqian/ai-notesum/internal/infra/llm/catalog"
	"github.com/yanqian/ai-notesum/internal/infra/llm/chatgpt"
	"github.com/yanqian/ai-notesum/internal/infra/llm/openaisdk"
	"github.com/yanqian/ai-notesum/internal/infra/runrepo"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
	"github.com/yanqian/ai-notesum/pkg/util"
)

// SummarizerConfig maps the file configuration onto the domain config.
func SummarizerConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		SystemInstruction: cfg.LLM.SystemInstruction,
		DefaultPrompt:     cfg.Summary.DefaultPrompt,
		Placement:         summarizer.Placement(cfg.Summary.Placement),
		MinWords:          cfg.Summary.MinWords,
		MetadataKey:       cfg.Summary.MetadataKey,
		Output: output.Config{
			Threshold: cfg.Summary.FlushThreshold,
			Delay:     cfg.Summary.FlushDelay,
		},
	}
}

// NewOpenAIClient returns the go-openai client, or nil without an API key.
func NewOpenAIClient(cfg *config.Config) (*openai.Client, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil, nil
	}
	return openaisdk.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

// NewTransport selects the completion transport named by llm.transport.
func NewTransport(cfg *config.Config, client *openai.Client, logger *slog.Logger) (completion.Transport, error) {
	if client == nil {
		logger.Warn("llm api key not set, summaries will be rejected until one is configured")
		return unconfiguredTransport{}, nil
	}
	switch cfg.LLM.Transport {
	case config.TransportRaw:
		return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, logger)
	case config.TransportSDK:
		return openaisdk.New(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm transport %q", cfg.LLM.Transport)
	}
}

// NewCompletionClient wraps the transport with streaming and fallback semantics.
func NewCompletionClient(cfg *config.Config, transport completion.Transport, logger *slog.Logger) *completion.Client {
	return completion.NewClient(transport, completion.Config{Temperature: cfg.LLM.Temperature}, logger)
}

// NewCatalog lists models through the API when a client is available.
func NewCatalog(cfg *config.Config, client *openai.Client, logger *slog.Logger) *catalog.Catalog {
	var lister catalog.ModelLister
	if client != nil {
		lister = client
	}
	return catalog.New(lister, cfg.LLM.AvailableModels, logger)
}

// NewBudgeter applies configured context window overrides.
func NewBudgeter(cfg *config.Config) *budget.Budgeter {
	return budget.New(budget.DefaultTable.With(cfg.LLM.ContextWindows), budget.Params{})
}

// NewDocumentRepository builds the backend named by documents.backend.
func NewDocumentRepository(cfg *config.Config, logger *slog.Logger) (note.Repository, error) {
	docs := cfg.Documents
	switch docs.Backend {
	case config.BackendFile:
		return docstore.NewFileStore(docs.Dir)
	case config.BackendValkey:
		opt, err := valkeyOptions(docs.Valkey.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid valkey address: %w", err)
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			return nil, fmt.Errorf("create valkey client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			client.Close()
			return nil, fmt.Errorf("valkey ping: %w", err)
		}
		logger.Info("valkey document store enabled", "addr", docs.Valkey.Addr)
		return docstore.NewValkeyStore(client, docs.Valkey.Prefix), nil
	case config.BackendR2:
		r2 := docs.R2
		return docstore.NewR2Store(r2.Endpoint, r2.AccessKey, r2.SecretKey, r2.Bucket, r2.Region, logger)
	default:
		return docstore.NewMemoryStore(), nil
	}
}

func valkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// NewHistoryRepository uses Postgres when a DSN is configured and falls back
// to memory otherwise.
func NewHistoryRepository(cfg *config.Config, logger *slog.Logger) summarizer.HistoryRepository {
	fallback := runrepo.NewMemoryRepository(cfg.History.Capacity)
	dsn := strings.TrimSpace(cfg.History.Postgres.DSN)
	if dsn == "" {
		logger.Info("history postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.History.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.History.Postgres.MaxConns
	}
	if cfg.History.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.History.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	repo := runrepo.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("history migration failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("history postgres repository enabled")
	return repo
}

// NewSummarizer assembles the summarizer service.
func NewSummarizer(cfg *config.Config, completer *completion.Client, budgeter *budget.Budgeter, history summarizer.HistoryRepository, notifier summarizer.Notifier, logger *slog.Logger) summarizer.Service {
	return summarizer.NewService(SummarizerConfig(cfg), completer, budgeter, run.NewCoordinator(), history, notifier, util.SystemClock{}, logger)
}

// unconfiguredTransport stands in when no API key is set.
type unconfiguredTransport struct{}

var errNoAPIKey = apperrors.Wrap(apperrors.CodeTransportError, "llm api key is not configured", nil)

func (unconfiguredTransport) OpenStream(context.Context, completion.Params) (completion.EventStream, error) {
	return nil, errNoAPIKey
}

func (unconfiguredTransport) Complete(context.Context, completion.Params) (string, error) {
	return "", errNoAPIKey
}
