package main

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/yanqian/ai-notesum/internal/bootstrap"
	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/llm/catalog"
	"github.com/yanqian/ai-notesum/internal/infra/notify"
	httpiface "github.com/yanqian/ai-notesum/internal/interface/http"
)

// summarizerSet builds everything the summarizer needs from the config.
var summarizerSet = wire.NewSet(
	bootstrap.NewOpenAIClient,
	bootstrap.NewTransport,
	bootstrap.NewCompletionClient,
	bootstrap.NewCatalog,
	bootstrap.NewBudgeter,
	bootstrap.NewHistoryRepository,
	provideNotifier,
	bootstrap.NewSummarizer,
	wire.Bind(new(bootstrap.ModelSource), new(*catalog.Catalog)),
	wire.Bind(new(httpiface.ModelCatalog), new(*catalog.Catalog)),
)

func provideNotifier(logger *slog.Logger) summarizer.Notifier {
	return notify.NewLogNotifier(logger)
}
