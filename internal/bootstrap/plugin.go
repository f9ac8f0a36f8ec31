package bootstrap

import (
	"context"
	"log/slog"

	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/llm/catalog"
)

// ModelSource lists the models available to the account.
type ModelSource interface {
	Models(ctx context.Context) []string
}

// Plugin is the host facing lifecycle of the summarizer.
type Plugin struct {
	svc    summarizer.Service
	models ModelSource
	logger *slog.Logger
}

// NewPlugin constructs the lifecycle wrapper.
func NewPlugin(svc summarizer.Service, models ModelSource, logger *slog.Logger) *Plugin {
	return &Plugin{svc: svc, models: models, logger: logger.With("component", "bootstrap.plugin")}
}

// Initialize discovers the available models and replaces the configured
// model when the account cannot use it. It returns the discovered models.
func (p *Plugin) Initialize(ctx context.Context) []string {
	available := p.models.Models(ctx)
	configured := p.svc.Model()
	selected := catalog.Resolve(configured, available)
	if selected != configured {
		p.logger.Warn("configured model unavailable, switching", "configured", configured, "selected", selected)
		p.svc.SetModel(selected)
	}
	p.logger.Info("summarizer initialized", "model", selected, "available_models", available)
	return available
}

// Shutdown cancels the in-flight run, if any.
func (p *Plugin) Shutdown() {
	p.svc.Cancel()
}
