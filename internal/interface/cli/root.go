// Package cli implements the notesum command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yanqian/ai-notesum/internal/bootstrap"
	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/config"
	"github.com/yanqian/ai-notesum/internal/infra/notify"
	"github.com/yanqian/ai-notesum/pkg/logger"
)

// Deps are the services a command runs against.
type Deps struct {
	Config  *config.Config
	Service summarizer.Service
	Plugin  *bootstrap.Plugin
	Logger  *slog.Logger
	Stdout  io.Writer
	Stderr  io.Writer
}

// Loader builds Deps lazily so --help works without configuration.
type Loader func(ctx context.Context) (*Deps, error)

// DefaultLoader reads the configuration and assembles the summarizer.
func DefaultLoader(context.Context) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.NewStderr()
	client, err := bootstrap.NewOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	transport, err := bootstrap.NewTransport(cfg, client, log)
	if err != nil {
		return nil, err
	}
	svc := bootstrap.NewSummarizer(
		cfg,
		bootstrap.NewCompletionClient(cfg, transport, log),
		bootstrap.NewBudgeter(cfg),
		bootstrap.NewHistoryRepository(cfg, log),
		notify.NewTerminalNotifier(os.Stderr),
		log,
	)
	return &Deps{
		Config:  cfg,
		Service: svc,
		Plugin:  bootstrap.NewPlugin(svc, bootstrap.NewCatalog(cfg, client, log), log),
		Logger:  log,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}, nil
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string, load Loader) *cobra.Command {
	root := &cobra.Command{
		Use:   "notesum",
		Short: "Summarize markdown notes with OpenAI models",
		Long: `notesum streams a summary of a markdown note, or of a range of its lines,
back into the file.

Examples:
  notesum summarize notes/meeting.md
  notesum summarize notes/meeting.md --from-line 10 --to-line 80 --placement below
  notesum summarize notes/meeting.md --placement frontmatter --model gpt-4o
  notesum models`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSummarizeCommand(load))
	root.AddCommand(newModelsCommand(load))
	return root
}
