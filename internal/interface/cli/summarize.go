package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/document"
)

// ErrCancelled is returned when the run was interrupted before finishing.
var ErrCancelled = errors.New("summary cancelled")

type summarizeOptions struct {
	path      string
	fromLine  int
	toLine    int
	placement string
	model     string
	maxTokens int
	noWrite   bool
	spinner   bool
}

func newSummarizeCommand(load Loader) *cobra.Command {
	opts := summarizeOptions{spinner: true}
	cmd := &cobra.Command{
		Use:   "summarize FILE",
		Short: "Summarize a note, streaming the summary into the file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := load(cmd.Context())
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			opts.path = args[0]
			_, err = runSummarize(cmd.Context(), deps, opts)
			return err
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opts.fromLine, "from-line", 0, "First line of the selection (1-based, default whole file)")
	flags.IntVar(&opts.toLine, "to-line", 0, "Last line of the selection (inclusive, default end of file)")
	flags.StringVarP(&opts.placement, "placement", "p", "", "Where to put the summary: replace, below or frontmatter")
	flags.StringVarP(&opts.model, "model", "m", "", "Model to use instead of the configured one")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "Output token cap for the summary")
	flags.BoolVar(&opts.noWrite, "no-write", false, "Stream the summary without saving the file")
	return cmd
}

func runSummarize(ctx context.Context, deps *Deps, opts summarizeOptions) (summarizer.Result, error) {
	placement, err := summarizer.ParsePlacement(opts.placement)
	if err != nil {
		return summarizer.Result{}, err
	}
	info, err := os.Stat(opts.path)
	if err != nil {
		return summarizer.Result{}, fmt.Errorf("read note: %w", err)
	}
	raw, err := os.ReadFile(opts.path)
	if err != nil {
		return summarizer.Result{}, fmt.Errorf("read note: %w", err)
	}

	buf := document.NewBuffer(opts.path, document.TitleFromPath(opts.path), string(raw))
	if opts.fromLine > 0 || opts.toLine > 0 {
		from := max(opts.fromLine, 1)
		to := opts.toLine
		if to == 0 {
			to = buf.LineCount()
		}
		if err := buf.SelectLines(from, to); err != nil {
			return summarizer.Result{}, err
		}
	} else {
		buf.SelectAll()
	}

	if deps.Plugin != nil && opts.model == "" {
		deps.Plugin.Initialize(ctx)
	}

	prog := newProgress(deps.Stderr, opts.spinner)
	var wrote atomic.Bool
	buf.Subscribe(func(e document.Edit) {
		prog.Stop()
		wrote.Store(true)
		io.WriteString(deps.Stdout, e.Text)
	})

	prog.Start()
	res, err := deps.Service.Summarize(ctx, summarizer.Request{
		DocumentID: opts.path,
		Title:      buf.Title(),
		Editor:     buf,
		Metadata:   buf,
		Notifier:   prog,
		Placement:  placement,
		Model:      opts.model,
		MaxTokens:  opts.maxTokens,
	})
	prog.Stop()
	if wrote.Load() {
		fmt.Fprintln(deps.Stdout)
	}
	if err != nil {
		return res, err
	}
	if res.Aborted() {
		return res, ErrCancelled
	}
	if res.Placement == summarizer.PlacementFrontmatter {
		fmt.Fprintln(deps.Stdout, res.Summary)
	}
	if opts.noWrite {
		return res, nil
	}
	if err := os.WriteFile(opts.path, []byte(buf.Text()), info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("write note: %w", err)
	}
	return res, nil
}
