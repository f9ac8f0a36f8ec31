package summarizer

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/ai-notesum/internal/domain/chunking"
	"github.com/yanqian/ai-notesum/internal/domain/completion"
	"github.com/yanqian/ai-notesum/internal/domain/output"
	"github.com/yanqian/ai-notesum/internal/domain/run"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

// maxPartialTokens caps each chunk summary so the reduction prompt stays small.
const maxPartialTokens = 512

// errStale ends a pipeline whose run was superseded.
var errStale = errors.New("run superseded")

// pipeline is the state of one run from budgeting to placement.
type pipeline struct {
	svc       *service
	cfg       Config
	run       *run.Run
	req       Request
	notifier  Notifier
	selected  string
	placement Placement
	model     string
	maxTokens int
	startedAt time.Time
	logger    *slog.Logger

	state  State
	writer *output.Writer
}

func (p *pipeline) execute() (Result, error) {
	p.state = StateIdle
	res := Result{
		RunID:     p.run.ID(),
		Placement: p.placement,
		Model:     p.model,
		State:     StateIdle,
	}
	summary, err := p.assemble(&res)
	switch {
	case errors.Is(err, errStale) || (err == nil && !p.run.Active()):
		p.transition(StateAborted)
		res.State = StateAborted
		return res, nil
	case err != nil:
		p.transition(StateFailed)
		p.logger.Error("summary run failed", "error", err)
		if p.run.Active() && p.notifier != nil {
			p.notifier.NotifyError(err)
		}
		res.State = StateFailed
		return res, err
	}

	p.transition(StateDone)
	res.Summary = summary
	res.State = StateDone
	p.notify(p.placement.doneMessage())
	return res, nil
}

func (p *pipeline) assemble(res *Result) (string, error) {
	base := p.basePrompt()

	p.transition(StateBudgeting)
	b := p.svc.budgeter.Compute(base+p.selected, p.model, p.maxTokens)
	res.Estimate = b.Estimate()
	p.notify(fmt.Sprintf("Token estimate: ~%d input, %d output (model %s, ~%d ctx)", b.InputTokens, b.OutputTokens, p.model, b.ContextWindow))
	if b.NeedsChunking() {
		p.notify(fmt.Sprintf("Large selection detected (~%d tokens). Chunking to stay under context window...", b.InputTokens))
	} else {
		p.notify("Generating summary...")
	}

	if p.placement.Live() {
		p.writer = output.NewWriter(p.req.Editor.ReplaceSelection, p.run.Active, p.svc.clock, p.cfg.Output, p.logger)
		defer p.writer.Close()
	}
	if p.placement == PlacementBelow {
		if !p.run.Active() {
			return "", errStale
		}
		p.req.Editor.SetCursor(p.req.Editor.SelectionEnd())
		p.checkpoint("\n")
	}

	var (
		summary string
		err     error
	)
	if !b.NeedsChunking() {
		p.transition(StateSingleCall)
		res.Chunks = 1
		summary, err = p.stream(base+p.selected, p.maxTokens)
	} else {
		p.transition(StateChunkingPipeline)
		plan := chunking.Split(p.selected, b.ChunkChars())
		res.Chunks = len(plan)
		p.logger.Debug("chunk plan computed", "chunks", len(plan), "chunk_chars", b.ChunkChars())

		partials := make([]string, 0, len(plan))
		perChunk := min(maxPartialTokens, p.maxTokens)
		for i, chunk := range plan {
			if !p.run.Active() {
				return "", errStale
			}
			header := fmt.Sprintf("Part %d/%d: ", i+1, len(plan))
			if i > 0 {
				header = "\n\n" + header
			}
			p.checkpoint(header)
			partial, err := p.stream(base+chunk.Text, perChunk)
			if err != nil {
				return "", err
			}
			partials = append(partials, partial)
		}

		p.transition(StateReducing)
		p.checkpoint("\n\nFinal summary:\n")
		summary, err = p.stream(reductionPrompt(base, partials, p.maxTokens), p.maxTokens)
	}
	if err != nil {
		return "", err
	}
	if !p.run.Active() {
		return "", errStale
	}

	p.transition(StatePlacing)
	if p.placement == PlacementFrontmatter {
		key := p.cfg.MetadataKey
		err := p.req.Metadata.ProcessMetadata(p.run.Context(), func(fields map[string]any) {
			fields[key] = summary
		})
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to write summary to frontmatter", err)
		}
		return summary, nil
	}
	if err := p.writer.Flush(); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to write summary to document", err)
	}
	return summary, nil
}

// stream runs one completion call, accumulating its text and feeding live
// placements through the writer.
func (p *pipeline) stream(prompt string, maxTokens int) (string, error) {
	var acc strings.Builder
	req := completion.Request{
		Prompt:          prompt,
		System:          p.cfg.SystemInstruction,
		Model:           p.model,
		MaxOutputTokens: maxTokens,
	}
	for delta, err := range p.svc.completer.Stream(p.run.Context(), req) {
		if err != nil {
			return "", err
		}
		if !p.run.Active() {
			return "", errStale
		}
		acc.WriteString(delta)
		if p.writer != nil {
			p.writer.Write(delta)
		}
	}
	if p.writer != nil {
		p.writer.Flush()
	}
	if !p.run.Active() {
		return "", errStale
	}
	return acc.String(), nil
}

// checkpoint writes a header and forces it out.
func (p *pipeline) checkpoint(text string) {
	if p.writer == nil {
		return
	}
	p.writer.Write(text)
	p.writer.Flush()
}

func (p *pipeline) notify(message string) {
	if p.notifier == nil || !p.run.Active() {
		return
	}
	p.notifier.Notify(message)
}

func (p *pipeline) transition(next State) {
	p.logger.Debug("summary state changed", "from", p.state, "to", next)
	p.state = next
}

func (p *pipeline) basePrompt() string {
	var title string
	if t := strings.TrimSpace(p.req.Title); t != "" {
		title = "title of the note is: " + t + "\n"
	}
	return p.cfg.DefaultPrompt + " " + title + "\n\n"
}

func reductionPrompt(base string, partials []string, maxTokens int) string {
	numbered := make([]string, len(partials))
	for i, s := range partials {
		numbered[i] = fmt.Sprintf("(%d) %s", i+1, s)
	}
	return fmt.Sprintf(
		"%sYou will be given %d partial summaries. Produce a concise, coherent single summary that captures the overall content without repetition. Keep it under %d tokens.\n\nPartial summaries:\n%s",
		base, len(partials), maxTokens, strings.Join(numbered, "\n\n"),
	)
}
