package summarizer

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/yanqian/ai-notesum/internal/domain/budget"
	"github.com/yanqian/ai-notesum/internal/domain/completion"
	"github.com/yanqian/ai-notesum/internal/domain/run"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
	"github.com/yanqian/ai-notesum/pkg/util"
)

// User facing validation messages.
const (
	msgNoDocument = "No active file found."
	msgNoAPIKey   = "Please enter your OpenAI API Key in the settings."
	msgTooShort   = "Selected text is too short! (>30 words)"
)

// Service exposes summarization capabilities.
type Service interface {
	Summarize(ctx context.Context, req Request) (Result, error)
	Runs(ctx context.Context, limit int) ([]RunRecord, error)
	Model() string
	SetModel(model string)
	// Cancel supersedes the current run, if any.
	Cancel()
}

// Completer streams completion deltas.
type Completer interface {
	Stream(ctx context.Context, req completion.Request) iter.Seq2[string, error]
}

type service struct {
	mu        sync.RWMutex
	cfg       Config
	completer Completer
	budgeter  *budget.Budgeter
	coord     *run.Coordinator
	history   HistoryRepository
	notifier  Notifier
	clock     util.Clock
	logger    *slog.Logger
}

// NewService is a wire provider for the summarizer domain.
func NewService(cfg Config, completer Completer, budgeter *budget.Budgeter, coord *run.Coordinator, history HistoryRepository, notifier Notifier, clock util.Clock, logger *slog.Logger) Service {
	if cfg.MinWords <= 0 {
		cfg.MinWords = 30
	}
	if cfg.MetadataKey == "" {
		cfg.MetadataKey = "summary"
	}
	if cfg.Placement == "" {
		cfg.Placement = PlacementReplace
	}
	return &service{
		cfg:       cfg,
		completer: completer,
		budgeter:  budgeter,
		coord:     coord,
		history:   history,
		notifier:  notifier,
		clock:     clock,
		logger:    logger.With("component", "summarizer.service"),
	}
}

func (s *service) Summarize(ctx context.Context, req Request) (Result, error) {
	cfg := s.config()
	notifier := req.Notifier
	if notifier == nil {
		notifier = s.notifier
	}

	if req.Editor == nil {
		return s.reject(notifier, msgNoDocument)
	}
	selected := req.Editor.Selection()
	if len(strings.Split(selected, " ")) <= cfg.MinWords {
		return s.reject(notifier, msgTooShort)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return s.reject(notifier, msgNoAPIKey)
	}

	placement := req.Placement
	if placement == "" {
		placement = cfg.Placement
	}
	if placement == PlacementFrontmatter && req.Metadata == nil {
		return s.reject(notifier, "Frontmatter placement needs a saved document.")
	}
	model := req.Model
	if model == "" {
		model = cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}

	r := s.coord.Begin(ctx)
	defer r.Release()

	p := &pipeline{
		svc:       s,
		cfg:       cfg,
		run:       r,
		req:       req,
		notifier:  notifier,
		selected:  selected,
		placement: placement,
		model:     model,
		maxTokens: maxTokens,
		startedAt: s.clock.Now(),
		logger:    s.logger.With("run_id", r.ID()),
	}
	res, err := p.execute()
	s.record(context.WithoutCancel(ctx), p, res, err)
	return res, err
}

func (s *service) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	records, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to list runs", err)
	}
	return records, nil
}

func (s *service) Model() string {
	return s.config().Model
}

func (s *service) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Model = model
}

func (s *service) Cancel() {
	s.coord.Supersede()
}

func (s *service) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *service) reject(notifier Notifier, message string) (Result, error) {
	err := apperrors.InvalidInput(message)
	if notifier != nil {
		notifier.NotifyError(err)
	}
	return Result{State: StateIdle}, err
}

func (s *service) record(ctx context.Context, p *pipeline, res Result, runErr error) {
	if s.history == nil || res.State == StateAborted {
		return
	}
	rec := RunRecord{
		RunID:      p.run.ID(),
		DocumentID: p.req.DocumentID,
		Model:      p.model,
		Placement:  p.placement,
		Chunks:     res.Chunks,
		State:      res.State,
		Summary:    res.Summary,
		StartedAt:  p.startedAt,
		FinishedAt: s.clock.Now(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.logger.Error("failed to record run", "run_id", rec.RunID, "error", err)
	}
}
