// Package budget sizes completion requests against a model's context window
// using a character-length heuristic rather than a tokenizer.
package budget

import (
	"math"
	"unicode/utf8"

	"github.com/yanqian/ai-notesum/pkg/metrics"
)

// Defaults for the sizing heuristic.
const (
	DefaultCharsPerToken  = 4
	DefaultOverhead       = 1000
	DefaultMinInputTokens = 1000

	minChunkInputTokens = 2000
	minChunkTokens      = 3000
	maxChunkTokens      = 6000
	chunkFillRatio      = 0.9
)

// Params tunes the heuristic. Zero fields fall back to the defaults.
type Params struct {
	CharsPerToken  int
	Overhead       int
	MinInputTokens int
}

func (p Params) withDefaults() Params {
	if p.CharsPerToken <= 0 {
		p.CharsPerToken = DefaultCharsPerToken
	}
	if p.Overhead <= 0 {
		p.Overhead = DefaultOverhead
	}
	if p.MinInputTokens <= 0 {
		p.MinInputTokens = DefaultMinInputTokens
	}
	return p
}

// Budget is the sizing decision for one invocation.
type Budget struct {
	Model          string
	ContextWindow  int
	OutputTokens   int
	Overhead       int
	MaxInputTokens int
	InputTokens    int
	CharsPerToken  int
}

// NeedsChunking reports whether the prompt must be split.
func (b Budget) NeedsChunking() bool {
	return b.InputTokens > b.MaxInputTokens
}

// ChunkChars is the target character size of one chunk: 90% of the input
// budget, clamped to [3000, 6000] tokens.
func (b Budget) ChunkChars() int {
	available := max(minChunkInputTokens, b.ContextWindow-b.OutputTokens-b.Overhead)
	tokens := int(math.Floor(float64(available) * chunkFillRatio))
	tokens = min(maxChunkTokens, max(minChunkTokens, tokens))
	return tokens * b.CharsPerToken
}

// Estimate exposes the budget for notifications and responses.
func (b Budget) Estimate() metrics.TokenEstimate {
	return metrics.TokenEstimate{
		InputTokens:   b.InputTokens,
		OutputTokens:  b.OutputTokens,
		ContextWindow: b.ContextWindow,
		MaxInput:      b.MaxInputTokens,
	}
}

// Budgeter computes budgets from a context window source.
type Budgeter struct {
	windows Windows
	params  Params
}

// New constructs a Budgeter. A nil windows source uses DefaultTable.
func New(windows Windows, params Params) *Budgeter {
	if windows == nil {
		windows = DefaultTable
	}
	return &Budgeter{windows: windows, params: params.withDefaults()}
}

// EstimateTokens is ceil(characters / charsPerToken).
func (b *Budgeter) EstimateTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	return (chars + b.params.CharsPerToken - 1) / b.params.CharsPerToken
}

// ContextWindow returns the model's window or DefaultContextWindow.
func (b *Budgeter) ContextWindow(model string) int {
	if size, ok := b.windows.ContextWindow(model); ok && size > 0 {
		return size
	}
	return DefaultContextWindow
}

// Compute sizes prompt for model with outputCap tokens reserved for the answer.
func (b *Budgeter) Compute(prompt, model string, outputCap int) Budget {
	window := b.ContextWindow(model)
	return Budget{
		Model:          model,
		ContextWindow:  window,
		OutputTokens:   outputCap,
		Overhead:       b.params.Overhead,
		MaxInputTokens: max(b.params.MinInputTokens, window-outputCap-b.params.Overhead),
		InputTokens:    b.EstimateTokens(prompt),
		CharsPerToken:  b.params.CharsPerToken,
	}
}
