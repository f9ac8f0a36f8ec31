// Package catalog discovers which models the configured account may use.
package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Supported lists the model identifiers the summarizer knows how to budget for.
var Supported = []string{
	"gpt-3.5-turbo",
	"gpt-4",
	"gpt-4-turbo",
	"gpt-4.1",
	"gpt-4.1-mini",
	"gpt-4.1-nano",
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-5",
	"gpt-5-chat-latest",
	"gpt-5-mini",
	"gpt-5-nano",
	"o1",
	"o3",
	"o3-mini",
	"o4-mini",
}

// DefaultModel is used when nothing else is available.
const DefaultModel = "gpt-4"

// ModelLister is the go-openai call used for discovery.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// Catalog lists models, falling back to a static list when the API is not
// reachable or no credential is configured.
type Catalog struct {
	lister   ModelLister
	fallback []string
	logger   *slog.Logger
}

// New constructs a Catalog. lister may be nil.
func New(lister ModelLister, fallback []string, logger *slog.Logger) *Catalog {
	if len(fallback) == 0 {
		fallback = []string{DefaultModel}
	}
	return &Catalog{lister: lister, fallback: fallback, logger: logger.With("component", "catalog")}
}

// Models returns the sorted, supported model ids available to the account.
func (c *Catalog) Models(ctx context.Context) []string {
	if c.lister == nil {
		c.logger.Info("no api key provided, using fallback models")
		return slices.Clone(c.fallback)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	list, err := c.lister.ListModels(ctx)
	if err != nil {
		c.logger.Error("failed to fetch available models", "error", err)
		return slices.Clone(c.fallback)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if slices.Contains(Supported, m.ID) {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns model when it is available, otherwise the first available
// model, otherwise DefaultModel.
func Resolve(model string, available []string) string {
	if model != "" && slices.Contains(available, model) {
		return model
	}
	if len(available) > 0 {
		return available[0]
	}
	return DefaultModel
}
