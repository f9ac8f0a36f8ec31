package budget

import "strings"

// DefaultContextWindow applies to models missing from the table.
const DefaultContextWindow = 128000

// Windows supplies context window sizes per model identifier.
type Windows interface {
	ContextWindow(model string) (int, bool)
}

// Table is a static model -> context window lookup. Identifiers that are not
// listed match their longest listed prefix, so dated snapshots such as
// "gpt-4o-2024-08-06" resolve to their family.
type Table map[string]int

// DefaultTable mirrors the published context windows of the supported models.
var DefaultTable = Table{
	"gpt-3.5-turbo":     16000,
	"gpt-4":             8192,
	"gpt-4-turbo":       128000,
	"gpt-4.1":           128000,
	"gpt-4.1-mini":      128000,
	"gpt-4.1-nano":      128000,
	"gpt-4o":            128000,
	"gpt-4o-mini":       128000,
	"gpt-5":             200000,
	"gpt-5-chat-latest": 200000,
	"gpt-5-mini":        200000,
	"gpt-5-nano":        200000,
	"o1":                200000,
	"o3":                200000,
	"o3-mini":           200000,
	"o4-mini":           200000,
}

// ContextWindow implements Windows.
func (t Table) ContextWindow(model string) (int, bool) {
	id := strings.ToLower(strings.TrimSpace(model))
	if id == "" {
		return 0, false
	}
	if size, ok := t[id]; ok {
		return size, true
	}
	best := ""
	for family := range t {
		if strings.HasPrefix(id, family+"-") && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return 0, false
	}
	return t[best], true
}

// With returns a copy of t with overrides applied.
func (t Table) With(overrides map[string]int) Table {
	out := make(Table, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}
