package metrics

// TokenEstimate captures the heuristic token sizing of one summarization run.
type TokenEstimate struct {
	InputTokens   int `json:"inputTokens"`
	OutputTokens  int `json:"outputTokens"`
	ContextWindow int `json:"contextWindow"`
	MaxInput      int `json:"maxInput"`
}

// Headroom is how many more input tokens would fit before chunking kicks in.
func (u TokenEstimate) Headroom() int {
	return u.MaxInput - u.InputTokens
}
