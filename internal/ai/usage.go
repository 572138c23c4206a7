package ai

// Token estimation uses a fixed 4 chars/token divisor; exact counts are not
// needed for cost accounting at this scale.
const charsPerToken = 4

// Rough per-token pricing used to derive cost estimates for usage rows.
const (
	inputCostPerToken  = 0.075 / 1_000_000
	outputCostPerToken = 0.30 / 1_000_000
)

type UsageEntry struct {
	Operation    string
	InputTokens  int
	OutputTokens int
}

func (e UsageEntry) CostEstimate() float64 {
	return float64(e.InputTokens)*inputCostPerToken + float64(e.OutputTokens)*outputCostPerToken
}

// Usage accumulates one entry per AI call for a single job. Each job threads
// its own accumulator through the extraction call chain, so no locking and no
// shared globals are involved.
type Usage struct {
	Entries []UsageEntry
}

func (u *Usage) Add(operation string, inputTokens, outputTokens int) {
	if u == nil {
		return
	}
	u.Entries = append(u.Entries, UsageEntry{
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	})
}

func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / charsPerToken
	if tokens == 0 {
		return 1
	}
	return tokens
}
