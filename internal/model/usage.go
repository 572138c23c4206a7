package model

// UsageLog is one row per AI call. Append-only, never mutated.
type UsageLog struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	DocumentID   string  `json:"document_id,omitempty"`
	Operation    string  `json:"operation"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostEstimate float64 `json:"cost_estimate"`
	Ctime        int64   `json:"ctime"`
}
