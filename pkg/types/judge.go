// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// JudgeScore is the outcome of one relevance-judging call for a single
// (paper, question) pair.
type JudgeScore struct {
	// Score is the relevance judgment in [0, 10]; higher is more relevant.
	Score float64 `json:"score" yaml:"score"`

	// Reason is the judge's one-line justification.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Usage accumulates token consumption across judge calls.
type Usage struct {
	// InputTokens is the number of prompt tokens sent.
	InputTokens int64 `json:"input_tokens" yaml:"input_tokens"`

	// OutputTokens is the number of completion tokens received.
	OutputTokens int64 `json:"output_tokens" yaml:"output_tokens"`
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
