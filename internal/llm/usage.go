package llm

import "strings"

// TokenUsage accumulates estimated input/output token counts across calls.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.Input + u.Output
}

// EstimateTokens approximates the token count of text as word count × 1.3.
// Good enough for cost reporting; never used for flow control.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	n := int(float64(words) * 1.3)
	if n < 1 {
		return 1
	}
	return n
}
