// Package llm provides text-completion clients for the semantic detection
// layer. The layer depends only on the Completer interface; concrete
// providers are selected by configuration.
package llm

import (
	"context"
	"time"
)

// Completer is the external text-completion capability. A nil Completer is a
// valid state for the pipeline: the semantic layer short-circuits to an
// empty result without it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest carries one synchronous completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Config holds configuration for completion clients.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}
