package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewCompleter creates a completion client for the configured provider.
func NewCompleter(ctx context.Context, cfg Config) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "groq":
		return newOpenAIClient(cfg)
	case "gemini":
		return newGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Provider)
	}
}
