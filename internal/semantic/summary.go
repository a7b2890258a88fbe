package semantic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/exportops/tradewatch/internal/llm"
	"github.com/exportops/tradewatch/internal/model"
)

// Summarize asks the completion service for a short executive summary of a
// finished run. Returns an empty string when there is nothing to summarize
// or no completion capability; a failed call is reported, not retried.
func (d *Detector) Summarize(ctx context.Context, anomalies []model.Anomaly) (string, error) {
	if d.completer == nil || len(anomalies) == 0 {
		return "", nil
	}

	critical, high := 0, 0
	byType := make(map[model.AnomalyType]int)
	for _, a := range anomalies {
		switch a.Severity {
		case model.SeverityCritical:
			critical++
		case model.SeverityHigh:
			high++
		}
		byType[a.Type]++
	}

	types := make([]model.AnomalyType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if byType[types[i]] != byType[types[j]] {
			return byType[types[i]] > byType[types[j]]
		}
		return types[i] < types[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Write a brief executive summary (100-150 words) about shipment anomalies.\n")
	b.WriteString("Focus on: 1) Top risks, 2) Financial impact, 3) Recommended actions.\n\n")
	b.WriteString("DATA:\n")
	fmt.Fprintf(&b, "CRITICAL ISSUES: %d\nHIGH PRIORITY: %d\nTOTAL ANOMALIES: %d\n\nANOMALY BREAKDOWN:\n", critical, high, len(anomalies))
	for _, t := range types {
		fmt.Fprintf(&b, "- %s: %d\n", t, byType[t])
	}
	b.WriteString("\nUse plain business language. Start with: # Executive Summary")
	prompt := b.String()

	content, err := d.completer.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   300,
	})

	d.calls++
	d.usage.Add(llm.TokenUsage{
		Input:  llm.EstimateTokens(prompt),
		Output: llm.EstimateTokens(content),
	})

	if err != nil {
		return "", fmt.Errorf("executive summary failed: %w", err)
	}

	return content, nil
}
