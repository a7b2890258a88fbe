package pipeline

import (
	"encoding/json"
	"io"
	"time"

	"github.com/exportops/tradewatch/internal/llm"
	"github.com/exportops/tradewatch/internal/model"
)

// Report is the unified output of one pipeline run.
type Report struct {
	GeneratedAt      time.Time       `json:"generated_at"`
	ID               string          `json:"id"`
	ExecutiveSummary string          `json:"executive_summary,omitempty"`
	Anomalies        []model.Anomaly `json:"anomalies"`
	Duration         time.Duration   `json:"duration"`
	LLMCalls         int             `json:"llm_calls"`
	Tokens           llm.TokenUsage  `json:"tokens"`
}

// TotalAnomalies returns the number of findings across all layers.
func (r *Report) TotalAnomalies() int {
	return len(r.Anomalies)
}

// CountBySeverity returns finding counts keyed by severity.
func (r *Report) CountBySeverity() map[model.Severity]int {
	counts := make(map[model.Severity]int)
	for _, a := range r.Anomalies {
		counts[a.Severity]++
	}
	return counts
}

// CountByLayer returns finding counts keyed by detection layer.
func (r *Report) CountByLayer() map[int]int {
	counts := make(map[int]int)
	for _, a := range r.Anomalies {
		counts[a.Layer]++
	}
	return counts
}

// CountByType returns finding counts keyed by anomaly type.
func (r *Report) CountByType() map[model.AnomalyType]int {
	counts := make(map[model.AnomalyType]int)
	for _, a := range r.Anomalies {
		counts[a.Type]++
	}
	return counts
}

// reportDocument is the on-disk report shape: run metadata up front, then
// the full finding list.
type reportDocument struct {
	Metadata  reportMetadata  `json:"metadata"`
	Anomalies []model.Anomaly `json:"anomalies"`
}

type reportMetadata struct {
	ID             string    `json:"id"`
	GeneratedAt    time.Time `json:"generated_at"`
	ExecutionTime  float64   `json:"execution_time_seconds"`
	TotalAnomalies int       `json:"total_anomalies"`
	LLMCalls       int       `json:"llm_calls"`
	TokensUsed     int       `json:"tokens_used"`
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	doc := reportDocument{
		Metadata: reportMetadata{
			ID:             r.ID,
			GeneratedAt:    r.GeneratedAt,
			ExecutionTime:  r.Duration.Seconds(),
			TotalAnomalies: len(r.Anomalies),
			LLMCalls:       r.LLMCalls,
			TokensUsed:     r.Tokens.Total(),
		},
		Anomalies: r.Anomalies,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
