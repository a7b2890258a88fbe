// Package semantic implements the third detection layer. It samples the
// highest-value shipments, screens out obvious HS-code matches with a cheap
// prefix rule table, and consults an external text-completion service in
// bounded batches for the rest. Without a completion service the whole layer
// is a documented no-op.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/llm"
	"github.com/exportops/tradewatch/internal/model"
	"github.com/exportops/tradewatch/internal/stats"
)

// maxBatchSize is the hard cap on candidates per external call; larger
// batches degrade verdict quality.
const maxBatchSize = 15

// Config holds the semantic-layer thresholds.
type Config struct {
	// BatchSize is the requested candidates per external call, capped at
	// maxBatchSize.
	BatchSize int
	// FOBQuantile restricts candidates to shipments at or above this
	// quantile of total_fob, bounding external-call cost to the
	// highest-value rows.
	FOBQuantile float64
	// MinConfidence is the verdict confidence below which a reported
	// mismatch is discarded.
	MinConfidence float64
	// TransitSigmaFactor sets the dataset-wide mean + k·σ threshold for the
	// extreme-transit safety net.
	TransitSigmaFactor float64
	// Temperature and MaxTokens shape the completion calls.
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns the default semantic thresholds.
func DefaultConfig() Config {
	return Config{
		BatchSize:          maxBatchSize,
		FOBQuantile:        0.90,
		MinConfidence:      0.8,
		TransitSigmaFactor: 3.0,
		Temperature:        0.1,
		MaxTokens:          500,
	}
}

// MismatchVerdict is one structured entry from the completion service's
// JSON-array response.
type MismatchVerdict struct {
	Reason     string  `json:"reason"`
	ShipmentID int     `json:"shipment_id"`
	IsMismatch bool    `json:"is_mismatch"`
	Confidence float64 `json:"confidence"`
}

// candidate is the enrichment record sent to the completion service: the
// shipment joined with its catalog entry.
type candidate struct {
	HSCode      string  `json:"hs_code"`
	ProductName string  `json:"product_name"`
	Description string  `json:"description"`
	Material    string  `json:"material"`
	Category    string  `json:"category"`
	ShipmentID  int     `json:"shipment_id"`
	FOBValue    float64 `json:"fob_value"`
}

// Detector runs the semantic checks.
type Detector struct {
	completer llm.Completer
	cache     Cache
	logger    *slog.Logger
	cfg       Config
	calls     int
	usage     llm.TokenUsage
}

// New creates a semantic detector. completer may be nil, in which case
// Detect returns an empty result. cache may be nil; a fresh in-memory cache
// is used then.
func New(completer llm.Completer, cache Cache, logger *slog.Logger) *Detector {
	return NewWithConfig(completer, cache, logger, DefaultConfig())
}

// NewWithConfig creates a semantic detector with custom thresholds.
func NewWithConfig(completer llm.Completer, cache Cache, logger *slog.Logger, cfg Config) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatchSize {
		cfg.BatchSize = maxBatchSize
	}
	return &Detector{
		completer: completer,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
	}
}

// Detect runs HS-code validation and the extreme-transit safety net. With no
// completion capability the layer is a no-op, never an error; the pipeline
// must run correctly with only layers 1-2 active.
func (d *Detector) Detect(ctx context.Context, ds *model.Dataset) []model.Anomaly {
	if d.completer == nil {
		d.logger.Info("semantic layer skipped: no completion service configured")
		return nil
	}

	var anomalies []model.Anomaly
	anomalies = append(anomalies, d.validateHSCodes(ctx, ds)...)
	anomalies = append(anomalies, d.detectExtremeTransit(ds)...)

	d.logger.Info("semantic layer complete",
		"anomalies", len(anomalies),
		"calls", d.calls,
		"tokens", d.usage.Total())

	return anomalies
}

// Calls returns how many external calls were issued this run.
func (d *Detector) Calls() int {
	return d.calls
}

// Usage returns the accumulated token estimate for this run.
func (d *Detector) Usage() llm.TokenUsage {
	return d.usage
}

// validateHSCodes screens the top decile of shipments by FOB value and asks
// the completion service about the candidates the prefix table cannot clear.
func (d *Detector) validateHSCodes(ctx context.Context, ds *model.Dataset) []model.Anomaly {
	if len(ds.Shipments) == 0 {
		return nil
	}

	fobs := make([]float64, len(ds.Shipments))
	for i := range ds.Shipments {
		fobs[i] = ds.Shipments[i].TotalFOB
	}
	threshold := stats.Quantile(fobs, d.cfg.FOBQuantile)

	var uncertain []candidate
	screened := 0
	for i := range ds.Shipments {
		s := &ds.Shipments[i]
		if s.TotalFOB < threshold {
			continue
		}
		screened++

		product, ok := ds.Product(s.ProductID)
		if !ok {
			// The catalog join is required here; nothing to compare against.
			continue
		}

		c := candidate{
			HSCode:      s.HSCode,
			ProductName: product.Name,
			Description: product.Description,
			Material:    product.Material,
			Category:    product.Category,
			ShipmentID:  s.ID,
			FOBValue:    s.TotalFOB,
		}
		if isObviousMatch(c) {
			continue
		}
		uncertain = append(uncertain, c)
	}

	d.logger.Debug("HS code screening",
		"high_value", screened,
		"uncertain", len(uncertain),
		"fob_threshold", threshold)

	if len(uncertain) == 0 {
		return nil
	}

	var anomalies []model.Anomaly
	for start := 0; start < len(uncertain); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(uncertain) {
			end = len(uncertain)
		}
		anomalies = append(anomalies, d.validateBatch(ctx, uncertain[start:end])...)
	}
	return anomalies
}

// validateBatch resolves one batch, via the cache when possible, otherwise
// with a single external call. A failed or unparsable call degrades to zero
// findings for the batch; it is never retried and never escalates.
func (d *Detector) validateBatch(ctx context.Context, batch []candidate) []model.Anomaly {
	key := batchCacheKey(batch)
	if verdicts, ok := d.cache.Get(key); ok {
		d.logger.Debug("batch cache hit", "size", len(batch))
		return d.buildMismatchAnomalies(batch, verdicts)
	}

	prompt := buildValidationPrompt(batch)
	content, err := d.completer.Complete(ctx, llm.CompletionRequest{
		System:      "You are a customs expert. Only flag DEFINITE HS code mismatches. High precision required.",
		Prompt:      prompt,
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	})

	// Every issued call counts toward cost reporting, productive or not.
	d.calls++
	d.usage.Add(llm.TokenUsage{
		Input:  llm.EstimateTokens(prompt),
		Output: llm.EstimateTokens(content),
	})

	if err != nil {
		d.logger.Warn("HS validation call failed, abandoning batch",
			"size", len(batch),
			"error", err)
		return nil
	}

	verdicts, err := parseVerdicts(content, d.cfg.MinConfidence)
	if err != nil {
		d.logger.Warn("discarding unparsable verdict response",
			"size", len(batch),
			"error", err)
	}
	d.cache.Set(key, verdicts)

	return d.buildMismatchAnomalies(batch, verdicts)
}

// parseVerdicts extracts the JSON array from the completion and keeps only
// confident mismatches. Malformed content yields an empty list alongside the
// error; the batch still counts as resolved.
func parseVerdicts(content string, minConfidence float64) ([]MismatchVerdict, error) {
	arr, ok := llm.ExtractJSONArray(content)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array in completion", common.ErrMalformedResponse)
	}

	var raw []MismatchVerdict
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	var kept []MismatchVerdict
	for _, v := range raw {
		if v.IsMismatch && v.Confidence >= minConfidence {
			kept = append(kept, v)
		}
	}
	return kept, nil
}

func (d *Detector) buildMismatchAnomalies(batch []candidate, verdicts []MismatchVerdict) []model.Anomaly {
	byID := make(map[int]candidate, len(batch))
	for _, c := range batch {
		byID[c.ShipmentID] = c
	}

	var anomalies []model.Anomaly
	for _, v := range verdicts {
		c, ok := byID[v.ShipmentID]
		if !ok {
			// Verdict references a shipment outside the batch; discard it.
			continue
		}

		anomalies = append(anomalies, model.Anomaly{
			ShipmentID: v.ShipmentID,
			Type:       model.TypeHSCodeProductMismatch,
			Layer:      model.LayerSemantic,
			Severity:   model.SeverityHigh,
			Confidence: v.Confidence,
			Evidence: model.HSCodeMismatchEvidence{
				HSCode:      c.HSCode,
				ProductName: c.ProductName,
				Reason:      v.Reason,
				ShipmentID:  v.ShipmentID,
				Confidence:  v.Confidence,
			},
			Impact:         fmt.Sprintf("HS code mismatch: %s", v.Reason),
			Recommendation: "Verify HS code with customs broker before shipment",
		})
	}
	return anomalies
}

// detectExtremeTransit flags transit times beyond mean + k·σ over the whole
// dataset. A deliberately coarse safety net outside the per-route IQR
// mechanism; no external call involved.
func (d *Detector) detectExtremeTransit(ds *model.Dataset) []model.Anomaly {
	if len(ds.Shipments) < 2 {
		return nil
	}

	times := make([]float64, len(ds.Shipments))
	for i := range ds.Shipments {
		times[i] = float64(ds.Shipments[i].DaysInTransit)
	}
	mean := stats.Mean(times)
	std := stats.StdDev(times)
	threshold := mean + d.cfg.TransitSigmaFactor*std

	var anomalies []model.Anomaly
	for i := range ds.Shipments {
		s := &ds.Shipments[i]
		if float64(s.DaysInTransit) <= threshold {
			continue
		}

		anomalies = append(anomalies, model.Anomaly{
			ShipmentID: s.ID,
			Type:       model.TypeExtremeTransitDelay,
			Layer:      model.LayerSemantic,
			Severity:   model.SeverityMedium,
			Evidence: model.ExtremeTransitEvidence{
				ActualDays:  s.DaysInTransit,
				MeanTransit: mean,
				StdTransit:  std,
				Threshold:   threshold,
			},
			Impact:         fmt.Sprintf("Extreme transit delay: %d days (normal: %d ± %d)", s.DaysInTransit, int(mean), int(std)),
			Recommendation: "Investigate shipment delay with logistics provider",
		})
	}
	return anomalies
}

// buildValidationPrompt renders the strict HS-validation instruction for one
// batch. The service must answer with nothing but a JSON array.
func buildValidationPrompt(batch []candidate) string {
	data, _ := json.Marshal(batch)

	var b strings.Builder
	b.WriteString("TASK: Identify ONLY clear HS code mismatches (high confidence only).\n\n")
	b.WriteString("STRICT CRITERIA:\n")
	b.WriteString("- Flag only if HS code category CONTRADICTS product material\n")
	b.WriteString("- Do NOT flag if code reasonably fits (e.g., teak wood with furniture code is OK)\n")
	b.WriteString("- Do NOT flag if material vaguely relates to code\n")
	b.WriteString("- Require: DEFINITE conflict between claimed code and actual material\n\n")
	b.WriteString("SHIPMENTS TO VALIDATE:\n")
	b.Write(data)
	b.WriteString("\n\nHS CODE CATEGORIES:\n")
	b.WriteString("- 61: Knitted apparel ONLY (shirts, sweaters, jersey)\n")
	b.WriteString("- 62: Woven apparel ONLY (dresses, fabric, textiles)\n")
	b.WriteString("- 69: Ceramics ONLY (tiles, pottery)\n")
	b.WriteString("- 73: Iron/steel fasteners ONLY (bolts, screws, nuts)\n")
	b.WriteString("- 84: Machinery ONLY (motors, pumps, equipment)\n")
	b.WriteString("- 85: Electronics ONLY (LED lights, circuits, electrical)\n")
	b.WriteString("- 94: Wooden furniture ONLY (chairs, tables, desks)\n\n")
	b.WriteString("RESPOND ONLY WITH A JSON ARRAY (no other text) of objects:\n")
	b.WriteString(`{"shipment_id": 1, "is_mismatch": true, "confidence": 0.95, "reason": "HS code 84 (machinery) but material is fabric"}`)
	b.WriteString("\n\nRETURN ONLY MISMATCHES WITH confidence >= 0.8")
	return b.String()
}
