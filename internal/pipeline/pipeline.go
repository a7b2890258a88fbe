// Package pipeline orchestrates the three detection layers over one
// immutable dataset snapshot and wraps their combined findings with run
// metadata.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/llm"
	"github.com/exportops/tradewatch/internal/model"
	"github.com/exportops/tradewatch/internal/rules"
	"github.com/exportops/tradewatch/internal/semantic"
	"github.com/exportops/tradewatch/internal/stats"
)

// Config holds per-layer configuration plus pipeline options.
type Config struct {
	// Progress, when set, is called after each layer finishes with the
	// layer number and its anomaly count. Used by the CLI for progress
	// reporting; never affects results.
	Progress func(layer, anomalies int)
	Rules    rules.Config
	Stats    stats.Config
	Semantic semantic.Config
	// ExecutiveSummary requests one extra completion call that summarizes
	// the finished run. Ignored without a completion service.
	ExecutiveSummary bool
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Rules:    rules.DefaultConfig(),
		Stats:    stats.DefaultConfig(),
		Semantic: semantic.DefaultConfig(),
	}
}

// Pipeline runs the three layers in fixed order. Layers never run
// concurrently: the semantic layer's batching and caching assume the
// snapshot is not interleaved with other work.
type Pipeline struct {
	rules    *rules.Engine
	stats    *stats.Detector
	semantic *semantic.Detector
	logger   *slog.Logger
	cfg      Config
}

// New creates a pipeline with default configuration. completer may be nil;
// the semantic layer then produces no findings.
func New(completer llm.Completer, logger *slog.Logger) *Pipeline {
	return NewWithConfig(completer, logger, DefaultConfig())
}

// NewWithConfig creates a pipeline with custom configuration.
func NewWithConfig(completer llm.Completer, logger *slog.Logger, cfg Config) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		rules:    rules.NewWithConfig(logger, cfg.Rules),
		stats:    stats.NewWithConfig(logger, cfg.Stats),
		semantic: semantic.NewWithConfig(completer, nil, logger, cfg.Semantic),
		logger:   logger,
		cfg:      cfg,
	}
}

// Run executes all three layers over the dataset and returns the unified
// report: all layer-1 findings first, then layer-2, then layer-3, each in
// its layer's emission order. Findings are never deduplicated or re-validated
// across layers. The only errors are caller-contract violations; data
// quality and external-service problems degrade inside the layers.
func (p *Pipeline) Run(ctx context.Context, ds *model.Dataset) (*Report, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: dataset", common.ErrMissingTable)
	}
	if len(ds.Shipments) == 0 {
		return nil, fmt.Errorf("%w: shipments", common.ErrMissingTable)
	}

	start := time.Now()
	p.logger.Info("starting detection pipeline", "shipments", len(ds.Shipments))

	l1 := p.rules.Detect(ds)
	p.progress(model.LayerRules, len(l1))

	l2 := p.stats.Detect(ds)
	p.progress(model.LayerStatistical, len(l2))

	l3 := p.semantic.Detect(ctx, ds)
	p.progress(model.LayerSemantic, len(l3))

	anomalies := make([]model.Anomaly, 0, len(l1)+len(l2)+len(l3))
	anomalies = append(anomalies, l1...)
	anomalies = append(anomalies, l2...)
	anomalies = append(anomalies, l3...)

	report := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Anomalies:   anomalies,
	}

	if p.cfg.ExecutiveSummary {
		summary, err := p.semantic.Summarize(ctx, anomalies)
		if err != nil {
			p.logger.Warn("executive summary unavailable", "error", err)
		}
		report.ExecutiveSummary = summary
	}

	report.Duration = time.Since(start)
	report.LLMCalls = p.semantic.Calls()
	report.Tokens = p.semantic.Usage()

	p.logger.Info("pipeline complete",
		"layer1", len(l1),
		"layer2", len(l2),
		"layer3", len(l3),
		"total", len(anomalies),
		"llm_calls", report.LLMCalls,
		"duration", report.Duration)

	return report, nil
}

func (p *Pipeline) progress(layer, anomalies int) {
	if p.cfg.Progress != nil {
		p.cfg.Progress(layer, anomalies)
	}
}
