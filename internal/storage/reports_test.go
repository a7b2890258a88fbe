package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/llm"
	"github.com/exportops/tradewatch/internal/model"
	"github.com/exportops/tradewatch/internal/pipeline"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close storage: %v", err)
		}
	})
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		ID:               "11111111-2222-3333-4444-555555555555",
		GeneratedAt:      time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC),
		Duration:         2300 * time.Millisecond,
		LLMCalls:         3,
		Tokens:           llm.TokenUsage{Input: 900, Output: 120},
		ExecutiveSummary: "# Executive Summary\nTwo issues found.",
		Anomalies: []model.Anomaly{
			{
				ShipmentID: 12,
				Type:       model.TypePriceMismatch,
				Layer:      model.LayerRules,
				Severity:   model.SeverityHigh,
				Evidence: model.PriceMismatchEvidence{
					Quantity:         1000,
					UnitPrice:        5.50,
					ExpectedTotalFOB: 5500,
					ActualTotalFOB:   7000,
					Discrepancy:      1500,
				},
				Impact:         "Billing discrepancy of $1500.00. Buyer may dispute payment.",
				Recommendation: "Verify invoice math. Correct before shipment release.",
			},
			{
				BuyerID:     4,
				ShipmentIDs: []int{7, 8, 9},
				Type:        model.TypeVolumeSpike,
				Layer:       model.LayerStatistical,
				Severity:    model.SeverityMedium,
				Evidence: model.VolumeSpikeEvidence{
					BuyerName:         "European Commerce GmbH",
					BuyerID:           4,
					MonthsAnalyzed:    4,
					HistoricalAvg:     100,
					LatestMonthVolume: 450,
					SpikeRatio:        4.5,
				},
				Impact:         "Unexpected volume change.",
				Recommendation: "Verify order authenticity.",
			},
			{
				ShipmentID: 120,
				Type:       model.TypeHSCodeProductMismatch,
				Layer:      model.LayerSemantic,
				Severity:   model.SeverityHigh,
				Confidence: 0.95,
				Evidence: model.HSCodeMismatchEvidence{
					HSCode:      "62091000",
					ProductName: "Electronic Control Units",
					Reason:      "textile code on electronics",
					ShipmentID:  120,
					Confidence:  0.95,
				},
			},
		},
	}
}

func TestStorage_SaveAndGetReport(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	original := sampleReport()

	require.NoError(t, store.SaveReport(ctx, original))

	loaded, err := store.GetReport(ctx, original.ID)
	require.NoError(t, err)

	assert.Equal(t, original.ID, loaded.ID)
	assert.True(t, loaded.GeneratedAt.Equal(original.GeneratedAt))
	assert.Equal(t, original.Duration, loaded.Duration)
	assert.Equal(t, original.LLMCalls, loaded.LLMCalls)
	assert.Equal(t, original.Tokens, loaded.Tokens)
	assert.Equal(t, original.ExecutiveSummary, loaded.ExecutiveSummary)

	require.Len(t, loaded.Anomalies, 3)

	// Order is preserved.
	assert.Equal(t, model.TypePriceMismatch, loaded.Anomalies[0].Type)
	assert.Equal(t, model.TypeVolumeSpike, loaded.Anomalies[1].Type)
	assert.Equal(t, model.TypeHSCodeProductMismatch, loaded.Anomalies[2].Type)

	first := loaded.Anomalies[0]
	assert.Equal(t, 12, first.ShipmentID)
	assert.Equal(t, model.SeverityHigh, first.Severity)
	assert.Equal(t, original.Anomalies[0].Impact, first.Impact)

	// Evidence round-trips as raw JSON carrying the original fields.
	raw, ok := first.Evidence.(model.RawEvidence)
	require.True(t, ok)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(raw.Data, &ev))
	assert.InDelta(t, 1500, ev["discrepancy"].(float64), 1e-9)

	buyerLevel := loaded.Anomalies[1]
	assert.Equal(t, 4, buyerLevel.BuyerID)
	assert.Equal(t, []int{7, 8, 9}, buyerLevel.ShipmentIDs)
	assert.Zero(t, buyerLevel.ShipmentID)

	semantic := loaded.Anomalies[2]
	assert.InDelta(t, 0.95, semantic.Confidence, 1e-9)
}

func TestStorage_GetReport_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetReport(context.Background(), "missing-run")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStorage_SaveReport_RejectsEmptyID(t *testing.T) {
	store := newTestStorage(t)

	err := store.SaveReport(context.Background(), &pipeline.Report{})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestStorage_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	first := sampleReport()
	first.ID = "aaaaaaaa-0000-0000-0000-000000000001"
	first.GeneratedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	second := sampleReport()
	second.ID = "aaaaaaaa-0000-0000-0000-000000000002"
	second.GeneratedAt = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveReport(ctx, first))
	require.NoError(t, store.SaveReport(ctx, second))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID, "newest first")
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, 3, runs[0].TotalAnomalies)
	assert.Equal(t, 3, runs[0].LLMCalls)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStorage_DuplicateRunIDRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	report := sampleReport()

	require.NoError(t, store.SaveReport(ctx, report))
	assert.ErrorIs(t, store.SaveReport(ctx, report), common.ErrDuplicateEntry, "run ids are primary keys")
}
