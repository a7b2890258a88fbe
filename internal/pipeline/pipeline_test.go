package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/llm"
	"github.com/exportops/tradewatch/internal/model"
)

type mockCompleter struct {
	response string
	calls    int
}

func (m *mockCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	m.calls++
	return m.response, nil
}

func intPtr(v int) *int { return &v }

func cleanShipment(id int) model.Shipment {
	return model.Shipment{
		ID:                 id,
		BuyerID:            1,
		ProductID:          1,
		Quantity:           100,
		UnitPrice:          5.50,
		TotalFOB:           550,
		Incoterm:           model.IncotermCIF,
		FreightCost:        120,
		InsuranceAmount:    5,
		HSCode:             "62091000",
		OriginCountry:      "India",
		DestinationCountry: "UAE",
		ShipmentDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DaysInTransit:      10,
		CustomsStatus:      model.CustomsCleared,
		PaymentStatus:      model.PaymentReceived,
		DaysToPayment:      intPtr(30),
	}
}

func cleanDataset(n int) *model.Dataset {
	shipments := make([]model.Shipment, 0, n)
	for i := 1; i <= n; i++ {
		shipments = append(shipments, cleanShipment(i))
	}
	products := []model.Product{{ID: 1, Name: "Cotton T-Shirts (Plain)", Material: "Cotton", Category: "Textiles", StandardPrice: 5.50}}
	return model.NewDataset(shipments, products, nil, nil)
}

func TestPipeline_RejectsEmptyDataset(t *testing.T) {
	p := New(nil, nil)

	_, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrMissingTable)

	_, err = p.Run(context.Background(), model.NewDataset(nil, nil, nil, nil))
	assert.ErrorIs(t, err, common.ErrMissingTable)
}

func TestPipeline_CleanDatasetNilCompleter(t *testing.T) {
	report, err := New(nil, nil).Run(context.Background(), cleanDataset(10))
	require.NoError(t, err)

	assert.Empty(t, report.Anomalies)
	assert.Zero(t, report.LLMCalls)
	assert.Zero(t, report.Tokens.Total())
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestPipeline_LayerOrderPreserved(t *testing.T) {
	// One violation per layer: a rule break, a statistical outlier and an
	// extreme transit delay.
	shipments := make([]model.Shipment, 0, 12)
	for i := 1; i <= 10; i++ {
		shipments = append(shipments, cleanShipment(i))
	}

	ruleBreak := cleanShipment(11)
	ruleBreak.HSCode = "1234567"
	shipments = append(shipments, ruleBreak)

	slow := cleanShipment(12)
	slow.DaysInTransit = 300 // both an IQR outlier and beyond mean+3 sigma
	shipments = append(shipments, slow)

	products := []model.Product{{ID: 1, Name: "Cotton T-Shirts (Plain)", Material: "Cotton", Category: "Textiles", StandardPrice: 5.50}}
	ds := model.NewDataset(shipments, products, nil, nil)

	report, err := New(&mockCompleter{response: `[]`}, nil).Run(context.Background(), ds)
	require.NoError(t, err)
	require.NotEmpty(t, report.Anomalies)

	lastLayer := 0
	for _, a := range report.Anomalies {
		assert.GreaterOrEqual(t, a.Layer, lastLayer, "findings never go back to an earlier layer")
		lastLayer = a.Layer
	}

	byLayer := report.CountByLayer()
	assert.Equal(t, 1, byLayer[model.LayerRules])
	assert.GreaterOrEqual(t, byLayer[model.LayerStatistical], 1)
	assert.Equal(t, 1, byLayer[model.LayerSemantic])
}

func TestPipeline_ProgressCallback(t *testing.T) {
	var layers []int
	cfg := DefaultConfig()
	cfg.Progress = func(layer, _ int) { layers = append(layers, layer) }

	_, err := NewWithConfig(nil, nil, cfg).Run(context.Background(), cleanDataset(5))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, layers)
}

func TestPipeline_ExecutiveSummary(t *testing.T) {
	shipments := make([]model.Shipment, 0, 6)
	for i := 1; i <= 5; i++ {
		shipments = append(shipments, cleanShipment(i))
	}
	bad := cleanShipment(6)
	bad.HSCode = "abc"
	shipments = append(shipments, bad)
	ds := model.NewDataset(shipments, nil, nil, nil)

	mock := &mockCompleter{response: "# Executive Summary\nOne critical finding."}
	cfg := DefaultConfig()
	cfg.ExecutiveSummary = true

	report, err := NewWithConfig(mock, nil, cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Contains(t, report.ExecutiveSummary, "Executive Summary")
	assert.Positive(t, report.LLMCalls, "the summary call counts toward usage")
}

func TestReport_Counts(t *testing.T) {
	report := &Report{
		Anomalies: []model.Anomaly{
			{Type: model.TypePriceMismatch, Layer: model.LayerRules, Severity: model.SeverityHigh},
			{Type: model.TypePriceMismatch, Layer: model.LayerRules, Severity: model.SeverityHigh},
			{Type: model.TypeVolumeSpike, Layer: model.LayerStatistical, Severity: model.SeverityMedium},
		},
	}

	assert.Equal(t, 3, report.TotalAnomalies())
	assert.Equal(t, map[model.Severity]int{model.SeverityHigh: 2, model.SeverityMedium: 1}, report.CountBySeverity())
	assert.Equal(t, map[int]int{1: 2, 2: 1}, report.CountByLayer())
	assert.Equal(t, 2, report.CountByType()[model.TypePriceMismatch])
}

func TestReport_WriteJSON(t *testing.T) {
	report := &Report{
		ID:          "run-1",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		LLMCalls:    2,
		Tokens:      llm.TokenUsage{Input: 100, Output: 20},
		Anomalies: []model.Anomaly{
			{
				ShipmentID: 7,
				Type:       model.TypeInvalidHSCodeFormat,
				Layer:      model.LayerRules,
				Severity:   model.SeverityCritical,
				Evidence:   model.HSCodeFormatEvidence{HSCode: "123", ExpectedFormat: "8 digits (e.g., 84713000)", Length: 3},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var doc struct {
		Metadata struct {
			ID             string  `json:"id"`
			ExecutionTime  float64 `json:"execution_time_seconds"`
			TotalAnomalies int     `json:"total_anomalies"`
			LLMCalls       int     `json:"llm_calls"`
			TokensUsed     int     `json:"tokens_used"`
		} `json:"metadata"`
		Anomalies []map[string]any `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "run-1", doc.Metadata.ID)
	assert.InDelta(t, 1.5, doc.Metadata.ExecutionTime, 1e-9)
	assert.Equal(t, 1, doc.Metadata.TotalAnomalies)
	assert.Equal(t, 2, doc.Metadata.LLMCalls)
	assert.Equal(t, 120, doc.Metadata.TokensUsed)

	require.Len(t, doc.Anomalies, 1)
	assert.Equal(t, "INVALID_HS_CODE_FORMAT", doc.Anomalies[0]["anomaly_type"])
	evidence, ok := doc.Anomalies[0]["evidence"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "123", evidence["hs_code"])
}

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return "", errors.New("service unavailable")
}

func TestPipeline_SummaryFailureDoesNotFailRun(t *testing.T) {
	shipments := []model.Shipment{cleanShipment(1)}
	shipments[0].HSCode = "bad"
	ds := model.NewDataset(shipments, nil, nil, nil)

	cfg := DefaultConfig()
	cfg.ExecutiveSummary = true

	report, err := NewWithConfig(failingCompleter{}, nil, cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Empty(t, report.ExecutiveSummary)
	assert.NotEmpty(t, report.Anomalies)
}
