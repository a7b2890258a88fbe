package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShipment_CalculatedFOB(t *testing.T) {
	s := Shipment{Quantity: 1000, UnitPrice: 5.50}
	assert.InDelta(t, 5500, s.CalculatedFOB(), 1e-9)
}

func TestShipment_Month(t *testing.T) {
	s := Shipment{ShipmentDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 202403, s.Month())

	dec := Shipment{ShipmentDate: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 202312, dec.Month())
}

func TestDataset_Lookups(t *testing.T) {
	ds := NewDataset(
		nil,
		[]Product{{ID: 1, Name: "Cotton T-Shirts (Plain)"}},
		[]Route{{Origin: "India", Destination: "UAE", AvgTransitDays: 10}},
		[]Buyer{{ID: 2, Name: "Global Imports Corp"}},
	)

	p, ok := ds.Product(1)
	require.True(t, ok)
	assert.Equal(t, "Cotton T-Shirts (Plain)", p.Name)

	_, ok = ds.Product(99)
	assert.False(t, ok)

	r, ok := ds.Route("India", "UAE")
	require.True(t, ok)
	assert.Equal(t, 10, r.AvgTransitDays)

	_, ok = ds.Route("UAE", "India")
	assert.False(t, ok, "lanes are directional")

	assert.Equal(t, "Global Imports Corp", ds.BuyerName(2))
	assert.Equal(t, "Buyer 7", ds.BuyerName(7), "missing buyers get a stable placeholder")
}

func TestEvidence_TypesAgree(t *testing.T) {
	tests := []struct {
		evidence Evidence
		want     AnomalyType
	}{
		{PriceMismatchEvidence{}, TypePriceMismatch},
		{NewCIFFreightEvidence(0), TypeIncotermFreightMismatch},
		{NewEXWFreightEvidence(2500), TypeIncotermEXWError},
		{DrawbackEvidence{}, TypeInvalidDrawbackClaim},
		{MissingPaymentDateEvidence{}, TypeMissingPaymentDate},
		{PaymentStatusEvidence{}, TypePaymentStatusInconsist},
		{ExcessiveInsuranceEvidence{}, TypeExcessiveInsurance},
		{FOBInsuranceEvidence{}, TypeFOBInsuranceMismatch},
		{HSCodeFormatEvidence{}, TypeInvalidHSCodeFormat},
		{PriceOutlierEvidence{}, TypePriceOutlier},
		{TransitOutlierEvidence{}, TypeTransitTimeOutlier},
		{FreightOutlierEvidence{}, TypeFreightCostOutlier},
		{PaymentDeteriorationEvidence{}, TypePaymentDeterioration},
		{VolumeSpikeEvidence{}, TypeVolumeSpike},
		{HSCodeMismatchEvidence{}, TypeHSCodeProductMismatch},
		{ExtremeTransitEvidence{}, TypeExtremeTransitDelay},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.evidence.AnomalyType())
	}
}

func TestAnomaly_JSONShape(t *testing.T) {
	a := Anomaly{
		ShipmentID: 12,
		Type:       TypePriceMismatch,
		Layer:      LayerRules,
		Severity:   SeverityHigh,
		Evidence: PriceMismatchEvidence{
			Quantity:         1000,
			UnitPrice:        5.50,
			ExpectedTotalFOB: 5500,
			ActualTotalFOB:   7000,
			Discrepancy:      1500,
		},
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "PRICE_MISMATCH", decoded["anomaly_type"])
	assert.Equal(t, "HIGH", decoded["severity"])
	assert.InDelta(t, 1, decoded["layer"].(float64), 1e-9)
	assert.NotContains(t, decoded, "buyer_id", "zero buyer id is omitted")
	assert.NotContains(t, decoded, "confidence", "rule findings carry no confidence")

	evidence, ok := decoded["evidence"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1500, evidence["discrepancy"].(float64), 1e-9)
}

func TestRawEvidence_RoundTrip(t *testing.T) {
	original := HSCodeFormatEvidence{HSCode: "123", ExpectedFormat: "8 digits (e.g., 84713000)", Length: 3}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	raw := RawEvidence{Type: TypeInvalidHSCodeFormat, Data: data}
	assert.Equal(t, TypeInvalidHSCodeFormat, raw.AnomalyType())

	re, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(re), "persisted evidence re-emits unchanged")

	empty, err := json.Marshal(RawEvidence{Type: TypePriceMismatch})
	require.NoError(t, err)
	assert.Equal(t, "null", string(empty))
}
