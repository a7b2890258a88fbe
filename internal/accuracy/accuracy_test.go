package accuracy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportops/tradewatch/internal/model"
)

func TestEvaluate(t *testing.T) {
	planted := []PlantedAnomaly{
		{ShipmentID: 12, Type: model.TypePriceMismatch},
		{ShipmentID: 33, Type: model.TypeIncotermFreightMismatch},
		{ShipmentID: 15, Type: model.TypeInvalidHSCodeFormat},
	}
	detected := []model.Anomaly{
		{ShipmentID: 12, Type: model.TypePriceMismatch, Layer: 1},
		{ShipmentID: 33, Type: model.TypeIncotermFreightMismatch, Layer: 1},
		{ShipmentID: 80, Type: model.TypeExcessiveInsurance, Layer: 1}, // not planted
	}

	score := Evaluate(planted, detected)

	assert.Equal(t, 2, score.TruePositives)
	require.Len(t, score.Missed, 1)
	assert.Equal(t, 15, score.Missed[0].ShipmentID)
	require.Len(t, score.FalsePositives, 1)
	assert.Equal(t, 80, score.FalsePositives[0].ShipmentID)

	assert.InDelta(t, 2.0/3.0, score.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, score.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, score.F1, 1e-9)
}

func TestEvaluate_TypeMustMatch(t *testing.T) {
	planted := []PlantedAnomaly{{ShipmentID: 10, Type: model.TypePriceMismatch}}
	detected := []model.Anomaly{{ShipmentID: 10, Type: model.TypePriceOutlier}}

	score := Evaluate(planted, detected)

	assert.Zero(t, score.TruePositives, "same shipment but different type is not a match")
	assert.Len(t, score.Missed, 1)
	assert.Len(t, score.FalsePositives, 1)
}

func TestEvaluate_BuyerLevelFindingsExcluded(t *testing.T) {
	planted := []PlantedAnomaly{{ShipmentID: 10, Type: model.TypePriceMismatch}}
	detected := []model.Anomaly{
		{BuyerID: 3, ShipmentIDs: []int{4, 5, 6}, Type: model.TypeVolumeSpike},
		{ShipmentID: 10, Type: model.TypePriceMismatch},
	}

	score := Evaluate(planted, detected)

	assert.Equal(t, 1, score.TruePositives)
	assert.Empty(t, score.FalsePositives, "buyer-level records are outside scoring scope")
	assert.InDelta(t, 1.0, score.Precision, 1e-9)
}

func TestEvaluate_DuplicateDetectionsCountOnce(t *testing.T) {
	planted := []PlantedAnomaly{{ShipmentID: 10, Type: model.TypePriceMismatch}}
	detected := []model.Anomaly{
		{ShipmentID: 10, Type: model.TypePriceMismatch},
		{ShipmentID: 10, Type: model.TypePriceMismatch},
	}

	score := Evaluate(planted, detected)

	assert.Equal(t, 1, score.TruePositives)
	assert.Empty(t, score.FalsePositives, "repeat detections of a matched key are not penalized")
	assert.InDelta(t, 1.0, score.Recall, 1e-9)
}

func TestEvaluate_Empty(t *testing.T) {
	score := Evaluate(nil, nil)
	assert.Zero(t, score.Precision)
	assert.Zero(t, score.Recall)
	assert.Zero(t, score.F1)
}
