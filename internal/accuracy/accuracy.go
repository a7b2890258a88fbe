// Package accuracy scores a detection run against a list of deliberately
// planted anomalies, for benchmarking on synthetic datasets.
package accuracy

import (
	"sort"

	"github.com/exportops/tradewatch/internal/model"
)

// PlantedAnomaly describes one anomaly that was injected into a synthetic
// dataset, keyed by the shipment it was planted on.
type PlantedAnomaly struct {
	Type        model.AnomalyType `json:"anomaly_type"`
	Severity    model.Severity    `json:"severity,omitempty"`
	Description string            `json:"description,omitempty"`
	ShipmentID  int               `json:"shipment_id"`
	Layer       int               `json:"layer,omitempty"`
	CostIfMiss  float64           `json:"cost_if_missed,omitempty"`
}

// Match pairs a planted anomaly with the detected finding that covered it.
type Match struct {
	Planted  PlantedAnomaly `json:"planted"`
	Detected model.Anomaly  `json:"detected"`
}

// Score is the outcome of comparing detected findings to the planted truth.
type Score struct {
	Matches        []Match          `json:"matches"`
	Missed         []PlantedAnomaly `json:"missed"`
	FalsePositives []model.Anomaly  `json:"false_positives"`
	Precision      float64          `json:"precision"`
	Recall         float64          `json:"recall"`
	F1             float64          `json:"f1"`
	TruePositives  int              `json:"true_positives"`
}

type key struct {
	typ        model.AnomalyType
	shipmentID int
}

// Evaluate compares detected findings against the planted truth. A planted
// anomaly counts as found when some finding carries the same shipment id and
// anomaly type. Buyer-level findings with no single shipment id are excluded
// from scoring entirely; they cannot be attributed to one planted record.
func Evaluate(planted []PlantedAnomaly, detected []model.Anomaly) Score {
	detectedByKey := make(map[key]model.Anomaly)
	var scoreable []model.Anomaly
	for _, a := range detected {
		if a.ShipmentID == 0 {
			continue
		}
		scoreable = append(scoreable, a)
		k := key{shipmentID: a.ShipmentID, typ: a.Type}
		if _, ok := detectedByKey[k]; !ok {
			detectedByKey[k] = a
		}
	}

	score := Score{}
	matchedKeys := make(map[key]bool)
	for _, p := range planted {
		k := key{shipmentID: p.ShipmentID, typ: p.Type}
		if a, ok := detectedByKey[k]; ok {
			score.Matches = append(score.Matches, Match{Planted: p, Detected: a})
			matchedKeys[k] = true
		} else {
			score.Missed = append(score.Missed, p)
		}
	}

	for _, a := range scoreable {
		if !matchedKeys[key{shipmentID: a.ShipmentID, typ: a.Type}] {
			score.FalsePositives = append(score.FalsePositives, a)
		}
	}

	sort.Slice(score.Missed, func(i, j int) bool {
		if score.Missed[i].ShipmentID != score.Missed[j].ShipmentID {
			return score.Missed[i].ShipmentID < score.Missed[j].ShipmentID
		}
		return score.Missed[i].Type < score.Missed[j].Type
	})

	score.TruePositives = len(score.Matches)
	if n := score.TruePositives + len(score.FalsePositives); n > 0 {
		score.Precision = float64(score.TruePositives) / float64(n)
	}
	if len(planted) > 0 {
		score.Recall = float64(score.TruePositives) / float64(len(planted))
	}
	if score.Precision+score.Recall > 0 {
		score.F1 = 2 * score.Precision * score.Recall / (score.Precision + score.Recall)
	}
	return score
}
