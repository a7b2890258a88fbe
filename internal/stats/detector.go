package stats

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/exportops/tradewatch/internal/model"
)

// Config holds the statistical-layer thresholds. The IQR multiplier and the
// freight compound gate are empirically tuned defaults, not derived
// constants; treat them as configuration.
type Config struct {
	// IQRMultiplier widens the envelope beyond the classical 1.5 to cut
	// false positives at this data volume.
	IQRMultiplier float64
	// MinGroupSize is the minimum observations per group before quartiles
	// are trusted at all.
	MinGroupSize int
	// PriceDeviationHighPercent escalates a price outlier to HIGH when the
	// deviation from catalog price exceeds it.
	PriceDeviationHighPercent float64
	// TransitCriticalDelayDays escalates a transit outlier to CRITICAL.
	TransitCriticalDelayDays int
	// FreightQ3Factor and FreightAbsoluteFloor form the compound gate for
	// freight outliers: IQR membership alone is necessary but not
	// sufficient on sparse, right-skewed cost data.
	FreightQ3Factor      float64
	FreightAbsoluteFloor float64
	// FreightHighExcess escalates a freight outlier to HIGH when the excess
	// over Q3 exceeds it.
	FreightHighExcess float64
	// RecentPaymentWindow is how many trailing payments form the "recent"
	// sample for the deterioration detector.
	RecentPaymentWindow int
	// MinPaymentObservations is the minimum non-null payment-day count per
	// buyer before the trend is evaluated.
	MinPaymentObservations int
	// DeteriorationThresholdDays flags a buyer when recent average payment
	// days exceed the historical average by more than this.
	DeteriorationThresholdDays float64
	// VolumeSpikeFactor flags a buyer when the latest month's volume exceeds
	// this multiple of the prior-month average.
	VolumeSpikeFactor float64
	// MinVolumeMonths is the minimum months of history for spike detection.
	MinVolumeMonths int
}

// DefaultConfig returns the default statistical thresholds.
func DefaultConfig() Config {
	return Config{
		IQRMultiplier:              2.0,
		MinGroupSize:               5,
		PriceDeviationHighPercent:  50,
		TransitCriticalDelayDays:   20,
		FreightQ3Factor:            1.5,
		FreightAbsoluteFloor:       500,
		FreightHighExcess:          500,
		RecentPaymentWindow:        3,
		MinPaymentObservations:     3,
		DeteriorationThresholdDays: 5,
		VolumeSpikeFactor:          2.0,
		MinVolumeMonths:            3,
	}
}

// Detector runs the statistical checks. All five detectors are pure
// functions of the dataset snapshot and the configuration; groups are
// visited in sorted key order so emission order is deterministic.
type Detector struct {
	logger *slog.Logger
	cfg    Config
}

// New creates a statistical detector with default thresholds.
func New(logger *slog.Logger) *Detector {
	return NewWithConfig(logger, DefaultConfig())
}

// NewWithConfig creates a statistical detector with custom thresholds.
func NewWithConfig(logger *slog.Logger, cfg Config) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger, cfg: cfg}
}

// Detect runs all five detectors independently and concatenates their
// findings. A single shipment may appear under several anomaly types.
func (d *Detector) Detect(ds *model.Dataset) []model.Anomaly {
	var anomalies []model.Anomaly
	anomalies = append(anomalies, d.detectPriceOutliers(ds)...)
	anomalies = append(anomalies, d.detectTransitOutliers(ds)...)
	anomalies = append(anomalies, d.detectFreightOutliers(ds)...)
	anomalies = append(anomalies, d.detectPaymentDeterioration(ds)...)
	anomalies = append(anomalies, d.detectVolumeSpikes(ds)...)

	d.logger.Info("statistical layer complete",
		"shipments", len(ds.Shipments),
		"anomalies", len(anomalies))

	return anomalies
}

// detectPriceOutliers flags unit prices outside the per-product IQR
// envelope. The catalog standard price is reported as an independent
// cross-check reference alongside the bounds.
func (d *Detector) detectPriceOutliers(ds *model.Dataset) []model.Anomaly {
	groups := make(map[int][]*model.Shipment)
	for i := range ds.Shipments {
		s := &ds.Shipments[i]
		groups[s.ProductID] = append(groups[s.ProductID], s)
	}

	var anomalies []model.Anomaly
	for _, productID := range sortedIntKeys(groups) {
		group := groups[productID]
		if len(group) < d.cfg.MinGroupSize {
			continue
		}

		product, ok := ds.Product(productID)
		if !ok {
			// The catalog join is required for this check; skip the group.
			continue
		}

		prices := make([]float64, len(group))
		for i, s := range group {
			prices[i] = s.UnitPrice
		}
		bounds := IQRBounds(prices, d.cfg.IQRMultiplier)

		for _, s := range group {
			if !Outside(bounds, s.UnitPrice) {
				continue
			}

			var deviationPct float64
			if product.StandardPrice > 0 {
				deviationPct = (s.UnitPrice - product.StandardPrice) / product.StandardPrice * 100
			}
			discrepancy := float64(s.Quantity) * (s.UnitPrice - product.StandardPrice)

			severity := model.SeverityMedium
			if math.Abs(deviationPct) > d.cfg.PriceDeviationHighPercent {
				severity = model.SeverityHigh
			}

			anomalies = append(anomalies, model.Anomaly{
				ShipmentID: s.ID,
				Type:       model.TypePriceOutlier,
				Layer:      model.LayerStatistical,
				Severity:   severity,
				Evidence: model.PriceOutlierEvidence{
					ProductName:      product.Name,
					Bounds:           bounds,
					ProductID:        productID,
					SampleSize:       len(group),
					UnitPrice:        s.UnitPrice,
					StandardPrice:    product.StandardPrice,
					DeviationPercent: deviationPct,
				},
				Impact:         fmt.Sprintf("Invoice discrepancy of $%.2f. Possible error or premium variant.", discrepancy),
				Recommendation: "Review pricing with sales team. Verify against product catalog.",
			})
		}
	}
	return anomalies
}

// detectTransitOutliers flags transit times outside the per-lane IQR
// envelope. The delay is measured against the route's published average; if
// the route row is missing, Q3 of the observed group stands in.
func (d *Detector) detectTransitOutliers(ds *model.Dataset) []model.Anomaly {
	type lane struct{ origin, destination string }
	groups := make(map[lane][]*model.Shipment)
	for i := range ds.Shipments {
		s := &ds.Shipments[i]
		key := lane{s.OriginCountry, s.DestinationCountry}
		groups[key] = append(groups[key], s)
	}

	keys := make([]lane, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].origin != keys[j].origin {
			return keys[i].origin < keys[j].origin
		}
		return keys[i].destination < keys[j].destination
	})

	var anomalies []model.Anomaly
	for _, key := range keys {
		group := groups[key]
		if len(group) < d.cfg.MinGroupSize {
			continue
		}

		times := make([]float64, len(group))
		for i, s := range group {
			times[i] = float64(s.DaysInTransit)
		}
		bounds := IQRBounds(times, d.cfg.IQRMultiplier)

		expectedDays := int(bounds.Q3)
		if route, ok := ds.Route(key.origin, key.destination); ok {
			expectedDays = route.AvgTransitDays
		}

		for _, s := range group {
			if !Outside(bounds, float64(s.DaysInTransit)) {
				continue
			}

			delay := s.DaysInTransit - expectedDays
			severity := model.SeverityMedium
			if delay > d.cfg.TransitCriticalDelayDays {
				severity = model.SeverityCritical
			}

			anomalies = append(anomalies, model.Anomaly{
				ShipmentID: s.ID,
				Type:       model.TypeTransitTimeOutlier,
				Layer:      model.LayerStatistical,
				Severity:   severity,
				Evidence: model.TransitOutlierEvidence{
					Route:         fmt.Sprintf("%s -> %s", key.origin, key.destination),
					ContainerType: s.ContainerType,
					Bounds:        bounds,
					ActualDays:    s.DaysInTransit,
					ExpectedDays:  expectedDays,
					DelayDays:     delay,
					SampleSize:    len(group),
				},
				Impact:         fmt.Sprintf("$%d delay cost. Buyer may cancel if delivery misses deadline.", delay*10),
				Recommendation: "Check with shipping agent. Investigate root cause of delay.",
			})
		}
	}
	return anomalies
}

// detectFreightOutliers flags freight costs that clear the full compound
// gate: outside the IQR envelope AND above FreightQ3Factor×Q3 AND above the
// absolute floor. Groups with Q3 == 0 carry too little paid-freight signal
// and are skipped outright.
func (d *Detector) detectFreightOutliers(ds *model.Dataset) []model.Anomaly {
	type laneContainer struct{ origin, destination, container string }
	groups := make(map[laneContainer][]*model.Shipment)
	for i := range ds.Shipments {
		s := &ds.Shipments[i]
		key := laneContainer{s.OriginCountry, s.DestinationCountry, s.ContainerType}
		groups[key] = append(groups[key], s)
	}

	keys := make([]laneContainer, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.origin != b.origin {
			return a.origin < b.origin
		}
		if a.destination != b.destination {
			return a.destination < b.destination
		}
		return a.container < b.container
	})

	var anomalies []model.Anomaly
	for _, key := range keys {
		group := groups[key]
		if len(group) < d.cfg.MinGroupSize {
			continue
		}

		freights := make([]float64, len(group))
		for i, s := range group {
			freights[i] = s.FreightCost
		}
		bounds := IQRBounds(freights, d.cfg.IQRMultiplier)
		if bounds.Q3 == 0 {
			continue
		}

		for _, s := range group {
			if !Outside(bounds, s.FreightCost) {
				continue
			}
			if s.FreightCost <= bounds.Q3*d.cfg.FreightQ3Factor || s.FreightCost <= d.cfg.FreightAbsoluteFloor {
				continue
			}

			excess := s.FreightCost - bounds.Q3
			severity := model.SeverityMedium
			if excess > d.cfg.FreightHighExcess {
				severity = model.SeverityHigh
			}

			anomalies = append(anomalies, model.Anomaly{
				ShipmentID: s.ID,
				Type:       model.TypeFreightCostOutlier,
				Layer:      model.LayerStatistical,
				Severity:   severity,
				Evidence: model.FreightOutlierEvidence{
					Route:         fmt.Sprintf("%s -> %s", key.origin, key.destination),
					ContainerType: key.container,
					Bounds:        bounds,
					SampleSize:    len(group),
					FreightCost:   s.FreightCost,
					Q3Cost:        bounds.Q3,
					ExcessOverQ3:  excess,
				},
				Impact:         fmt.Sprintf("Overpaid $%.2f. Annualized impact: $%.2f", excess, excess*12),
				Recommendation: "Negotiate rates with logistics provider. Consider alternatives.",
			})
		}
	}
	return anomalies
}

// detectPaymentDeterioration flags buyers whose last few payments arrive
// materially later than their history. This is a trend comparison, not an
// IQR test.
func (d *Detector) detectPaymentDeterioration(ds *model.Dataset) []model.Anomaly {
	groups := make(map[int][]*model.Shipment)
	for i := range ds.Shipments {
		s := &ds.Shipments[i]
		groups[s.BuyerID] = append(groups[s.BuyerID], s)
	}

	var anomalies []model.Anomaly
	for _, buyerID := range sortedIntKeys(groups) {
		group := groups[buyerID]
		if len(group) < d.cfg.MinGroupSize {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			if !group[i].ShipmentDate.Equal(group[j].ShipmentDate) {
				return group[i].ShipmentDate.Before(group[j].ShipmentDate)
			}
			return group[i].ID < group[j].ID
		})

		var payments []float64
		for _, s := range group {
			if s.DaysToPayment != nil {
				payments = append(payments, float64(*s.DaysToPayment))
			}
		}
		window := d.cfg.RecentPaymentWindow
		if len(payments) < d.cfg.MinPaymentObservations || len(payments) <= window {
			continue
		}

		historical := payments[:len(payments)-window]
		recent := payments[len(payments)-window:]

		historicalAvg := Mean(historical)
		recentAvg := Mean(recent)
		deterioration := recentAvg - historicalAvg

		if deterioration <= d.cfg.DeteriorationThresholdDays {
			continue
		}

		expected := historicalAvg
		if buyer, ok := ds.Buyer(buyerID); ok {
			expected = float64(buyer.AvgPaymentDays)
		}

		lastIDs := make([]int, 0, window)
		lastPayments := make([]int, 0, window)
		for _, s := range group[len(group)-window:] {
			lastIDs = append(lastIDs, s.ID)
		}
		for _, p := range recent {
			lastPayments = append(lastPayments, int(p))
		}

		anomalies = append(anomalies, model.Anomaly{
			BuyerID:     buyerID,
			ShipmentIDs: lastIDs,
			Type:        model.TypePaymentDeterioration,
			Layer:       model.LayerStatistical,
			Severity:    model.SeverityMedium,
			Evidence: model.PaymentDeteriorationEvidence{
				BuyerName:            ds.BuyerName(buyerID),
				LastPayments:         lastPayments,
				BuyerID:              buyerID,
				HistoricalSampleSize: len(historical),
				RecentSampleSize:     len(recent),
				HistoricalAvgDays:    historicalAvg,
				RecentAvgDays:        recentAvg,
				DeteriorationDays:    deterioration,
				ExpectedByContract:   expected,
			},
			Impact:         fmt.Sprintf("Cash flow delay: %.0f. Signs of financial distress.", deterioration*10000),
			Recommendation: "Review buyer creditworthiness. Consider reducing credit limit or requesting payment guarantees.",
		})
	}
	return anomalies
}

// detectVolumeSpikes flags buyers whose latest calendar month's shipped
// quantity exceeds a multiple of their prior-month average.
func (d *Detector) detectVolumeSpikes(ds *model.Dataset) []model.Anomaly {
	groups := make(map[int][]*model.Shipment)
	for i := range ds.Shipments {
		s := &ds.Shipments[i]
		groups[s.BuyerID] = append(groups[s.BuyerID], s)
	}

	var anomalies []model.Anomaly
	for _, buyerID := range sortedIntKeys(groups) {
		group := groups[buyerID]

		monthly := make(map[int]float64)
		for _, s := range group {
			monthly[s.Month()] += float64(s.Quantity)
		}
		if len(monthly) < d.cfg.MinVolumeMonths {
			continue
		}

		months := sortedIntKeys(monthly)
		latest := months[len(months)-1]

		var prior []float64
		for _, m := range months[:len(months)-1] {
			prior = append(prior, monthly[m])
		}
		priorAvg := Mean(prior)
		latestVolume := monthly[latest]

		if latestVolume <= priorAvg*d.cfg.VolumeSpikeFactor {
			continue
		}

		var creditLimit float64
		if buyer, ok := ds.Buyer(buyerID); ok {
			creditLimit = buyer.CreditLimit
		}

		var latestIDs []int
		for _, s := range group {
			if s.Month() == latest {
				latestIDs = append(latestIDs, s.ID)
			}
		}
		sort.Ints(latestIDs)

		anomalies = append(anomalies, model.Anomaly{
			BuyerID:     buyerID,
			ShipmentIDs: latestIDs,
			Type:        model.TypeVolumeSpike,
			Layer:       model.LayerStatistical,
			Severity:    model.SeverityMedium,
			Evidence: model.VolumeSpikeEvidence{
				BuyerName:         ds.BuyerName(buyerID),
				BuyerID:           buyerID,
				MonthsAnalyzed:    len(months),
				HistoricalAvg:     priorAvg,
				LatestMonthVolume: latestVolume,
				SpikeRatio:        latestVolume / priorAvg,
				CreditLimit:       creditLimit,
			},
			Impact:         "Unexpected volume change. Could indicate opportunity or risk depending on buyer profile.",
			Recommendation: "Verify order authenticity. Check production capacity. Assess credit limit utilization.",
		})
	}
	return anomalies
}

func sortedIntKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
