// Package rules implements the first detection layer: deterministic
// business-rule checks over the shipment table. Every check is a pure
// predicate over a single row; a row that cannot be evaluated for one rule is
// skipped for that rule only and never aborts the pass.
package rules

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"

	"github.com/exportops/tradewatch/internal/model"
)

var hsCodePattern = regexp.MustCompile(`^\d{8}$`)

// Config holds the rule thresholds. Defaults follow customs and trade-finance
// practice; they are configuration, not physics.
type Config struct {
	// PriceTolerancePercent is the allowed |total_fob - qty*price| / total_fob
	// discrepancy before PRICE_MISMATCH fires, in percent.
	PriceTolerancePercent float64
	// InsuranceMaxRatio is the upper end of the industry-standard insurance
	// band as a fraction of FOB value.
	InsuranceMaxRatio float64
	// PendingPaymentMaxDays bounds the days_to_payment window for the
	// payment-status consistency check.
	PendingPaymentMaxDays int
	// DrawbackPenaltyFactor estimates the audit penalty on a false claim.
	DrawbackPenaltyFactor float64
}

// DefaultConfig returns the default rule thresholds.
func DefaultConfig() Config {
	return Config{
		PriceTolerancePercent: 1.0,
		InsuranceMaxRatio:     0.02,
		PendingPaymentMaxDays: 180,
		DrawbackPenaltyFactor: 1.5,
	}
}

// Engine runs the rule checks.
type Engine struct {
	logger *slog.Logger
	cfg    Config
}

// New creates a rule engine with default thresholds.
func New(logger *slog.Logger) *Engine {
	return NewWithConfig(logger, DefaultConfig())
}

// NewWithConfig creates a rule engine with custom thresholds.
func NewWithConfig(logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, cfg: cfg}
}

// Detect runs every rule over the full shipment table, one pass per rule,
// and returns the combined findings. Output order is rule order, then table
// order within a rule; rules are independent so the result set is the same
// regardless of rule order.
func (e *Engine) Detect(ds *model.Dataset) []model.Anomaly {
	checks := []func(model.Shipment) *model.Anomaly{
		e.checkPriceMismatch,
		e.checkCIFFreight,
		e.checkEXWFreight,
		e.checkDrawbackValidity,
		e.checkMissingPaymentDate,
		e.checkPaymentStatusConsistency,
		e.checkExcessiveInsurance,
		e.checkFOBInsurance,
		e.checkHSCodeFormat,
	}

	var anomalies []model.Anomaly
	for _, check := range checks {
		for i := range ds.Shipments {
			if a := check(ds.Shipments[i]); a != nil {
				anomalies = append(anomalies, *a)
			}
		}
	}

	e.logger.Info("rule layer complete",
		"shipments", len(ds.Shipments),
		"anomalies", len(anomalies))

	return anomalies
}

// checkPriceMismatch flags invoices where total_fob diverges from
// quantity × unit_price by more than the tolerance.
func (e *Engine) checkPriceMismatch(s model.Shipment) *model.Anomaly {
	if s.TotalFOB <= 0 || s.Quantity <= 0 {
		// Ratio is undefined; skip the row for this rule only.
		return nil
	}

	expected := s.CalculatedFOB()
	diff := math.Abs(s.TotalFOB - expected)
	diffPct := diff / s.TotalFOB * 100

	if diffPct <= e.cfg.PriceTolerancePercent {
		return nil
	}

	return &model.Anomaly{
		ShipmentID: s.ID,
		Type:       model.TypePriceMismatch,
		Layer:      model.LayerRules,
		Severity:   model.SeverityHigh,
		Evidence: model.PriceMismatchEvidence{
			Quantity:         s.Quantity,
			UnitPrice:        s.UnitPrice,
			ExpectedTotalFOB: expected,
			ActualTotalFOB:   s.TotalFOB,
			Discrepancy:      diff,
		},
		Impact:         fmt.Sprintf("Billing discrepancy of $%.2f. Buyer may dispute payment.", diff),
		Recommendation: "Verify invoice math. Correct before shipment release.",
	}
}

// checkCIFFreight flags CIF shipments with no freight cost; under CIF the
// seller must pay freight.
func (e *Engine) checkCIFFreight(s model.Shipment) *model.Anomaly {
	if s.Incoterm != model.IncotermCIF || s.FreightCost != 0 {
		return nil
	}

	return &model.Anomaly{
		ShipmentID:     s.ID,
		Type:           model.TypeIncotermFreightMismatch,
		Layer:          model.LayerRules,
		Severity:       model.SeverityCritical,
		Evidence:       model.NewCIFFreightEvidence(s.FreightCost),
		Impact:         "Contract breach. Buyer may refuse payment or initiate dispute.",
		Recommendation: "Verify freight cost with logistics provider. Update invoice.",
	}
}

// checkEXWFreight flags EXW shipments where the seller paid freight; under
// EXW the buyer arranges transport from the factory gate.
func (e *Engine) checkEXWFreight(s model.Shipment) *model.Anomaly {
	if s.Incoterm != model.IncotermEXW || s.FreightCost <= 0 {
		return nil
	}

	return &model.Anomaly{
		ShipmentID:     s.ID,
		Type:           model.TypeIncotermEXWError,
		Layer:          model.LayerRules,
		Severity:       model.SeverityHigh,
		Evidence:       model.NewEXWFreightEvidence(s.FreightCost),
		Impact:         fmt.Sprintf("Unnecessary cost of $%.2f to exporter.", s.FreightCost),
		Recommendation: "Remove freight cost or change incoterm to CIF/DDP.",
	}
}

// checkDrawbackValidity flags drawback claims on customs-rejected shipments.
// No export happened, so no duty refund is justified.
func (e *Engine) checkDrawbackValidity(s model.Shipment) *model.Anomaly {
	if s.CustomsStatus != model.CustomsRejected || s.DrawbackAmount <= 0 {
		return nil
	}

	penalty := s.DrawbackAmount * e.cfg.DrawbackPenaltyFactor
	return &model.Anomaly{
		ShipmentID: s.ID,
		Type:       model.TypeInvalidDrawbackClaim,
		Layer:      model.LayerRules,
		Severity:   model.SeverityCritical,
		Evidence: model.DrawbackEvidence{
			CustomsStatus:    s.CustomsStatus,
			Rule:             "Drawback only valid if customs cleared shipment",
			DrawbackClaimed:  s.DrawbackAmount,
			EstimatedPenalty: penalty,
		},
		Impact:         fmt.Sprintf("False claim of %.0f. Tax audit risk: %.0f penalty.", s.DrawbackAmount, penalty),
		Recommendation: "Immediately withdraw drawback claim. Consult tax consultant.",
	}
}

// checkMissingPaymentDate flags received payments with no recorded
// days_to_payment; the receivable cannot be reconciled.
func (e *Engine) checkMissingPaymentDate(s model.Shipment) *model.Anomaly {
	if s.PaymentStatus != model.PaymentReceived || s.DaysToPayment != nil {
		return nil
	}

	return &model.Anomaly{
		ShipmentID: s.ID,
		Type:       model.TypeMissingPaymentDate,
		Layer:      model.LayerRules,
		Severity:   model.SeverityMedium,
		Evidence: model.MissingPaymentDateEvidence{
			PaymentStatus: s.PaymentStatus,
			Issue:         "Cannot determine when payment was actually received",
		},
		Impact:         "Cannot reconcile accounts. Buyer creditworthiness assessment impossible.",
		Recommendation: "Cross-reference with bank statement. Update days_to_payment.",
	}
}

// checkPaymentStatusConsistency flags pending payments that already carry a
// plausible payment date; the status was likely never updated.
func (e *Engine) checkPaymentStatusConsistency(s model.Shipment) *model.Anomaly {
	if s.PaymentStatus != model.PaymentPending || s.DaysToPayment == nil {
		return nil
	}

	days := *s.DaysToPayment
	if days <= 0 || days >= e.cfg.PendingPaymentMaxDays {
		return nil
	}

	return &model.Anomaly{
		ShipmentID: s.ID,
		Type:       model.TypePaymentStatusInconsist,
		Layer:      model.LayerRules,
		Severity:   model.SeverityMedium,
		Evidence: model.PaymentStatusEvidence{
			PaymentStatus: s.PaymentStatus,
			Issue:         "Payment was received but status not updated",
			DaysToPayment: days,
		},
		Impact:         "Misleading status. Affects buyer creditworthiness assessment.",
		Recommendation: `Update payment_status to "received".`,
	}
}

// checkExcessiveInsurance flags insurance above the industry-standard band.
func (e *Engine) checkExcessiveInsurance(s model.Shipment) *model.Anomaly {
	if s.InsuranceAmount <= s.TotalFOB*e.cfg.InsuranceMaxRatio {
		return nil
	}

	var pct float64
	if s.TotalFOB > 0 {
		pct = s.InsuranceAmount / s.TotalFOB * 100
	}
	excess := s.InsuranceAmount - s.TotalFOB*e.cfg.InsuranceMaxRatio

	return &model.Anomaly{
		ShipmentID: s.ID,
		Type:       model.TypeExcessiveInsurance,
		Layer:      model.LayerRules,
		Severity:   model.SeverityLow,
		Evidence: model.ExcessiveInsuranceEvidence{
			IndustryStandard: "0.5-2%",
			TotalFOB:         s.TotalFOB,
			InsuranceAmount:  s.InsuranceAmount,
			Percentage:       pct,
		},
		Impact:         fmt.Sprintf("Wasting $%.2f on over-insurance.", excess),
		Recommendation: "Negotiate better rates with insurance broker.",
	}
}

// checkFOBInsurance flags FOB shipments where the seller bought insurance;
// under FOB that is the buyer's responsibility.
func (e *Engine) checkFOBInsurance(s model.Shipment) *model.Anomaly {
	if s.Incoterm != model.IncotermFOB || s.InsuranceAmount <= 0 {
		return nil
	}

	return &model.Anomaly{
		ShipmentID: s.ID,
		Type:       model.TypeFOBInsuranceMismatch,
		Layer:      model.LayerRules,
		Severity:   model.SeverityMedium,
		Evidence: model.FOBInsuranceEvidence{
			Incoterm:        s.Incoterm,
			Rule:            "Under FOB, buyer arranges & pays insurance",
			InsuranceAmount: s.InsuranceAmount,
		},
		Impact:         fmt.Sprintf("Unnecessary cost of $%.2f to exporter.", s.InsuranceAmount),
		Recommendation: "Remove insurance cost or change incoterm to CIF/DDP.",
	}
}

// checkHSCodeFormat flags HS codes that are not exactly 8 decimal digits.
// Customs systems reject anything else outright.
func (e *Engine) checkHSCodeFormat(s model.Shipment) *model.Anomaly {
	if hsCodePattern.MatchString(s.HSCode) {
		return nil
	}

	containsLetters := false
	for _, r := range s.HSCode {
		if r < '0' || r > '9' {
			containsLetters = true
			break
		}
	}

	return &model.Anomaly{
		ShipmentID: s.ID,
		Type:       model.TypeInvalidHSCodeFormat,
		Layer:      model.LayerRules,
		Severity:   model.SeverityCritical,
		Evidence: model.HSCodeFormatEvidence{
			HSCode:          s.HSCode,
			ExpectedFormat:  "8 digits (e.g., 84713000)",
			Length:          len(s.HSCode),
			ContainsLetters: containsLetters,
		},
		Impact:         "Customs cannot process. Port detention and storage charges accumulate.",
		Recommendation: "Correct HS code immediately. Consult customs broker.",
	}
}
