package model

// Severity ranks how urgently an anomaly needs attention.
type Severity string

// Severity levels, highest first.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// AnomalyType tags what kind of finding an anomaly record carries.
type AnomalyType string

// Layer 1 (rule) anomaly types.
const (
	TypePriceMismatch           AnomalyType = "PRICE_MISMATCH"
	TypeIncotermFreightMismatch AnomalyType = "INCOTERM_FREIGHT_MISMATCH"
	TypeIncotermEXWError        AnomalyType = "INCOTERM_EXW_ERROR"
	TypeInvalidDrawbackClaim    AnomalyType = "INVALID_DRAWBACK_CLAIM"
	TypeMissingPaymentDate      AnomalyType = "MISSING_PAYMENT_DATE"
	TypePaymentStatusInconsist  AnomalyType = "PAYMENT_STATUS_INCONSISTENT"
	TypeExcessiveInsurance      AnomalyType = "EXCESSIVE_INSURANCE"
	TypeFOBInsuranceMismatch    AnomalyType = "FOB_INSURANCE_MISMATCH"
	TypeInvalidHSCodeFormat     AnomalyType = "INVALID_HS_CODE_FORMAT"
)

// Layer 2 (statistical) anomaly types.
const (
	TypePriceOutlier         AnomalyType = "PRICE_OUTLIER"
	TypeTransitTimeOutlier   AnomalyType = "TRANSIT_TIME_OUTLIER"
	TypeFreightCostOutlier   AnomalyType = "FREIGHT_COST_OUTLIER"
	TypePaymentDeterioration AnomalyType = "PAYMENT_BEHAVIOR_DETERIORATION"
	TypeVolumeSpike          AnomalyType = "VOLUME_SPIKE"
)

// Layer 3 (semantic) anomaly types.
const (
	TypeHSCodeProductMismatch AnomalyType = "HS_CODE_PRODUCT_MISMATCH"
	TypeExtremeTransitDelay   AnomalyType = "EXTREME_TRANSIT_DELAY"
)

// Detection layers.
const (
	LayerRules       = 1
	LayerStatistical = 2
	LayerSemantic    = 3
)

// Evidence is the typed payload capturing the numeric facts that triggered a
// flag. Each anomaly type has its own evidence struct; the schema of the
// wire-visible record is fixed per type.
type Evidence interface {
	AnomalyType() AnomalyType
}

// Anomaly is one finding from any detection layer. Records are immutable
// after creation and are never merged across layers; the triple
// (subject, type, layer) is the downstream match key.
type Anomaly struct {
	Evidence       Evidence    `json:"evidence"`
	Type           AnomalyType `json:"anomaly_type"`
	Severity       Severity    `json:"severity"`
	Impact         string      `json:"impact"`
	Recommendation string      `json:"recommendation"`
	ShipmentIDs    []int       `json:"shipment_ids,omitempty"` // buyer-level findings span shipments
	ShipmentID     int         `json:"shipment_id,omitempty"`
	BuyerID        int         `json:"buyer_id,omitempty"`
	Layer          int         `json:"layer"`
	Confidence     float64     `json:"confidence,omitempty"` // layer 3 only
}
