package model

// StatBounds is the IQR envelope a statistical detector measured a value
// against. Reported alongside every layer-2 outlier so reviewers can see the
// bounds that were in force.
type StatBounds struct {
	Lower float64 `json:"lower_bound"`
	Upper float64 `json:"upper_bound"`
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
}

// PriceMismatchEvidence backs PRICE_MISMATCH.
type PriceMismatchEvidence struct {
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	ExpectedTotalFOB float64 `json:"expected_total_fob"`
	ActualTotalFOB   float64 `json:"actual_total_fob"`
	Discrepancy      float64 `json:"discrepancy"`
}

// AnomalyType implements Evidence.
func (PriceMismatchEvidence) AnomalyType() AnomalyType { return TypePriceMismatch }

// IncotermFreightEvidence backs INCOTERM_FREIGHT_MISMATCH and
// INCOTERM_EXW_ERROR; Rule states which incoterm obligation was violated.
type IncotermFreightEvidence struct {
	Incoterm    Incoterm `json:"incoterm"`
	Rule        string   `json:"rule"`
	FreightCost float64  `json:"freight_cost"`
	exw         bool
}

// NewCIFFreightEvidence records a CIF shipment with no freight paid.
func NewCIFFreightEvidence(freight float64) IncotermFreightEvidence {
	return IncotermFreightEvidence{
		Incoterm:    IncotermCIF,
		Rule:        "CIF = Cost + Insurance + FREIGHT (seller must pay)",
		FreightCost: freight,
	}
}

// NewEXWFreightEvidence records an EXW shipment where the seller paid freight.
func NewEXWFreightEvidence(freight float64) IncotermFreightEvidence {
	return IncotermFreightEvidence{
		Incoterm:    IncotermEXW,
		Rule:        "EXW = buyer arranges everything (seller should not pay freight)",
		FreightCost: freight,
		exw:         true,
	}
}

// AnomalyType implements Evidence.
func (e IncotermFreightEvidence) AnomalyType() AnomalyType {
	if e.exw {
		return TypeIncotermEXWError
	}
	return TypeIncotermFreightMismatch
}

// DrawbackEvidence backs INVALID_DRAWBACK_CLAIM.
type DrawbackEvidence struct {
	CustomsStatus    CustomsStatus `json:"customs_status"`
	Rule             string        `json:"rule"`
	DrawbackClaimed  float64       `json:"drawback_claimed"`
	EstimatedPenalty float64       `json:"estimated_penalty"`
}

// AnomalyType implements Evidence.
func (DrawbackEvidence) AnomalyType() AnomalyType { return TypeInvalidDrawbackClaim }

// MissingPaymentDateEvidence backs MISSING_PAYMENT_DATE.
type MissingPaymentDateEvidence struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
	Issue         string        `json:"issue"`
}

// AnomalyType implements Evidence.
func (MissingPaymentDateEvidence) AnomalyType() AnomalyType { return TypeMissingPaymentDate }

// PaymentStatusEvidence backs PAYMENT_STATUS_INCONSISTENT.
type PaymentStatusEvidence struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
	Issue         string        `json:"issue"`
	DaysToPayment int           `json:"days_to_payment"`
}

// AnomalyType implements Evidence.
func (PaymentStatusEvidence) AnomalyType() AnomalyType { return TypePaymentStatusInconsist }

// ExcessiveInsuranceEvidence backs EXCESSIVE_INSURANCE.
type ExcessiveInsuranceEvidence struct {
	IndustryStandard string  `json:"industry_standard"`
	TotalFOB         float64 `json:"total_fob"`
	InsuranceAmount  float64 `json:"insurance_amount"`
	Percentage       float64 `json:"percentage"`
}

// AnomalyType implements Evidence.
func (ExcessiveInsuranceEvidence) AnomalyType() AnomalyType { return TypeExcessiveInsurance }

// FOBInsuranceEvidence backs FOB_INSURANCE_MISMATCH.
type FOBInsuranceEvidence struct {
	Incoterm        Incoterm `json:"incoterm"`
	Rule            string   `json:"rule"`
	InsuranceAmount float64  `json:"insurance_charged_to_seller"`
}

// AnomalyType implements Evidence.
func (FOBInsuranceEvidence) AnomalyType() AnomalyType { return TypeFOBInsuranceMismatch }

// HSCodeFormatEvidence backs INVALID_HS_CODE_FORMAT.
type HSCodeFormatEvidence struct {
	HSCode          string `json:"hs_code"`
	ExpectedFormat  string `json:"expected_format"`
	Length          int    `json:"length"`
	ContainsLetters bool   `json:"contains_letters"`
}

// AnomalyType implements Evidence.
func (HSCodeFormatEvidence) AnomalyType() AnomalyType { return TypeInvalidHSCodeFormat }

// PriceOutlierEvidence backs PRICE_OUTLIER. StandardPrice is the catalog
// cross-check reference, independent of the IQR bounds.
type PriceOutlierEvidence struct {
	ProductName      string     `json:"product_name"`
	Bounds           StatBounds `json:"statistical_bounds"`
	ProductID        int        `json:"product_id"`
	SampleSize       int        `json:"sample_size"`
	UnitPrice        float64    `json:"unit_price"`
	StandardPrice    float64    `json:"standard_price"`
	DeviationPercent float64    `json:"deviation_percent"`
}

// AnomalyType implements Evidence.
func (PriceOutlierEvidence) AnomalyType() AnomalyType { return TypePriceOutlier }

// TransitOutlierEvidence backs TRANSIT_TIME_OUTLIER.
type TransitOutlierEvidence struct {
	Route         string     `json:"route"`
	ContainerType string     `json:"container_type"`
	Bounds        StatBounds `json:"statistical_bounds"`
	ActualDays    int        `json:"actual_transit_days"`
	ExpectedDays  int        `json:"expected_transit_days"`
	DelayDays     int        `json:"delay_days"`
	SampleSize    int        `json:"sample_size"`
}

// AnomalyType implements Evidence.
func (TransitOutlierEvidence) AnomalyType() AnomalyType { return TypeTransitTimeOutlier }

// FreightOutlierEvidence backs FREIGHT_COST_OUTLIER.
type FreightOutlierEvidence struct {
	Route         string     `json:"route"`
	ContainerType string     `json:"container_type"`
	Bounds        StatBounds `json:"statistical_bounds"`
	SampleSize    int        `json:"sample_size"`
	FreightCost   float64    `json:"freight_cost"`
	Q3Cost        float64    `json:"q3_cost"`
	ExcessOverQ3  float64    `json:"excess_over_q3"`
}

// AnomalyType implements Evidence.
func (FreightOutlierEvidence) AnomalyType() AnomalyType { return TypeFreightCostOutlier }

// PaymentDeteriorationEvidence backs PAYMENT_BEHAVIOR_DETERIORATION.
type PaymentDeteriorationEvidence struct {
	BuyerName            string  `json:"buyer_name"`
	LastPayments         []int   `json:"last_payments"`
	BuyerID              int     `json:"buyer_id"`
	HistoricalSampleSize int     `json:"historical_sample_size"`
	RecentSampleSize     int     `json:"recent_sample_size"`
	HistoricalAvgDays    float64 `json:"historical_avg_payment_days"`
	RecentAvgDays        float64 `json:"recent_avg_payment_days"`
	DeteriorationDays    float64 `json:"deterioration_days"`
	ExpectedByContract   float64 `json:"expected_by_contract"`
}

// AnomalyType implements Evidence.
func (PaymentDeteriorationEvidence) AnomalyType() AnomalyType { return TypePaymentDeterioration }

// VolumeSpikeEvidence backs VOLUME_SPIKE.
type VolumeSpikeEvidence struct {
	BuyerName         string  `json:"buyer_name"`
	BuyerID           int     `json:"buyer_id"`
	MonthsAnalyzed    int     `json:"months_analyzed"`
	HistoricalAvg     float64 `json:"historical_avg_monthly_volume"`
	LatestMonthVolume float64 `json:"latest_month_volume"`
	SpikeRatio        float64 `json:"spike_ratio"`
	CreditLimit       float64 `json:"buyer_credit_limit,omitempty"`
}

// AnomalyType implements Evidence.
func (VolumeSpikeEvidence) AnomalyType() AnomalyType { return TypeVolumeSpike }

// HSCodeMismatchEvidence backs HS_CODE_PRODUCT_MISMATCH, built from the
// completion service's structured verdict.
type HSCodeMismatchEvidence struct {
	HSCode      string  `json:"hs_code"`
	ProductName string  `json:"product_name"`
	Reason      string  `json:"reason"`
	ShipmentID  int     `json:"shipment_id"`
	Confidence  float64 `json:"confidence"`
}

// AnomalyType implements Evidence.
func (HSCodeMismatchEvidence) AnomalyType() AnomalyType { return TypeHSCodeProductMismatch }

// ExtremeTransitEvidence backs EXTREME_TRANSIT_DELAY, the dataset-wide
// mean+3σ safety net.
type ExtremeTransitEvidence struct {
	ActualDays  int     `json:"actual_days"`
	MeanTransit float64 `json:"mean_transit"`
	StdTransit  float64 `json:"std_transit"`
	Threshold   float64 `json:"threshold"`
}

// AnomalyType implements Evidence.
func (ExtremeTransitEvidence) AnomalyType() AnomalyType { return TypeExtremeTransitDelay }
