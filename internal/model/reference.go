package model

// Product is a catalog entry. Reference data; immutable during a run.
type Product struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Material      string  `json:"material"`
	HSCode        string  `json:"hs_code"`
	Description   string  `json:"description"`
	ID            int     `json:"id"`
	StandardPrice float64 `json:"standard_price"`
}

// Route describes a shipping lane between two countries.
type Route struct {
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	OriginPort      string  `json:"origin_port"`
	DestinationPort string  `json:"destination_port"`
	AvgTransitDays  int     `json:"avg_transit_days"`
	DistanceKM      float64 `json:"distance_km"`
}

// Buyer is a counterparty with an established payment history.
type Buyer struct {
	Name           string  `json:"name"`
	Country        string  `json:"country"`
	Reliability    string  `json:"payment_reliability"`
	ID             int     `json:"id"`
	AvgPaymentDays int     `json:"avg_payment_days"`
	CreditLimit    float64 `json:"credit_limit"`
}
