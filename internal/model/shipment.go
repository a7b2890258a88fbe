// Package model defines the core domain entities: shipments, the reference
// tables they join against, and the anomaly records produced by the
// detection layers.
package model

import "time"

// Incoterm identifies which party bears freight, insurance and risk.
type Incoterm string

// Supported incoterms.
const (
	IncotermFOB Incoterm = "FOB"
	IncotermCIF Incoterm = "CIF"
	IncotermEXW Incoterm = "EXW"
	IncotermDDP Incoterm = "DDP"
)

// CustomsStatus is the customs lifecycle state of a shipment.
type CustomsStatus string

// Customs states.
const (
	CustomsCleared  CustomsStatus = "cleared"
	CustomsPending  CustomsStatus = "pending"
	CustomsRejected CustomsStatus = "rejected"
)

// PaymentStatus is the payment lifecycle state of a shipment.
type PaymentStatus string

// Payment states.
const (
	PaymentReceived PaymentStatus = "received"
	PaymentPending  PaymentStatus = "pending"
	PaymentOverdue  PaymentStatus = "overdue"
)

// Shipment is one export trade transaction.
type Shipment struct {
	ShipmentDate       time.Time     `json:"shipment_date"`
	DaysToPayment      *int          `json:"days_to_payment"` // nil unless payment recorded
	Incoterm           Incoterm      `json:"incoterm"`
	HSCode             string        `json:"hs_code"`
	OriginCountry      string        `json:"origin_country"`
	DestinationCountry string        `json:"destination_country"`
	OriginPort         string        `json:"origin_port"`
	DestinationPort    string        `json:"destination_port"`
	ContainerType      string        `json:"container_type"`
	CustomsStatus      CustomsStatus `json:"customs_status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	ID                 int           `json:"id"`
	BuyerID            int           `json:"buyer_id"`
	ProductID          int           `json:"product_id"`
	Quantity           int           `json:"quantity"`
	DaysInTransit      int           `json:"days_in_transit"`
	UnitPrice          float64       `json:"unit_price"`
	TotalFOB           float64       `json:"total_fob"`
	FreightCost        float64       `json:"freight_cost"`
	InsuranceAmount    float64       `json:"insurance_amount"`
	DrawbackAmount     float64       `json:"drawback_amount"`
}

// CalculatedFOB returns quantity × unit price, the invoice total implied by
// the line items. A divergence from TotalFOB is what the price-mismatch rule
// flags.
func (s Shipment) CalculatedFOB() float64 {
	return float64(s.Quantity) * s.UnitPrice
}

// Month returns the calendar-month bucket of the shipment date as YYYYMM,
// used by the volume-spike detector.
func (s Shipment) Month() int {
	return s.ShipmentDate.Year()*100 + int(s.ShipmentDate.Month())
}
