package model

import "fmt"

// Dataset is the in-memory snapshot all detection layers scan. Layers never
// mutate it; they only read, so one snapshot can be shared across a run.
type Dataset struct {
	productsByID map[int]*Product
	buyersByID   map[int]*Buyer
	routesByLane map[laneKey]*Route
	Shipments    []Shipment
	Products     []Product
	Routes       []Route
	Buyers       []Buyer
}

type laneKey struct {
	origin      string
	destination string
}

// NewDataset builds a dataset and its reference lookup indexes.
func NewDataset(shipments []Shipment, products []Product, routes []Route, buyers []Buyer) *Dataset {
	ds := &Dataset{
		Shipments: shipments,
		Products:  products,
		Routes:    routes,
		Buyers:    buyers,
	}
	ds.buildIndexes()
	return ds
}

func (ds *Dataset) buildIndexes() {
	ds.productsByID = make(map[int]*Product, len(ds.Products))
	for i := range ds.Products {
		ds.productsByID[ds.Products[i].ID] = &ds.Products[i]
	}

	ds.buyersByID = make(map[int]*Buyer, len(ds.Buyers))
	for i := range ds.Buyers {
		ds.buyersByID[ds.Buyers[i].ID] = &ds.Buyers[i]
	}

	ds.routesByLane = make(map[laneKey]*Route, len(ds.Routes))
	for i := range ds.Routes {
		r := &ds.Routes[i]
		ds.routesByLane[laneKey{r.Origin, r.Destination}] = r
	}
}

// Product looks up a catalog entry by id.
func (ds *Dataset) Product(id int) (*Product, bool) {
	p, ok := ds.productsByID[id]
	return p, ok
}

// Buyer looks up a buyer by id.
func (ds *Dataset) Buyer(id int) (*Buyer, bool) {
	b, ok := ds.buyersByID[id]
	return b, ok
}

// Route looks up the published lane between two countries.
func (ds *Dataset) Route(origin, destination string) (*Route, bool) {
	r, ok := ds.routesByLane[laneKey{origin, destination}]
	return r, ok
}

// BuyerName returns the buyer's display name, or a stable placeholder when
// the reference row is missing.
func (ds *Dataset) BuyerName(id int) string {
	if b, ok := ds.Buyer(id); ok {
		return b.Name
	}
	return fmt.Sprintf("Buyer %d", id)
}
