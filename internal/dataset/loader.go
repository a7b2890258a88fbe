// Package dataset loads the shipment table and its reference tables from
// CSV files into an immutable in-memory snapshot.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/exportops/tradewatch/internal/accuracy"
	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/model"
)

// Standard file names inside a dataset directory.
const (
	ShipmentsFile = "shipments.csv"
	BuyersFile    = "buyers.csv"
	ProductsFile  = "product_catalog.csv"
	RoutesFile    = "routes.csv"
	PlantedFile   = "planted_anomalies.json"
)

const dateLayout = "2006-01-02"

// Loader reads dataset files and reports malformed rows without failing
// the whole load.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// LoadDir loads all four tables from a directory and builds the indexed
// snapshot. The shipments table is required; reference tables may be absent,
// detectors then degrade per record.
func (l *Loader) LoadDir(dir string) (*model.Dataset, error) {
	shipments, err := l.loadShipments(filepath.Join(dir, ShipmentsFile))
	if err != nil {
		return nil, err
	}

	products, err := l.loadProducts(filepath.Join(dir, ProductsFile))
	if err != nil {
		return nil, err
	}
	buyers, err := l.loadBuyers(filepath.Join(dir, BuyersFile))
	if err != nil {
		return nil, err
	}
	routes, err := l.loadRoutes(filepath.Join(dir, RoutesFile))
	if err != nil {
		return nil, err
	}

	l.logger.Info("dataset loaded",
		"shipments", len(shipments),
		"products", len(products),
		"buyers", len(buyers),
		"routes", len(routes))

	return model.NewDataset(shipments, products, routes, buyers), nil
}

// LoadPlanted reads the planted-anomaly truth file used for accuracy scoring.
func LoadPlanted(path string) ([]accuracy.PlantedAnomaly, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading planted anomalies: %w", err)
	}
	var planted []accuracy.PlantedAnomaly
	if err := json.Unmarshal(data, &planted); err != nil {
		return nil, fmt.Errorf("parsing planted anomalies: %w", err)
	}
	return planted, nil
}

func (l *Loader) loadShipments(path string) ([]model.Shipment, error) {
	rows, err := readTable(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", common.ErrMissingTable, path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading shipments: %w", err)
	}

	shipments := make([]model.Shipment, 0, len(rows))
	for _, row := range rows {
		s, err := parseShipment(row)
		if err != nil {
			l.logger.Warn("skipping malformed shipment row", "id", row.get("id"), "error", err)
			continue
		}
		shipments = append(shipments, s)
	}
	return shipments, nil
}

func parseShipment(row record) (model.Shipment, error) {
	var s model.Shipment
	var err error

	if s.ID, err = row.intField("id"); err != nil {
		return s, err
	}
	if s.BuyerID, err = row.intField("buyer_id"); err != nil {
		return s, err
	}
	if s.ProductID, err = row.intField("product_id"); err != nil {
		return s, err
	}
	if s.Quantity, err = row.intField("quantity"); err != nil {
		return s, err
	}
	if s.UnitPrice, err = row.floatField("unit_price"); err != nil {
		return s, err
	}
	if s.TotalFOB, err = row.floatField("total_fob"); err != nil {
		return s, err
	}
	if s.FreightCost, err = row.floatField("freight_cost"); err != nil {
		return s, err
	}
	if s.InsuranceAmount, err = row.floatField("insurance_amount"); err != nil {
		return s, err
	}
	if s.DrawbackAmount, err = row.floatField("drawback_amount"); err != nil {
		return s, err
	}
	if s.DaysInTransit, err = row.intField("days_in_transit"); err != nil {
		return s, err
	}

	s.Incoterm = model.Incoterm(row.get("incoterm"))
	s.HSCode = row.get("hs_code")
	s.OriginCountry = row.get("origin_country")
	s.DestinationCountry = row.get("destination_country")
	s.OriginPort = row.get("origin_port")
	s.DestinationPort = row.get("destination_port")
	s.CustomsStatus = model.CustomsStatus(row.get("customs_status"))
	s.PaymentStatus = model.PaymentStatus(row.get("payment_status"))
	s.ContainerType = row.get("container_type")

	if s.ShipmentDate, err = time.Parse(dateLayout, row.get("shipment_date")); err != nil {
		return s, fmt.Errorf("shipment_date: %w", err)
	}

	// Empty means payment not recorded, which is meaningful to the rules
	// layer, so it stays distinguishable from zero days.
	if raw := row.get("days_to_payment"); raw != "" {
		days, err := parseIntish(raw)
		if err != nil {
			return s, fmt.Errorf("days_to_payment: %w", err)
		}
		s.DaysToPayment = &days
	}

	return s, nil
}

func (l *Loader) loadProducts(path string) ([]model.Product, error) {
	rows, err := readTable(path)
	if os.IsNotExist(err) {
		l.logger.Warn("product catalog not found, price and classification checks degrade", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	products := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		var p model.Product
		var perr error
		if p.ID, perr = row.intField("id"); perr == nil {
			p.StandardPrice, perr = row.floatField("standard_price")
		}
		if perr != nil {
			l.logger.Warn("skipping malformed product row", "id", row.get("id"), "error", perr)
			continue
		}
		p.Name = row.get("name")
		p.Category = row.get("category")
		p.Description = row.get("description")
		p.Material = row.get("material")
		p.HSCode = row.get("hs_code")
		products = append(products, p)
	}
	return products, nil
}

func (l *Loader) loadBuyers(path string) ([]model.Buyer, error) {
	rows, err := readTable(path)
	if os.IsNotExist(err) {
		l.logger.Warn("buyers table not found, buyer names fall back to ids", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading buyers: %w", err)
	}

	buyers := make([]model.Buyer, 0, len(rows))
	for _, row := range rows {
		var b model.Buyer
		var perr error
		if b.ID, perr = row.intField("id"); perr == nil {
			if b.CreditLimit, perr = row.floatField("credit_limit"); perr == nil {
				b.AvgPaymentDays, perr = row.intField("avg_payment_days")
			}
		}
		if perr != nil {
			l.logger.Warn("skipping malformed buyer row", "id", row.get("id"), "error", perr)
			continue
		}
		b.Name = row.get("name")
		b.Country = row.get("country")
		b.Reliability = row.get("payment_reliability")
		buyers = append(buyers, b)
	}
	return buyers, nil
}

func (l *Loader) loadRoutes(path string) ([]model.Route, error) {
	rows, err := readTable(path)
	if os.IsNotExist(err) {
		l.logger.Warn("routes table not found, transit baselines fall back to observed data", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}

	routes := make([]model.Route, 0, len(rows))
	for _, row := range rows {
		var r model.Route
		var perr error
		if r.AvgTransitDays, perr = row.intField("avg_transit_days"); perr == nil {
			r.DistanceKM, perr = row.floatField("distance_km")
		}
		if perr != nil {
			l.logger.Warn("skipping malformed route row", "origin", row.get("origin"), "error", perr)
			continue
		}
		r.Origin = row.get("origin")
		r.Destination = row.get("destination")
		r.OriginPort = row.get("origin_port")
		r.DestinationPort = row.get("destination_port")
		routes = append(routes, r)
	}
	return routes, nil
}

// record is one CSV row with header-based field access.
type record struct {
	index  map[string]int
	fields []string
}

func (r record) get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) intField(name string) (int, error) {
	raw := r.get(name)
	if raw == "" {
		return 0, fmt.Errorf("%s: empty", name)
	}
	v, err := parseIntish(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func (r record) floatField(name string) (float64, error) {
	raw := r.get(name)
	if raw == "" {
		return 0, fmt.Errorf("%s: empty", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// parseIntish accepts plain integers plus the float renderings that
// spreadsheet exports produce for integer columns ("30.0").
func parseIntish(raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func readTable(path string) ([]record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRecords(f)
}

func readRecords(r io.Reader) ([]record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var rows []record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		rows = append(rows, record{index: index, fields: fields})
	}
	return rows, nil
}
