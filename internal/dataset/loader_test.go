package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/model"
)

const shipmentsHeader = "id,buyer_id,product_id,quantity,unit_price,total_fob,incoterm,freight_cost,insurance_amount,hs_code,origin_country,destination_country,origin_port,destination_port,shipment_date,days_in_transit,customs_status,drawback_amount,payment_status,days_to_payment,container_type"

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, dir, ShipmentsFile, shipmentsHeader+"\n"+
		`1,1,1,1000,5.50,5500,CIF,350,55,"62091000",India,UAE,Mundra Port,Jebel Ali Port,2024-03-15,10,cleared,0,received,30,20ft`+"\n"+
		`2,2,3,50,85.00,4250,FOB,0,0,"84713000",India,USA,JNPT Mumbai,Port of Long Beach,2024-03-20,30,cleared,0,pending,,40ft`+"\n")
	writeFile(t, dir, ProductsFile,
		"id,name,category,description,material,standard_price,hs_code\n"+
			`1,Cotton T-Shirts (Plain),Textiles,"Plain cotton t-shirts, 100% cotton",Cotton,5.50,"62091000"`+"\n"+
			`3,Electronic Control Units,Electronics,Industrial ECU,Electronic Components,85.00,"84713000"`+"\n")
	writeFile(t, dir, BuyersFile,
		"id,name,country,credit_limit,avg_payment_days,payment_reliability\n"+
			"1,Acme Electronics Ltd,UAE,500000,15,Excellent\n"+
			"2,Global Imports Corp,USA,750000,30,Good\n")
	writeFile(t, dir, RoutesFile,
		"origin,destination,origin_port,destination_port,avg_transit_days,distance_km\n"+
			"India,UAE,Mundra Port,Jebel Ali Port,10,1850\n"+
			"India,USA,JNPT Mumbai,Port of Long Beach,30,11200\n")
}

func TestLoader_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)

	ds, err := NewLoader(nil).LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, ds.Shipments, 2)
	s := ds.Shipments[0]
	assert.Equal(t, 1, s.ID)
	assert.Equal(t, model.IncotermCIF, s.Incoterm)
	assert.Equal(t, "62091000", s.HSCode, "HS codes stay strings, leading zeros intact")
	assert.Equal(t, 2024, s.ShipmentDate.Year())
	require.NotNil(t, s.DaysToPayment)
	assert.Equal(t, 30, *s.DaysToPayment)

	pending := ds.Shipments[1]
	assert.Nil(t, pending.DaysToPayment, "empty days_to_payment means not recorded")
	assert.Equal(t, model.PaymentPending, pending.PaymentStatus)

	product, ok := ds.Product(3)
	require.True(t, ok)
	assert.Equal(t, "Electronic Control Units", product.Name)

	buyer, ok := ds.Buyer(2)
	require.True(t, ok)
	assert.InDelta(t, 750000, buyer.CreditLimit, 1e-9)

	route, ok := ds.Route("India", "USA")
	require.True(t, ok)
	assert.Equal(t, 30, route.AvgTransitDays)
}

func TestLoader_MalformedRowSkipped(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	writeFile(t, dir, ShipmentsFile, shipmentsHeader+"\n"+
		`1,1,1,1000,5.50,5500,CIF,350,55,"62091000",India,UAE,,,2024-03-15,10,cleared,0,received,30,20ft`+"\n"+
		`2,1,1,not-a-number,5.50,5500,CIF,350,55,"62091000",India,UAE,,,2024-03-15,10,cleared,0,received,30,20ft`+"\n"+
		`3,1,1,1000,5.50,5500,CIF,350,55,"62091000",India,UAE,,,not-a-date,10,cleared,0,received,30,20ft`+"\n")

	ds, err := NewLoader(nil).LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, ds.Shipments, 1, "bad rows are skipped, not fatal")
	assert.Equal(t, 1, ds.Shipments[0].ID)
}

func TestLoader_MissingShipmentsFatal(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader(nil).LoadDir(dir)
	assert.ErrorIs(t, err, common.ErrMissingTable)
}

func TestLoader_MissingReferenceTablesTolerated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ShipmentsFile, shipmentsHeader+"\n"+
		`1,1,1,1000,5.50,5500,CIF,350,55,"62091000",India,UAE,,,2024-03-15,10,cleared,0,received,30,20ft`+"\n")

	ds, err := NewLoader(nil).LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ds.Shipments, 1)
	assert.Empty(t, ds.Products)
	assert.Equal(t, "Buyer 1", ds.BuyerName(1))
}

func TestLoader_IntegerColumnsWithFloatRendering(t *testing.T) {
	// Spreadsheet exports render integer columns as "30.0".
	dir := t.TempDir()
	writeFile(t, dir, ShipmentsFile, shipmentsHeader+"\n"+
		`1,1,1,1000,5.50,5500,CIF,350,55,"62091000",India,UAE,,,2024-03-15,10,cleared,0,received,30.0,20ft`+"\n")

	ds, err := NewLoader(nil).LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, ds.Shipments, 1)
	require.NotNil(t, ds.Shipments[0].DaysToPayment)
	assert.Equal(t, 30, *ds.Shipments[0].DaysToPayment)
}

func TestLoadPlanted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PlantedFile, `[
		{"shipment_id": 12, "anomaly_type": "PRICE_MISMATCH", "layer": 1, "severity": "HIGH", "description": "planted", "cost_if_missed": 1500},
		{"shipment_id": 33, "anomaly_type": "INCOTERM_FREIGHT_MISMATCH", "layer": 1, "severity": "CRITICAL"}
	]`)

	planted, err := LoadPlanted(filepath.Join(dir, PlantedFile))
	require.NoError(t, err)

	require.Len(t, planted, 2)
	assert.Equal(t, 12, planted[0].ShipmentID)
	assert.Equal(t, model.TypePriceMismatch, planted[0].Type)
	assert.Equal(t, model.SeverityHigh, planted[0].Severity)
	assert.InDelta(t, 1500, planted[0].CostIfMiss, 1e-9)
}

func TestLoadPlanted_MissingFile(t *testing.T) {
	_, err := LoadPlanted(filepath.Join(t.TempDir(), PlantedFile))
	assert.Error(t, err)
}
