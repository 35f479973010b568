// Package inventory defines the data model shared by the ingestion and query
// layers: feed rows, current SKU records, historical snapshot rows and the
// result shapes of diff and range queries.
package inventory

import "time"

// FeedRow is one typed line of the daily inventory feed. It carries every
// attribute of the current SKU record.
type FeedRow struct {
	SKU            string `json:"nc_code"`
	Brand          string `json:"brand_name"`
	Quantity       int    `json:"total_available"`
	Size           string `json:"size"`
	CasesPerPallet int    `json:"cases_per_pallet"`
	Supplier       string `json:"supplier"`
	Broker         string `json:"broker"`
}

// Stock narrows a feed row to what the historical store records.
func (r FeedRow) Stock() StockRow {
	return StockRow{SKU: r.SKU, Supplier: r.Supplier, Quantity: r.Quantity}
}

// StockRow is the minimal ingestion input: a SKU, its supplier display name
// and the quantity available on the snapshot date.
type StockRow struct {
	SKU      string `json:"nc_code"`
	Supplier string `json:"supplier"`
	Quantity int    `json:"total_available"`
}

// SKU is the current-state record of one inventory item.
type SKU struct {
	ID             string `db:"nc_code" json:"nc_code"`
	Brand          string `db:"brand_name" json:"brand_name"`
	Quantity       int    `db:"total_available" json:"total_available"`
	Size           string `db:"size" json:"size"`
	CasesPerPallet int    `db:"cases_per_pallet" json:"cases_per_pallet"`
	SupplierID     *int64 `db:"supplier_id" json:"supplier_id,omitempty"`
	BrokerID       *int64 `db:"broker_id" json:"broker_id,omitempty"`
}

// Supplier is a named owner of SKUs. Suppliers are created lazily and never deleted.
type Supplier struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Broker is a named distributor of SKUs. Brokers are created lazily and never deleted.
type Broker struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// SnapshotRow is one immutable (SKU, date) record of the historical store.
// SupplierID is the supplier at snapshot time and may differ from the SKU's
// current supplier.
type SnapshotRow struct {
	SKU        string `db:"nc_code" json:"nc_code"`
	Date       string `db:"snapshot_date" json:"date"`
	Quantity   int    `db:"quantity" json:"quantity"`
	SupplierID *int64 `db:"supplier_id" json:"supplier_id,omitempty"`
}

// DiffRow is one SKU whose quantity changed between two snapshot dates.
type DiffRow struct {
	SKU              string  `db:"nc_code" json:"nc_code"`
	Brand            string  `db:"brand_name" json:"brand_name"`
	QuantityDate1    int     `db:"quantity_date1" json:"total_available_date1"`
	QuantityDate2    int     `db:"quantity_date2" json:"total_available_date2"`
	SupplierName     string  `db:"supplier_name" json:"supplier_name"`
	PercentageChange float64 `db:"-" json:"percentage_change"`
}

// RangeRow is one point of a per-SKU time series.
type RangeRow struct {
	SKU          string `db:"nc_code" json:"nc_code"`
	Brand        string `db:"brand_name" json:"brand_name"`
	Date         string `db:"snapshot_date" json:"date"`
	Quantity     int    `db:"quantity" json:"total_available"`
	SupplierName string `db:"supplier_name" json:"supplier_name"`
}

// DailyTotal is the sum of all historical quantities recorded on one date.
type DailyTotal struct {
	Date  string `db:"snapshot_date" json:"date"`
	Total int64  `db:"total" json:"total"`
}

// BrandVolume is the volume of one brand on one date, in millilitres.
type BrandVolume struct {
	Brand       string  `json:"brand_name"`
	Date        string  `json:"date"`
	Milliliters float64 `json:"total_ml_available"`
}

// IngestionReport summarizes one ingestion call.
type IngestionReport struct {
	RunID      string    `json:"run_id"`
	Date       string    `json:"date"`
	Received   int       `json:"received"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`    // (SKU, date) already recorded
	Duplicates int       `json:"duplicates"` // collapsed by in-batch dedup
	Dropped    int       `json:"dropped"`    // missing or unresolvable SKU
	Current    int       `json:"current,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}
