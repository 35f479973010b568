package inventory

import "sort"

// BrandSeries is one row of the brand trend table: a brand's quantity per date.
type BrandSeries struct {
	Brand        string         `json:"brand_name"`
	SupplierName string         `json:"supplier_name"`
	Totals       map[string]int `json:"totals"`
}

// Pivot is a range result reshaped into brand rows and date columns.
type Pivot struct {
	Dates  []string      `json:"dates"`
	Brands []BrandSeries `json:"brands"`
}

// PivotByBrand reshapes range rows into a brand -> date -> quantity table.
// Quantities of SKUs sharing a brand on the same date are summed. The first
// supplier seen for a brand labels its row. Brands and dates are ascending.
func PivotByBrand(rows []RangeRow) *Pivot {
	index := make(map[string]int)
	dates := make(map[string]struct{})
	p := &Pivot{}

	for _, r := range rows {
		dates[r.Date] = struct{}{}
		i, ok := index[r.Brand]
		if !ok {
			i = len(p.Brands)
			index[r.Brand] = i
			p.Brands = append(p.Brands, BrandSeries{
				Brand:        r.Brand,
				SupplierName: r.SupplierName,
				Totals:       make(map[string]int),
			})
		}
		p.Brands[i].Totals[r.Date] += r.Quantity
	}

	for d := range dates {
		p.Dates = append(p.Dates, d)
	}
	sort.Strings(p.Dates)
	sort.SliceStable(p.Brands, func(i, j int) bool {
		return p.Brands[i].Brand < p.Brands[j].Brand
	})
	return p
}
