package query

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shelfwatch/shelfwatch/internal/observability"
	"github.com/shelfwatch/shelfwatch/internal/querycache"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// AvailableDates returns every snapshot date on record, newest first.
func (e *Engine) AvailableDates(ctx context.Context) ([]string, error) {
	return querycache.GetOrCompute(ctx, e.cache, querycache.NewKey(querycache.KindDates),
		func(ctx context.Context) ([]string, error) {
			defer observability.ObserveQuery(querycache.KindDates, time.Now())

			dates := []string{}
			if err := e.db.SelectContext(ctx, &dates,
				`SELECT DISTINCT snapshot_date FROM historical_inventory ORDER BY snapshot_date DESC`); err != nil {
				return nil, fmt.Errorf("list snapshot dates: %w", err)
			}
			return dates, nil
		})
}

// Suppliers returns every known supplier name, ascending.
func (e *Engine) Suppliers(ctx context.Context) ([]string, error) {
	return querycache.GetOrCompute(ctx, e.cache, querycache.NewKey(querycache.KindSuppliers),
		func(ctx context.Context) ([]string, error) {
			defer observability.ObserveQuery(querycache.KindSuppliers, time.Now())

			suppliers, err := e.resolver.ListSuppliers(ctx)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(suppliers))
			for _, s := range suppliers {
				names = append(names, s.Name)
			}
			return names, nil
		})
}

// Brokers returns every known broker name, ascending.
func (e *Engine) Brokers(ctx context.Context) ([]string, error) {
	return querycache.GetOrCompute(ctx, e.cache, querycache.NewKey(querycache.KindBrokers),
		func(ctx context.Context) ([]string, error) {
			defer observability.ObserveQuery(querycache.KindBrokers, time.Now())

			brokers, err := e.resolver.ListBrokers(ctx)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(brokers))
			for _, b := range brokers {
				names = append(names, b.Name)
			}
			return names, nil
		})
}

// SKUs returns every current SKU record ordered by NC code.
func (e *Engine) SKUs(ctx context.Context) ([]inventory.SKU, error) {
	return querycache.GetOrCompute(ctx, e.cache, querycache.NewKey(querycache.KindSKUs),
		func(ctx context.Context) ([]inventory.SKU, error) {
			defer observability.ObserveQuery(querycache.KindSKUs, time.Now())

			skus, err := e.skus.List(ctx)
			if err != nil {
				return nil, err
			}
			if skus == nil {
				skus = []inventory.SKU{}
			}
			return skus, nil
		})
}

// SKU returns the current record of one SKU, or catalog.ErrSKUNotFound.
func (e *Engine) SKU(ctx context.Context, id string) (*inventory.SKU, error) {
	return e.skus.Get(ctx, id)
}

// DailyTotals returns the summed quantity of every snapshot date, oldest first.
func (e *Engine) DailyTotals(ctx context.Context) ([]inventory.DailyTotal, error) {
	return querycache.GetOrCompute(ctx, e.cache, querycache.NewKey(querycache.KindTotals),
		func(ctx context.Context) ([]inventory.DailyTotal, error) {
			defer observability.ObserveQuery(querycache.KindTotals, time.Now())

			totals := []inventory.DailyTotal{}
			if err := e.db.SelectContext(ctx, &totals,
				`SELECT snapshot_date, SUM(quantity) AS total
				 FROM historical_inventory
				 GROUP BY snapshot_date
				 ORDER BY snapshot_date`); err != nil {
				return nil, fmt.Errorf("daily totals: %w", err)
			}
			return totals, nil
		})
}

const topBrandsQuery = `
SELECT i.brand_name
FROM historical_inventory h
JOIN inventory i ON i.nc_code = h.nc_code
WHERE h.snapshot_date BETWEEN ? AND ?
GROUP BY i.brand_name
ORDER BY SUM(h.quantity) DESC, i.brand_name
LIMIT ? OFFSET ?`

const brandRowsQuery = `
SELECT i.brand_name, h.snapshot_date, h.quantity, i.size, i.cases_per_pallet
FROM historical_inventory h
JOIN inventory i ON i.nc_code = h.nc_code
WHERE h.snapshot_date BETWEEN ? AND ?
  AND i.brand_name IN (?)
ORDER BY h.snapshot_date`

type brandRow struct {
	Brand          string `db:"brand_name"`
	Date           string `db:"snapshot_date"`
	Quantity       int    `db:"quantity"`
	Size           string `db:"size"`
	CasesPerPallet int    `db:"cases_per_pallet"`
}

// BrandTrends ranks brands by summed quantity over [start, end], takes the
// page selected by limit and offset, and returns the per-date volume of each
// of those brands in millilitres. Results follow brand rank, then date.
func (e *Engine) BrandTrends(ctx context.Context, start, end time.Time, limit, offset int) ([]inventory.BrandVolume, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []inventory.BrandVolume{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	key := querycache.NewKey(querycache.KindBrandTrends,
		inventory.FormatDate(start), inventory.FormatDate(end), strconv.Itoa(limit), strconv.Itoa(offset))
	return querycache.GetOrCompute(ctx, e.cache, key, func(ctx context.Context) ([]inventory.BrandVolume, error) {
		return e.brandTrends(ctx, inventory.FormatDate(start), inventory.FormatDate(end), limit, offset)
	})
}

func (e *Engine) brandTrends(ctx context.Context, start, end string, limit, offset int) ([]inventory.BrandVolume, error) {
	defer observability.ObserveQuery(querycache.KindBrandTrends, time.Now())

	var brands []string
	if err := e.db.SelectContext(ctx, &brands, e.db.Rebind(topBrandsQuery), start, end, limit, offset); err != nil {
		return nil, fmt.Errorf("rank brands: %w", err)
	}
	out := []inventory.BrandVolume{}
	if len(brands) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(brandRowsQuery, start, end, brands)
	if err != nil {
		return nil, fmt.Errorf("expand brands: %w", err)
	}
	var rows []brandRow
	if err := e.db.SelectContext(ctx, &rows, e.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("brand volumes: %w", err)
	}

	type point struct{ brand, date string }
	volumes := make(map[point]float64)
	datesByBrand := make(map[string][]string)
	for _, r := range rows {
		p := point{r.Brand, r.Date}
		if _, ok := volumes[p]; !ok {
			datesByBrand[r.Brand] = append(datesByBrand[r.Brand], r.Date)
		}
		volumes[p] += inventory.VolumeMilliliters(r.Size, r.Quantity, r.CasesPerPallet)
	}

	for _, b := range brands {
		for _, d := range datesByBrand[b] {
			out = append(out, inventory.BrandVolume{Brand: b, Date: d, Milliliters: volumes[point{b, d}]})
		}
	}
	return out, nil
}
