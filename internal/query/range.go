package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/observability"
	"github.com/shelfwatch/shelfwatch/internal/querycache"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

const rangeQuery = `
SELECT h.nc_code,
       i.brand_name,
       h.snapshot_date,
       h.quantity,
       COALESCE(s.name, '') AS supplier_name
FROM historical_inventory h
JOIN inventory i ON i.nc_code = h.nc_code
LEFT JOIN suppliers s ON s.id = i.supplier_id
WHERE h.snapshot_date BETWEEN ? AND ?`

// Range returns every historical row dated within [start, end], sorted by
// brand, date and SKU. The filter applies to each SKU's current supplier.
func (e *Engine) Range(ctx context.Context, start, end time.Time, filter inventory.SupplierFilter) ([]inventory.RangeRow, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	key := querycache.RangeKey(start, end, filter)
	return querycache.GetOrCompute(ctx, e.cache, key, func(ctx context.Context) ([]inventory.RangeRow, error) {
		return e.rangeRows(ctx, start, end, filter)
	})
}

func (e *Engine) rangeRows(ctx context.Context, start, end time.Time, filter inventory.SupplierFilter) ([]inventory.RangeRow, error) {
	defer observability.ObserveQuery(querycache.KindRange, time.Now())

	query, args, err := supplierClause(rangeQuery,
		[]any{inventory.FormatDate(start), inventory.FormatDate(end)}, filter)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY i.brand_name, h.snapshot_date, h.nc_code`

	rows := []inventory.RangeRow{}
	if err := e.db.SelectContext(ctx, &rows, e.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("range %s..%s: %w", inventory.FormatDate(start), inventory.FormatDate(end), err)
	}
	return rows, nil
}
