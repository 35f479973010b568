package query

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/observability"
	"github.com/shelfwatch/shelfwatch/internal/querycache"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// Rows join the SKU's current record, so history of a deleted SKU is left out.
const diffQuery = `
SELECT h1.nc_code,
       i.brand_name,
       h1.quantity AS quantity_date1,
       h2.quantity AS quantity_date2,
       COALESCE(s.name, '') AS supplier_name
FROM historical_inventory h1
JOIN historical_inventory h2
  ON h2.nc_code = h1.nc_code AND h2.snapshot_date = ?
JOIN inventory i ON i.nc_code = h1.nc_code
LEFT JOIN suppliers s ON s.id = i.supplier_id
WHERE h1.snapshot_date = ?
  AND h1.quantity <> h2.quantity`

// Diff returns every SKU recorded on both dates whose quantity changed,
// ranked by percentage change, largest first. The filter applies to each
// SKU's current supplier. No changes yield an empty slice.
func (e *Engine) Diff(ctx context.Context, date1, date2 time.Time, filter inventory.SupplierFilter) ([]inventory.DiffRow, error) {
	key := querycache.DiffKey(date1, date2, filter)
	return querycache.GetOrCompute(ctx, e.cache, key, func(ctx context.Context) ([]inventory.DiffRow, error) {
		return e.diff(ctx, date1, date2, filter)
	})
}

func (e *Engine) diff(ctx context.Context, date1, date2 time.Time, filter inventory.SupplierFilter) ([]inventory.DiffRow, error) {
	defer observability.ObserveQuery(querycache.KindDiff, time.Now())

	query, args, err := supplierClause(diffQuery,
		[]any{inventory.FormatDate(date2), inventory.FormatDate(date1)}, filter)
	if err != nil {
		return nil, err
	}

	rows := []inventory.DiffRow{}
	if err := e.db.SelectContext(ctx, &rows, e.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", inventory.FormatDate(date1), inventory.FormatDate(date2), err)
	}
	inventory.RankDiff(rows)

	e.log.WithFields(logrus.Fields{
		"date1":    inventory.FormatDate(date1),
		"date2":    inventory.FormatDate(date2),
		"supplier": filter.String(),
		"rows":     len(rows),
	}).Debug("Computed diff")
	return rows, nil
}
