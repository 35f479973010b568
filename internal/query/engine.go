// Package query answers temporal questions over the historical inventory
// store: diffs between two snapshot dates, per-SKU time series over a date
// range and the aggregates the dashboard plots. Every result goes through the
// result cache.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/catalog"
	"github.com/shelfwatch/shelfwatch/internal/querycache"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// ErrInvalidRange is returned when a range starts after it ends.
var ErrInvalidRange = errors.New("invalid date range")

// Engine runs diff, range and aggregate queries against the history store.
type Engine struct {
	db       *sqlx.DB
	cache    *querycache.Cache
	resolver *catalog.Resolver
	skus     *catalog.SKUStore
	log      logrus.FieldLogger
}

// New creates an Engine. cache may be nil, in which case every call hits the
// database.
func New(db *sqlx.DB, cache *querycache.Cache, log logrus.FieldLogger) *Engine {
	return &Engine{
		db:       db,
		cache:    cache,
		resolver: catalog.NewResolver(db),
		skus:     catalog.NewSKUStore(db),
		log:      log.WithField("component", "query"),
	}
}

// Cache returns the result cache the engine reads through.
func (e *Engine) Cache() *querycache.Cache {
	return e.cache
}

func checkRange(start, end time.Time) error {
	if inventory.FormatDate(start) > inventory.FormatDate(end) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidRange,
			inventory.FormatDate(start), inventory.FormatDate(end))
	}
	return nil
}

// supplierClause appends the current-supplier filter to a query whose
// suppliers table is aliased s. The query must still be rebound.
func supplierClause(query string, args []any, filter inventory.SupplierFilter) (string, []any, error) {
	if filter.IsAll() {
		return query, args, nil
	}
	q, a, err := sqlx.In(query+` AND s.name IN (?)`, append(args, filter.Names())...)
	if err != nil {
		return "", nil, fmt.Errorf("expand supplier filter: %w", err)
	}
	return q, a, nil
}
