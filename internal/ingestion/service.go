// Package ingestion writes daily inventory snapshots: it replaces the
// current SKU records, appends them to the historical store, backfills
// archived feeds and keeps the raw feed archive.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/catalog"
	"github.com/shelfwatch/shelfwatch/internal/observability"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// Invalidator drops derived query results after the history changes.
type Invalidator interface {
	Flush(ctx context.Context) error
}

const insertSnapshotSQL = `
INSERT INTO historical_inventory (nc_code, snapshot_date, quantity, supplier_id)
VALUES (?, ?, ?, ?)
ON CONFLICT (nc_code, snapshot_date) DO NOTHING`

// WHERE true keeps SQLite from reading ON CONFLICT as a join constraint.
const rotateSQL = `
INSERT INTO historical_inventory (nc_code, snapshot_date, quantity, supplier_id)
SELECT nc_code, ?, total_available, supplier_id FROM inventory WHERE true
ON CONFLICT (nc_code, snapshot_date) DO NOTHING`

// Service applies feeds to the current-state and historical stores.
// Writers are serialized; every call runs in one transaction and flushes the
// invalidator after it commits.
type Service struct {
	db          *sqlx.DB
	resolver    *catalog.Resolver
	skus        *catalog.SKUStore
	runs        *RunStore
	invalidator Invalidator
	log         logrus.FieldLogger

	mu sync.Mutex
}

// NewService creates a new ingestion Service. invalidator may be nil.
func NewService(db *sqlx.DB, invalidator Invalidator, log logrus.FieldLogger) *Service {
	return &Service{
		db:          db,
		resolver:    catalog.NewResolver(db),
		skus:        catalog.NewSKUStore(db),
		runs:        NewRunStore(db),
		invalidator: invalidator,
		log:         log.WithField("component", "ingestion"),
	}
}

// Runs returns the run audit store.
func (s *Service) Runs() *RunStore {
	return s.runs
}

// Ingest records the quantities of rows as the snapshot of date. Rows without
// a SKU, or whose SKU has no current record, are dropped. A SKU repeated in
// the batch keeps its last occurrence. A (SKU, date) already on record is
// left untouched and counted as skipped.
func (s *Service) Ingest(ctx context.Context, date time.Time, rows []inventory.StockRow) (*inventory.IngestionReport, error) {
	return s.run(ctx, OpIngest, date, len(rows), func(ctx context.Context, tx *sqlx.Tx, report *inventory.IngestionReport) error {
		deduped, duplicates, dropped := dedupStock(rows)
		report.Duplicates = duplicates
		report.Dropped = dropped
		return s.insertSnapshots(ctx, tx, date, deduped, report)
	})
}

// ApplyCurrentAndRotate replaces the current record of every SKU in rows and
// then copies the whole current-state table into history stamped with date.
// Both steps share one transaction.
func (s *Service) ApplyCurrentAndRotate(ctx context.Context, date time.Time, rows []inventory.FeedRow) (*inventory.IngestionReport, error) {
	return s.run(ctx, OpRotate, date, len(rows), func(ctx context.Context, tx *sqlx.Tx, report *inventory.IngestionReport) error {
		deduped, duplicates, dropped := dedupFeed(rows)
		report.Duplicates = duplicates
		report.Dropped = dropped

		skus, err := s.buildSKUs(ctx, tx, deduped)
		if err != nil {
			return err
		}
		store := s.skus.WithTx(tx)
		for _, sku := range skus {
			if err := store.Replace(ctx, sku); err != nil {
				return err
			}
		}
		report.Current = len(skus)

		return s.rotate(ctx, tx, date, report)
	})
}

// Backfill creates current records only for SKUs that have none, then
// records the rows' quantities as the snapshot of date. Existing current
// records are never overwritten.
func (s *Service) Backfill(ctx context.Context, date time.Time, rows []inventory.FeedRow) (*inventory.IngestionReport, error) {
	return s.run(ctx, OpBackfill, date, len(rows), func(ctx context.Context, tx *sqlx.Tx, report *inventory.IngestionReport) error {
		deduped, duplicates, dropped := dedupFeed(rows)
		report.Duplicates = duplicates
		report.Dropped = dropped

		skus, err := s.buildSKUs(ctx, tx, deduped)
		if err != nil {
			return err
		}
		store := s.skus.WithTx(tx)
		for _, sku := range skus {
			created, err := store.InsertIfAbsent(ctx, sku)
			if err != nil {
				return err
			}
			if created {
				report.Current++
			}
		}

		stock := make([]inventory.StockRow, len(deduped))
		for i, r := range deduped {
			stock[i] = r.Stock()
		}
		return s.insertSnapshots(ctx, tx, date, stock, report)
	})
}

// DeleteSKU removes the current record of id. Its history is kept but is no
// longer returned by diff and range queries.
func (s *Service) DeleteSKU(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.skus.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("nc_code", id).Info("Deleted SKU record")
	if s.invalidator != nil {
		if err := s.invalidator.Flush(context.WithoutCancel(ctx)); err != nil {
			s.log.WithError(err).Error("Failed to invalidate query cache")
		}
	}
	return nil
}

type txFunc func(ctx context.Context, tx *sqlx.Tx, report *inventory.IngestionReport) error

func (s *Service) run(ctx context.Context, op string, date time.Time, received int, fn txFunc) (*inventory.IngestionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &inventory.IngestionReport{
		RunID:     uuid.NewString(),
		Date:      inventory.FormatDate(date),
		Received:  received,
		StartedAt: time.Now().UTC(),
	}
	log := s.log.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"operation": op,
		"date":      report.Date,
	})

	if err := s.runs.Start(ctx, op, report); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error { return fn(ctx, tx, report) })
	report.DurationMs = time.Since(report.StartedAt).Milliseconds()
	observability.RecordIngestion(op, report.Inserted, report.Skipped, report.Duplicates, report.Dropped, err)

	// Bookkeeping after the transaction must not be lost to a cancelled caller.
	bg := context.WithoutCancel(ctx)
	if ferr := s.runs.Finish(bg, report, err); ferr != nil {
		log.WithError(ferr).Warn("Failed to update run status")
	}
	if err != nil {
		log.WithError(err).Error("Ingestion failed")
		return nil, fmt.Errorf("%s %s: %w", op, report.Date, err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.Flush(bg); err != nil {
			log.WithError(err).Error("Failed to invalidate query cache")
		}
	}

	log.WithFields(logrus.Fields{
		"received":   report.Received,
		"inserted":   report.Inserted,
		"skipped":    report.Skipped,
		"duplicates": report.Duplicates,
		"dropped":    report.Dropped,
		"current":    report.Current,
	}).Info("Ingestion completed")
	return report, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("Rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertSnapshots writes one history row per resolvable SKU of rows.
func (s *Service) insertSnapshots(ctx context.Context, tx *sqlx.Tx, date time.Time, rows []inventory.StockRow, report *inventory.IngestionReport) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.SKU
	}
	existing, err := s.skus.WithTx(tx).Existing(ctx, ids)
	if err != nil {
		return err
	}
	// Only rows that will be recorded may create suppliers.
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := existing[r.SKU]; ok {
			names = append(names, r.Supplier)
		}
	}
	suppliers, err := s.resolver.WithTx(tx).ResolveSuppliers(ctx, names)
	if err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertSnapshotSQL))
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	day := inventory.FormatDate(date)
	for _, r := range rows {
		if _, ok := existing[r.SKU]; !ok {
			report.Dropped++
			continue
		}
		var supplierID *int64
		if id, ok := suppliers[r.Supplier]; ok {
			supplierID = &id
		}
		res, err := stmt.ExecContext(ctx, r.SKU, day, r.Quantity, supplierID)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", r.SKU, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", r.SKU, err)
		}
		if n > 0 {
			report.Inserted++
		} else {
			report.Skipped++
		}
	}
	return nil
}

// rotate copies every current record into history for date.
func (s *Service) rotate(ctx context.Context, tx *sqlx.Tx, date time.Time, report *inventory.IngestionReport) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(rotateSQL), inventory.FormatDate(date))
	if err != nil {
		return fmt.Errorf("rotate into history: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate into history: %w", err)
	}
	total, err := s.skus.WithTx(tx).Count(ctx)
	if err != nil {
		return err
	}
	report.Inserted = int(inserted)
	report.Skipped = total - int(inserted)
	return nil
}

// buildSKUs resolves supplier and broker names and returns the current
// records described by rows.
func (s *Service) buildSKUs(ctx context.Context, tx *sqlx.Tx, rows []inventory.FeedRow) ([]inventory.SKU, error) {
	suppliers := make([]string, len(rows))
	brokers := make([]string, len(rows))
	for i, r := range rows {
		suppliers[i] = r.Supplier
		brokers[i] = r.Broker
	}

	resolver := s.resolver.WithTx(tx)
	supplierIDs, err := resolver.ResolveSuppliers(ctx, suppliers)
	if err != nil {
		return nil, err
	}
	brokerIDs, err := resolver.ResolveBrokers(ctx, brokers)
	if err != nil {
		return nil, err
	}

	skus := make([]inventory.SKU, len(rows))
	for i, r := range rows {
		skus[i] = inventory.SKU{
			ID:             r.SKU,
			Brand:          r.Brand,
			Quantity:       r.Quantity,
			Size:           r.Size,
			CasesPerPallet: r.CasesPerPallet,
			SupplierID:     lookupID(supplierIDs, r.Supplier),
			BrokerID:       lookupID(brokerIDs, r.Broker),
		}
	}
	return skus, nil
}

func lookupID(ids map[string]int64, name string) *int64 {
	id, ok := ids[name]
	if !ok {
		return nil
	}
	return &id
}

// dedupBySKU drops rows without a SKU and collapses repeated SKUs, keeping
// the last occurrence at the position of the first.
func dedupBySKU[T any](rows []T, sku func(*T) *string) (out []T, duplicates, dropped int) {
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		id := sku(&r)
		*id = strings.TrimSpace(*id)
		if *id == "" {
			dropped++
			continue
		}
		if i, ok := index[*id]; ok {
			out[i] = r
			duplicates++
			continue
		}
		index[*id] = len(out)
		out = append(out, r)
	}
	return out, duplicates, dropped
}

func dedupStock(rows []inventory.StockRow) ([]inventory.StockRow, int, int) {
	return dedupBySKU(rows, func(r *inventory.StockRow) *string { return &r.SKU })
}

func dedupFeed(rows []inventory.FeedRow) ([]inventory.FeedRow, int, int) {
	return dedupBySKU(rows, func(r *inventory.FeedRow) *string { return &r.SKU })
}
