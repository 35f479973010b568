package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/catalog"
	"github.com/shelfwatch/shelfwatch/internal/platform/platformtest"
	"github.com/shelfwatch/shelfwatch/internal/query"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

type countingInvalidator struct {
	flushes int
	err     error
	lastCtx context.Context
}

func (c *countingInvalidator) Flush(ctx context.Context) error {
	c.flushes++
	c.lastCtx = ctx
	return c.err
}

func newTestService(t *testing.T) (*Service, *sqlx.DB, *countingInvalidator) {
	t.Helper()
	db := platformtest.NewDB(t)
	log, _ := test.NewNullLogger()
	inv := &countingInvalidator{}
	return NewService(db, inv, log), db, inv
}

var (
	day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
)

func seedSKUs(t *testing.T, db *sqlx.DB, ids ...string) {
	t.Helper()
	store := catalog.NewSKUStore(db)
	for _, id := range ids {
		require.NoError(t, store.Replace(context.Background(), inventory.SKU{ID: id, Brand: "Brand " + id}))
	}
}

func historyCount(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM historical_inventory`))
	return n
}

func TestIngest_Idempotent(t *testing.T) {
	svc, db, inv := newTestService(t)
	ctx := context.Background()
	seedSKUs(t, db, "A", "B")

	rows := []inventory.StockRow{
		{SKU: "A", Supplier: "Acme", Quantity: 10},
		{SKU: "B", Supplier: "Beta", Quantity: 20},
	}

	first, err := svc.Ingest(ctx, day1, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, first.Skipped)
	assert.Equal(t, "2024-01-01", first.Date)
	assert.NotEmpty(t, first.RunID)

	// A changed quantity on the same date must not overwrite the record.
	rows[0].Quantity = 99
	second, err := svc.Ingest(ctx, day1, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)
	assert.NotEqual(t, first.RunID, second.RunID)

	var qty int
	require.NoError(t, db.Get(&qty, `SELECT quantity FROM historical_inventory WHERE nc_code = 'A'`))
	assert.Equal(t, 10, qty)
	assert.Equal(t, 2, historyCount(t, db))
	assert.Equal(t, 2, inv.flushes)
}

func TestIngest_BatchDedupKeepsLast(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedSKUs(t, db, "A")

	report, err := svc.Ingest(context.Background(), day1, []inventory.StockRow{
		{SKU: "A", Supplier: "Acme", Quantity: 1},
		{SKU: " A ", Supplier: "Acme", Quantity: 2},
		{SKU: "A", Supplier: "Acme", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 2, report.Duplicates)

	var qty int
	require.NoError(t, db.Get(&qty, `SELECT quantity FROM historical_inventory WHERE nc_code = 'A'`))
	assert.Equal(t, 3, qty)
}

func TestIngest_DropsUnresolvable(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedSKUs(t, db, "A")

	report, err := svc.Ingest(context.Background(), day1, []inventory.StockRow{
		{SKU: "", Quantity: 1},
		{SKU: "UNKNOWN", Quantity: 1},
		{SKU: "A", Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Received)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 2, report.Dropped)
	assert.Equal(t, 1, historyCount(t, db))
}

func TestIngest_DroppedRowsCreateNoSuppliers(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedSKUs(t, db, "A")

	_, err := svc.Ingest(context.Background(), day1, []inventory.StockRow{
		{SKU: "UNKNOWN", Supplier: "Ghost", Quantity: 1},
		{SKU: "A", Supplier: "Acme", Quantity: 4},
	})
	require.NoError(t, err)

	var names []string
	require.NoError(t, db.Select(&names, `SELECT name FROM suppliers ORDER BY name`))
	assert.Equal(t, []string{"Acme"}, names)
}

func TestIngest_RecordsSupplierAtSnapshotTime(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedSKUs(t, db, "A")

	_, err := svc.Ingest(ctx, day1, []inventory.StockRow{{SKU: "A", Supplier: "Acme", Quantity: 1}})
	require.NoError(t, err)

	var name string
	require.NoError(t, db.Get(&name,
		`SELECT s.name FROM historical_inventory h JOIN suppliers s ON s.id = h.supplier_id WHERE h.nc_code = 'A'`))
	assert.Equal(t, "Acme", name)
}

func TestIngest_EmptyBatch(t *testing.T) {
	svc, _, inv := newTestService(t)

	report, err := svc.Ingest(context.Background(), day1, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Inserted)
	assert.Equal(t, 1, inv.flushes)
}

func TestIngest_InvalidatorErrorIsNotFatal(t *testing.T) {
	svc, db, inv := newTestService(t)
	inv.err = errors.New("redis down")
	seedSKUs(t, db, "A")

	report, err := svc.Ingest(context.Background(), day1, []inventory.StockRow{{SKU: "A", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
}

var feedRows = []inventory.FeedRow{
	{SKU: "X001", Brand: "Brand X", Quantity: 100, Size: "750ML", CasesPerPallet: 12, Supplier: "Acme", Broker: "Bro"},
	{SKU: "Y002", Brand: "Brand Y", Quantity: 7, Size: "1.75L", CasesPerPallet: 6, Supplier: "Beta"},
}

func TestApplyCurrentAndRotate(t *testing.T) {
	svc, db, inv := newTestService(t)
	ctx := context.Background()

	report, err := svc.ApplyCurrentAndRotate(ctx, day1, feedRows)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Current)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, inv.flushes)

	sku, err := catalog.NewSKUStore(db).Get(ctx, "X001")
	require.NoError(t, err)
	assert.Equal(t, 100, sku.Quantity)
	require.NotNil(t, sku.SupplierID)
	require.NotNil(t, sku.BrokerID)

	y, err := catalog.NewSKUStore(db).Get(ctx, "Y002")
	require.NoError(t, err)
	assert.Nil(t, y.BrokerID)

	// Same date again: current state is replaced, history is untouched.
	changed := []inventory.FeedRow{feedRows[0]}
	changed[0].Quantity = 60
	report, err = svc.ApplyCurrentAndRotate(ctx, day1, changed)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 2, report.Skipped)

	var qty int
	require.NoError(t, db.Get(&qty, `SELECT quantity FROM historical_inventory WHERE nc_code = 'X001'`))
	assert.Equal(t, 100, qty)
}

func TestApplyCurrentAndRotate_RangeMatchesAppliedRows(t *testing.T) {
	svc, db, inv := newTestService(t)
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	engine := query.New(db, nil, log)

	_, err := svc.ApplyCurrentAndRotate(ctx, day2, feedRows)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.flushes)

	rows, err := engine.Range(ctx, day2, day2, inventory.AllSuppliers)
	require.NoError(t, err)
	assert.Equal(t, []inventory.RangeRow{
		{SKU: "X001", Brand: "Brand X", Date: "2024-01-02", Quantity: 100, SupplierName: "Acme"},
		{SKU: "Y002", Brand: "Brand Y", Date: "2024-01-02", Quantity: 7, SupplierName: "Beta"},
	}, rows)
}

func TestApplyCurrentAndRotate_DiffScenario(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	engine := query.New(db, nil, log)

	_, err := svc.ApplyCurrentAndRotate(ctx, day1, feedRows)
	require.NoError(t, err)
	next := []inventory.FeedRow{feedRows[0], feedRows[1]}
	next[0].Quantity = 60
	_, err = svc.ApplyCurrentAndRotate(ctx, day2, next)
	require.NoError(t, err)

	diff, err := engine.Diff(ctx, day1, day2, inventory.AllSuppliers)
	require.NoError(t, err)
	require.Len(t, diff, 1)
	assert.Equal(t, "X001", diff[0].SKU)
	assert.InDelta(t, 39.6, diff[0].PercentageChange, 0.01)
}

func TestApplyCurrentAndRotate_RollsBackOnFailure(t *testing.T) {
	svc, db, inv := newTestService(t)
	ctx := context.Background()

	_, err := db.Exec(`DROP TABLE historical_inventory`)
	require.NoError(t, err)

	_, err = svc.ApplyCurrentAndRotate(ctx, day1, feedRows)
	require.Error(t, err)
	assert.Zero(t, inv.flushes)

	n, err := catalog.NewSKUStore(db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "current records must roll back with the rotation")

	suppliers, err := catalog.NewResolver(db).ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Empty(t, suppliers)

	runs, err := svc.Runs().List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, OpRotate, runs[0].Operation)
	require.NotNil(t, runs[0].ErrorMessage)
}

func TestBackfill_NeverOverwritesCurrent(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ApplyCurrentAndRotate(ctx, day2, feedRows[:1])
	require.NoError(t, err)

	old := []inventory.FeedRow{feedRows[0], feedRows[1]}
	old[0].Quantity = 500
	old[0].Brand = "Old Label"
	report, err := svc.Backfill(ctx, day1, old)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Current, "only Y002 is new")
	assert.Equal(t, 2, report.Inserted)

	sku, err := catalog.NewSKUStore(db).Get(ctx, "X001")
	require.NoError(t, err)
	assert.Equal(t, 100, sku.Quantity)
	assert.Equal(t, "Brand X", sku.Brand)

	var qty int
	require.NoError(t, db.Get(&qty,
		`SELECT quantity FROM historical_inventory WHERE nc_code = 'X001' AND snapshot_date = '2024-01-01'`))
	assert.Equal(t, 500, qty)

	again, err := svc.Backfill(ctx, day1, old)
	require.NoError(t, err)
	assert.Zero(t, again.Inserted)
	assert.Equal(t, 2, again.Skipped)
}

func TestRuns_Recorded(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedSKUs(t, db, "A")

	_, err := svc.Ingest(ctx, day1, []inventory.StockRow{{SKU: "A", Quantity: 1}, {SKU: "Z", Quantity: 1}})
	require.NoError(t, err)

	runs, err := svc.Runs().List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.Equal(t, OpIngest, runs[0].Operation)
	assert.Equal(t, "2024-01-01", runs[0].Date)
	assert.Equal(t, 2, runs[0].Received)
	assert.Equal(t, 1, runs[0].Inserted)
	assert.Equal(t, 1, runs[0].Dropped)
	assert.Nil(t, runs[0].ErrorMessage)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestDedupStock(t *testing.T) {
	out, dup, dropped := dedupStock([]inventory.StockRow{
		{SKU: "B", Quantity: 1},
		{SKU: "A", Quantity: 1},
		{SKU: "  ", Quantity: 1},
		{SKU: "B", Quantity: 2},
	})
	assert.Equal(t, []inventory.StockRow{{SKU: "B", Quantity: 2}, {SKU: "A", Quantity: 1}}, out)
	assert.Equal(t, 1, dup)
	assert.Equal(t, 1, dropped)
}

func TestRun_CancelledCallerStillRecordsFailure(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.run(ctx, OpIngest, day1, 1, func(ctx context.Context, _ *sqlx.Tx, _ *inventory.IngestionReport) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	runs, err := svc.Runs().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.NotNil(t, runs[0].FinishedAt)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Contains(t, *runs[0].ErrorMessage, "context canceled")
}

type ctxKey struct{}

func TestIngest_FlushIgnoresCallerCancellation(t *testing.T) {
	svc, db, inv := newTestService(t)
	seedSKUs(t, db, "A")

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	defer cancel()

	_, err := svc.Ingest(ctx, day1, []inventory.StockRow{{SKU: "A", Quantity: 1}})
	require.NoError(t, err)

	require.NotNil(t, inv.lastCtx)
	cancel()
	assert.NoError(t, inv.lastCtx.Err())
	assert.Equal(t, "req-1", inv.lastCtx.Value(ctxKey{}))
}
