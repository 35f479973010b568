package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// ErrSKUNotFound is returned when no current record exists for a SKU.
var ErrSKUNotFound = errors.New("sku not found")

// lookupChunk bounds the number of bind parameters in one IN (...) lookup.
const lookupChunk = 500

// SKUStore holds the current-state record of every SKU: one row per
// identifier, replaced wholesale on each ingestion cycle.
type SKUStore struct {
	db sqlx.ExtContext
}

// NewSKUStore creates a SKUStore over db.
func NewSKUStore(db sqlx.ExtContext) *SKUStore {
	return &SKUStore{db: db}
}

// WithTx returns a SKUStore bound to tx.
func (s *SKUStore) WithTx(tx *sqlx.Tx) *SKUStore {
	return &SKUStore{db: tx}
}

const skuColumns = `nc_code, brand_name, total_available, size, cases_per_pallet, supplier_id, broker_id`

// Replace inserts the record or overwrites every attribute of an existing one.
func (s *SKUStore) Replace(ctx context.Context, sku inventory.SKU) error {
	_, err := sqlx.NamedExecContext(ctx, s.db,
		`INSERT INTO inventory (`+skuColumns+`)
		 VALUES (:nc_code, :brand_name, :total_available, :size, :cases_per_pallet, :supplier_id, :broker_id)
		 ON CONFLICT (nc_code) DO UPDATE SET
		   brand_name = EXCLUDED.brand_name,
		   total_available = EXCLUDED.total_available,
		   size = EXCLUDED.size,
		   cases_per_pallet = EXCLUDED.cases_per_pallet,
		   supplier_id = EXCLUDED.supplier_id,
		   broker_id = EXCLUDED.broker_id`,
		sku,
	)
	if err != nil {
		return fmt.Errorf("replace sku %s: %w", sku.ID, err)
	}
	return nil
}

// InsertIfAbsent creates the record only when the SKU is unknown and reports
// whether it did. Existing records are left untouched.
func (s *SKUStore) InsertIfAbsent(ctx context.Context, sku inventory.SKU) (bool, error) {
	res, err := sqlx.NamedExecContext(ctx, s.db,
		`INSERT INTO inventory (`+skuColumns+`)
		 VALUES (:nc_code, :brand_name, :total_available, :size, :cases_per_pallet, :supplier_id, :broker_id)
		 ON CONFLICT (nc_code) DO NOTHING`,
		sku,
	)
	if err != nil {
		return false, fmt.Errorf("insert sku %s: %w", sku.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert sku %s: %w", sku.ID, err)
	}
	return n > 0, nil
}

// Get returns the current record for id.
func (s *SKUStore) Get(ctx context.Context, id string) (*inventory.SKU, error) {
	var sku inventory.SKU
	err := sqlx.GetContext(ctx, s.db, &sku,
		s.db.Rebind(`SELECT `+skuColumns+` FROM inventory WHERE nc_code = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get sku %s: %w", id, ErrSKUNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sku %s: %w", id, err)
	}
	return &sku, nil
}

// List returns every current record ordered by identifier.
func (s *SKUStore) List(ctx context.Context) ([]inventory.SKU, error) {
	var out []inventory.SKU
	if err := sqlx.SelectContext(ctx, s.db, &out, `SELECT `+skuColumns+` FROM inventory ORDER BY nc_code`); err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	return out, nil
}

// Count returns the number of current records.
func (s *SKUStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, s.db, &n, `SELECT COUNT(*) FROM inventory`); err != nil {
		return 0, fmt.Errorf("count skus: %w", err)
	}
	return n, nil
}

// Delete removes the current record for id. History is not touched.
func (s *SKUStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM inventory WHERE nc_code = ?`), id)
	if err != nil {
		return fmt.Errorf("delete sku %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete sku %s: %w", id, ErrSKUNotFound)
	}
	return nil
}

// Existing returns the subset of ids that have a current record.
func (s *SKUStore) Existing(ctx context.Context, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(ids))
	for start := 0; start < len(ids); start += lookupChunk {
		end := min(start+lookupChunk, len(ids))

		query, args, err := sqlx.In(`SELECT nc_code FROM inventory WHERE nc_code IN (?)`, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("build sku lookup: %w", err)
		}
		var codes []string
		if err := sqlx.SelectContext(ctx, s.db, &codes, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("lookup skus: %w", err)
		}
		for _, c := range codes {
			found[c] = struct{}{}
		}
	}
	return found, nil
}
