// Package catalog manages the reference data of the inventory feed: suppliers,
// brokers and the current SKU records that historical snapshots point at.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// ErrEmptyName is returned when resolving a blank supplier or broker name.
var ErrEmptyName = errors.New("empty name")

const (
	suppliersTable = "suppliers"
	brokersTable   = "brokers"
)

// Resolver maps supplier and broker display names to stable identifiers,
// creating them on first sight. It works on a database handle or a transaction.
type Resolver struct {
	db sqlx.ExtContext
}

// NewResolver creates a Resolver over db.
func NewResolver(db sqlx.ExtContext) *Resolver {
	return &Resolver{db: db}
}

// WithTx returns a Resolver bound to tx. Ids allocated through it disappear
// if the transaction rolls back.
func (r *Resolver) WithTx(tx *sqlx.Tx) *Resolver {
	return &Resolver{db: tx}
}

// ResolveSupplier returns the id for the supplier name, allocating one if needed.
// Lookup is case-sensitive and exact.
func (r *Resolver) ResolveSupplier(ctx context.Context, name string) (int64, error) {
	return r.resolve(ctx, suppliersTable, name)
}

// ResolveBroker returns the id for the broker name, allocating one if needed.
func (r *Resolver) ResolveBroker(ctx context.Context, name string) (int64, error) {
	return r.resolve(ctx, brokersTable, name)
}

// ResolveSuppliers resolves every distinct non-blank name. Blank names are
// left out of the result.
func (r *Resolver) ResolveSuppliers(ctx context.Context, names []string) (map[string]int64, error) {
	return r.resolveAll(ctx, suppliersTable, names)
}

// ResolveBrokers resolves every distinct non-blank name.
func (r *Resolver) ResolveBrokers(ctx context.Context, names []string) (map[string]int64, error) {
	return r.resolveAll(ctx, brokersTable, names)
}

// ListSuppliers returns all suppliers ordered by name.
func (r *Resolver) ListSuppliers(ctx context.Context) ([]inventory.Supplier, error) {
	var out []inventory.Supplier
	if err := sqlx.SelectContext(ctx, r.db, &out, `SELECT id, name FROM suppliers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return out, nil
}

// ListBrokers returns all brokers ordered by name.
func (r *Resolver) ListBrokers(ctx context.Context) ([]inventory.Broker, error) {
	var out []inventory.Broker
	if err := sqlx.SelectContext(ctx, r.db, &out, `SELECT id, name FROM brokers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list brokers: %w", err)
	}
	return out, nil
}

// resolve is a single upsert so concurrent first sightings of a name cannot
// race between a lookup and an insert.
func (r *Resolver) resolve(ctx context.Context, table, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("resolve %s: %w", table, ErrEmptyName)
	}

	query := r.db.Rebind(fmt.Sprintf(
		`INSERT INTO %s (name) VALUES (?)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`, table))

	var id int64
	if err := sqlx.GetContext(ctx, r.db, &id, query, name); err != nil {
		return 0, fmt.Errorf("resolve %s %q: %w", table, name, err)
	}
	return id, nil
}

func (r *Resolver) resolveAll(ctx context.Context, table string, names []string) (map[string]int64, error) {
	ids := make(map[string]int64)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, ok := ids[name]; ok {
			continue
		}
		id, err := r.resolve(ctx, table, name)
		if err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, nil
}
