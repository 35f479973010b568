package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/platform/platformtest"
)

func TestResolveSupplier_Idempotent(t *testing.T) {
	db := platformtest.NewDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	acme, err := r.ResolveSupplier(ctx, "Acme")
	require.NoError(t, err)
	again, err := r.ResolveSupplier(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, acme, again)

	other, err := r.ResolveSupplier(ctx, "acme")
	require.NoError(t, err)
	assert.NotEqual(t, acme, other, "lookup is case-sensitive")

	suppliers, err := r.ListSuppliers(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 2)
	assert.Equal(t, "Acme", suppliers[0].Name)
	assert.Equal(t, "acme", suppliers[1].Name)
}

func TestResolveBroker_SeparateNamespace(t *testing.T) {
	db := platformtest.NewDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	_, err := r.ResolveSupplier(ctx, "Shared")
	require.NoError(t, err)
	_, err = r.ResolveBroker(ctx, "Shared")
	require.NoError(t, err)

	brokers, err := r.ListBrokers(ctx)
	require.NoError(t, err)
	require.Len(t, brokers, 1)
	assert.Equal(t, "Shared", brokers[0].Name)
}

func TestResolve_EmptyName(t *testing.T) {
	db := platformtest.NewDB(t)
	r := NewResolver(db)

	_, err := r.ResolveSupplier(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestResolveSuppliers_Batch(t *testing.T) {
	db := platformtest.NewDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	ids, err := r.ResolveSuppliers(ctx, []string{"B", "A", "", "B"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	a, err := r.ResolveSupplier(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, a, ids["A"])
}

func TestResolver_WithTxRollback(t *testing.T) {
	db := platformtest.NewDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	_, err = r.WithTx(tx).ResolveSupplier(ctx, "Ghost")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	suppliers, err := r.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Empty(t, suppliers)
}
