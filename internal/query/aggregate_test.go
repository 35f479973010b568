package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

func TestAvailableDates(t *testing.T) {
	f := newFixture(t)
	f.sku("A", "Alpha", "Acme", "", 0)
	f.sku("B", "Bravo", "Acme", "", 0)
	f.history("A", "2024-01-01", 1)
	f.history("B", "2024-01-01", 1)
	f.history("A", "2024-01-03", 1)
	f.history("A", "2024-01-02", 1)

	dates, err := f.engine.AvailableDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-02", "2024-01-01"}, dates)
}

func TestSuppliers(t *testing.T) {
	f := newFixture(t)
	f.sku("A", "Alpha", "Zeta", "", 0)
	f.sku("B", "Bravo", "Acme", "", 0)
	f.sku("C", "Charlie", "", "", 0)

	names, err := f.engine.Suppliers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Zeta"}, names)
}

func TestDailyTotals(t *testing.T) {
	f := newFixture(t)
	f.sku("A", "Alpha", "Acme", "", 0)
	f.sku("B", "Bravo", "Acme", "", 0)
	f.history("A", "2024-01-02", 4)
	f.history("A", "2024-01-01", 1)
	f.history("B", "2024-01-01", 2)

	totals, err := f.engine.DailyTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []inventory.DailyTotal{
		{Date: "2024-01-01", Total: 3},
		{Date: "2024-01-02", Total: 4},
	}, totals)
}

func TestBrandTrends(t *testing.T) {
	f := newFixture(t)
	f.sku("A1", "Alpha", "Acme", "750ML", 12)
	f.sku("A2", "Alpha", "Acme", "1L", 6)
	f.sku("B", "Bravo", "Acme", "1.75L", 6)
	f.sku("C", "Charlie", "Acme", "50ML", 1)

	f.history("A1", "2024-01-01", 2)
	f.history("A2", "2024-01-01", 1)
	f.history("B", "2024-01-01", 10)
	f.history("B", "2024-01-02", 10)
	f.history("C", "2024-01-01", 1)
	f.history("C", "2024-01-09", 500) // outside the range

	ctx := context.Background()
	got, err := f.engine.BrandTrends(ctx, day("2024-01-01"), day("2024-01-02"), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []inventory.BrandVolume{
		{Brand: "Bravo", Date: "2024-01-01", Milliliters: 1750 * 10 * 6},
		{Brand: "Bravo", Date: "2024-01-02", Milliliters: 1750 * 10 * 6},
		{Brand: "Alpha", Date: "2024-01-01", Milliliters: 750*2*12 + 1000*1*6},
	}, got)

	got, err = f.engine.BrandTrends(ctx, day("2024-01-01"), day("2024-01-02"), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []inventory.BrandVolume{
		{Brand: "Charlie", Date: "2024-01-01", Milliliters: 50},
	}, got)

	got, err = f.engine.BrandTrends(ctx, day("2024-01-01"), day("2024-01-02"), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBrandTrends_InvalidRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.BrandTrends(context.Background(), day("2024-02-01"), day("2024-01-01"), 10, 0)
	require.ErrorIs(t, err, ErrInvalidRange)
}
