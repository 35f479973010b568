package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArchive_PutGetFeed(t *testing.T) {
	dir := t.TempDir()
	a := NewLocalArchive(dir)
	ctx := context.Background()
	date := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	data := []byte("NC Code,Brand Name\n")
	require.NoError(t, a.PutFeed(ctx, date, data))

	got, err := a.GetFeed(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = os.Stat(filepath.Join(dir, "feeds", "20240307.csv"))
	assert.NoError(t, err, "feed should be stored under feeds/YYYYMMDD.csv")
}

func TestLocalArchive_GetNotFound(t *testing.T) {
	a := NewLocalArchive(t.TempDir())

	_, err := a.GetFeed(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrFeedNotFound)
}

func TestLocalArchive_ListFeedDates(t *testing.T) {
	dir := t.TempDir()
	a := NewLocalArchive(dir)
	ctx := context.Background()

	dates, err := a.ListFeedDates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)

	for _, d := range []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		require.NoError(t, a.PutFeed(ctx, d, []byte("x")))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feeds", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feeds", "latest.csv"), []byte("x"), 0o644))

	dates, err = a.ListFeedDates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, "2023-12-31", dates[0].Format("2006-01-02"))
	assert.Equal(t, "2024-01-01", dates[1].Format("2006-01-02"))
	assert.Equal(t, "2024-01-03", dates[2].Format("2006-01-02"))
}

func TestParseFeedKey(t *testing.T) {
	tests := []struct {
		key  string
		ok   bool
		want string
	}{
		{"feeds/20240105.csv", true, "2024-01-05"},
		{"20240105.csv", true, "2024-01-05"},
		{"feeds/2024-01-05.csv", false, ""},
		{"feeds/20240105.json", false, ""},
		{"feeds/", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := parseFeedKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02"))
			}
		})
	}
}
