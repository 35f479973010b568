package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// ErrFeedNotFound is returned when no raw feed is archived for a date.
var ErrFeedNotFound = errors.New("feed not found")

const (
	feedPrefix = "feeds/"
	feedSuffix = ".csv"
)

// FeedArchive keeps the raw daily feed files so that history can be rebuilt
// or backfilled without downloading them again.
type FeedArchive interface {
	PutFeed(ctx context.Context, date time.Time, data []byte) error
	GetFeed(ctx context.Context, date time.Time) ([]byte, error)
	// ListFeedDates returns the archived dates, oldest first.
	ListFeedDates(ctx context.Context) ([]time.Time, error)
}

// feedKey is the object key of a date's feed: feeds/YYYYMMDD.csv.
func feedKey(date time.Time) string {
	return feedPrefix + date.Format(inventory.FeedDateLayout) + feedSuffix
}

// parseFeedKey reverses feedKey. Keys of any other shape are rejected.
func parseFeedKey(key string) (time.Time, bool) {
	name := path.Base(key)
	if !strings.HasSuffix(name, feedSuffix) {
		return time.Time{}, false
	}
	t, err := time.Parse(inventory.FeedDateLayout, strings.TrimSuffix(name, feedSuffix))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func sortDates(dates []time.Time) []time.Time {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// LocalArchive implements FeedArchive on the local filesystem.
// Useful for development, the CLI and tests.
type LocalArchive struct {
	BaseDir string
}

// NewLocalArchive creates a LocalArchive rooted at the given directory.
func NewLocalArchive(baseDir string) *LocalArchive {
	return &LocalArchive{BaseDir: baseDir}
}

func (a *LocalArchive) path(date time.Time) string {
	return filepath.Join(a.BaseDir, filepath.FromSlash(feedKey(date)))
}

// PutFeed stores a raw feed, replacing any earlier file for the date.
func (a *LocalArchive) PutFeed(_ context.Context, date time.Time, data []byte) error {
	p := a.path(date)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write feed %s: %w", inventory.FormatDate(date), err)
	}
	return nil
}

// GetFeed reads the raw feed of a date.
func (a *LocalArchive) GetFeed(_ context.Context, date time.Time) ([]byte, error) {
	data, err := os.ReadFile(a.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, inventory.FormatDate(date))
	}
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", inventory.FormatDate(date), err)
	}
	return data, nil
}

// ListFeedDates lists the archived dates. A missing directory is an empty archive.
func (a *LocalArchive) ListFeedDates(_ context.Context) ([]time.Time, error) {
	entries, err := os.ReadDir(filepath.Join(a.BaseDir, strings.TrimSuffix(feedPrefix, "/")))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	var dates []time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if t, ok := parseFeedKey(e.Name()); ok {
			dates = append(dates, t)
		}
	}
	return sortDates(dates), nil
}
