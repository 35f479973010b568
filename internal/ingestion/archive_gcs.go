package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// GCSArchive implements FeedArchive using Google Cloud Storage.
type GCSArchive struct {
	client *gcs.Client
	bucket string
}

// NewGCSArchive creates a GCS-backed FeedArchive.
// It uses Application Default Credentials (works with Workload Identity, SA keys, gcloud auth).
func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

// PutFeed uploads a raw feed.
func (a *GCSArchive) PutFeed(ctx context.Context, date time.Time, data []byte) error {
	key := feedKey(date)
	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", key, err)
	}
	return nil
}

// GetFeed downloads a raw feed.
func (a *GCSArchive) GetFeed(ctx context.Context, date time.Time) ([]byte, error) {
	key := feedKey(date)
	r, err := a.client.Bucket(a.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, inventory.FormatDate(date))
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ListFeedDates iterates the feeds/ prefix.
func (a *GCSArchive) ListFeedDates(ctx context.Context) ([]time.Time, error) {
	it := a.client.Bucket(a.bucket).Objects(ctx, &gcs.Query{Prefix: feedPrefix})

	var dates []time.Time
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", feedPrefix, err)
		}
		if t, ok := parseFeedKey(attrs.Name); ok {
			dates = append(dates, t)
		}
	}
	return sortDates(dates), nil
}
