package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/observability"
	"github.com/shelfwatch/shelfwatch/pkg/feed"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// Fetcher downloads a raw feed. The zero date means the current report.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time) ([]byte, error)
}

// Pipeline connects the feed source, the archive and the ingestion Service.
type Pipeline struct {
	svc     *Service
	fetcher Fetcher
	archive FeedArchive
	log     logrus.FieldLogger
}

// NewPipeline creates a Pipeline. fetcher and archive may be nil for
// callers that only ingest local data.
func NewPipeline(svc *Service, fetcher Fetcher, archive FeedArchive, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		svc:     svc,
		fetcher: fetcher,
		archive: archive,
		log:     log.WithField("component", "pipeline"),
	}
}

// RunDaily downloads the current report, archives it and applies it as the
// snapshot of date. The zero date means today.
func (p *Pipeline) RunDaily(ctx context.Context, date time.Time) (*inventory.IngestionReport, error) {
	if date.IsZero() {
		date = inventory.Today()
	}
	data, err := p.fetch(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	return p.IngestFeed(ctx, date, data)
}

// IngestFeed archives a raw feed, parses it and applies it as the current
// state and the snapshot of date.
func (p *Pipeline) IngestFeed(ctx context.Context, date time.Time, data []byte) (*inventory.IngestionReport, error) {
	if p.archive != nil {
		if err := p.archive.PutFeed(ctx, date, data); err != nil {
			return nil, fmt.Errorf("archive feed: %w", err)
		}
	}
	rows, err := p.parse(date, data)
	if err != nil {
		return nil, err
	}
	return p.svc.ApplyCurrentAndRotate(ctx, date, rows)
}

// FetchRange downloads the historical report of every day in [from, to]
// into the archive. It stops at the first failure and returns how many days
// were archived before it.
func (p *Pipeline) FetchRange(ctx context.Context, from, to time.Time) (int, error) {
	if p.archive == nil {
		return 0, errors.New("fetch range: no feed archive configured")
	}

	var n int
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		data, err := p.fetch(ctx, d)
		if err != nil {
			return n, fmt.Errorf("fetch %s: %w", inventory.FormatDate(d), err)
		}
		if err := p.archive.PutFeed(ctx, d, data); err != nil {
			return n, fmt.Errorf("archive %s: %w", inventory.FormatDate(d), err)
		}
		n++
		p.log.WithField("date", inventory.FormatDate(d)).Info("Archived historical feed")
	}
	return n, nil
}

// BackfillRange backfills every archived feed dated within [from, to].
// Dates without an archived feed are skipped.
func (p *Pipeline) BackfillRange(ctx context.Context, from, to time.Time) ([]*inventory.IngestionReport, error) {
	if p.archive == nil {
		return nil, errors.New("backfill: no feed archive configured")
	}

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return p.backfill(ctx, dates)
}

// BackfillAll backfills every feed in the archive, oldest first.
func (p *Pipeline) BackfillAll(ctx context.Context) ([]*inventory.IngestionReport, error) {
	if p.archive == nil {
		return nil, errors.New("backfill: no feed archive configured")
	}

	dates, err := p.archive.ListFeedDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archived feeds: %w", err)
	}
	p.log.WithField("feeds", len(dates)).Info("Backfilling archived feeds")
	return p.backfill(ctx, dates)
}

func (p *Pipeline) backfill(ctx context.Context, dates []time.Time) ([]*inventory.IngestionReport, error) {
	var reports []*inventory.IngestionReport
	for _, d := range dates {
		log := p.log.WithField("date", inventory.FormatDate(d))

		data, err := p.archive.GetFeed(ctx, d)
		if errors.Is(err, ErrFeedNotFound) {
			log.Warn("No archived feed, skipping")
			continue
		}
		if err != nil {
			return reports, err
		}

		rows, err := p.parse(d, data)
		if err != nil {
			return reports, err
		}
		report, err := p.svc.Backfill(ctx, d, rows)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (p *Pipeline) fetch(ctx context.Context, date time.Time) ([]byte, error) {
	if p.fetcher == nil {
		return nil, errors.New("no feed source configured")
	}
	data, err := p.fetcher.Fetch(ctx, date)
	if err != nil {
		observability.FeedFetches.WithLabelValues("failed").Inc()
		return nil, err
	}
	observability.FeedFetches.WithLabelValues("success").Inc()
	return data, nil
}

func (p *Pipeline) parse(date time.Time, data []byte) ([]inventory.FeedRow, error) {
	rows, report, err := feed.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", inventory.FormatDate(date), err)
	}
	if report.Skipped > 0 {
		p.log.WithFields(logrus.Fields{
			"date":    inventory.FormatDate(date),
			"skipped": report.Skipped,
			"errors":  report.Errors,
		}).Warn("Skipped malformed feed rows")
	}
	return rows, nil
}
