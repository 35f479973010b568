// Package app assembles the shelfwatch components from a Config. Both the
// daemon and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/ingestion"
	"github.com/shelfwatch/shelfwatch/internal/platform"
	"github.com/shelfwatch/shelfwatch/internal/query"
	"github.com/shelfwatch/shelfwatch/internal/querycache"
	"github.com/shelfwatch/shelfwatch/pkg/config"
	"github.com/shelfwatch/shelfwatch/pkg/feed"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	DB        *sqlx.DB
	Cache     *querycache.Cache
	Engine    *query.Engine
	Ingestion *ingestion.Service
	Pipeline  *ingestion.Pipeline
	Archive   ingestion.FeedArchive

	redis *redis.Client
}

// NewLogger returns a logrus logger at the configured level.
func NewLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return log, nil
}

// New opens the database, migrates it and wires the cache, query engine,
// ingestion service, feed client and archive.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	db, err := platform.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := platform.AutoMigrate(db); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{Config: cfg, DB: db}

	store, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = querycache.New(store, log)

	archive, err := NewArchive(ctx, cfg.Archive)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Archive = archive

	a.Engine = query.New(db, a.Cache, log)
	a.Ingestion = ingestion.NewService(db, a.Cache, log)
	a.Pipeline = ingestion.NewPipeline(a.Ingestion, feed.NewClient(cfg.Feed.URL, cfg.Feed.Timeout), archive, log)

	log.WithFields(logrus.Fields{
		"driver":  cfg.Database.Driver,
		"cache":   cfg.Cache.Backend,
		"archive": cfg.Archive.Backend,
	}).Debug("Components initialized")
	return a, nil
}

func (a *App) newStore(ctx context.Context) (querycache.Store, error) {
	c := a.Config.Cache
	switch c.Backend {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Address,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", c.Redis.Address, err)
		}
		return querycache.NewRedisStore(a.redis, c.Redis.Prefix, c.Redis.TTL), nil
	case "memory":
		return querycache.NewMemoryStore(c.MaxEntries), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidCacheBackend, c.Backend)
	}
}

// NewArchive creates the feed archive selected by cfg.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig) (ingestion.FeedArchive, error) {
	switch cfg.Backend {
	case "local":
		return ingestion.NewLocalArchive(cfg.LocalDir), nil
	case "s3":
		archive, err := ingestion.NewS3Archive(ctx, ingestion.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return archive, nil
	case "gcs":
		archive, err := ingestion.NewGCSArchive(ctx, cfg.GCS.Bucket)
		if err != nil {
			return nil, err
		}
		return archive, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidArchiveBackend, cfg.Backend)
	}
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
