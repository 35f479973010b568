// Command shelfwatchd is the shelfwatch service.
// It serves the query and ingestion API, runs the daily feed on a schedule,
// and exposes a health check and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/api"
	"github.com/shelfwatch/shelfwatch/internal/app"
	"github.com/shelfwatch/shelfwatch/internal/observability"
	"github.com/shelfwatch/shelfwatch/internal/scheduler"
	"github.com/shelfwatch/shelfwatch/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search for .shelfwatch/config.yaml)")
	flag.Parse()

	log := logrus.New()
	if err := run(*configPath, log); err != nil {
		log.WithError(err).Fatal("shelfwatchd failed")
	}
}

func run(configPath string, log *logrus.Logger) error {
	if configPath == "" {
		if wd, err := os.Getwd(); err == nil {
			configPath = config.FindConfigFile(wd)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(cfg.Logging)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	if cfg.Feed.Schedule != "" {
		sched, err = scheduler.New(cfg.Feed.Schedule, a.Pipeline, log)
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	mux := http.NewServeMux()
	api.NewHandler(a.Engine, a.Ingestion, a.Pipeline, log).RegisterRoutes(mux, api.APIKeyAuth(cfg.Server.APIKey))
	mux.HandleFunc("GET /healthz", healthHandler(a.DB))
	if cfg.Server.MetricsAddr != "" {
		observability.StartMetricsServer(log, cfg.Server.MetricsAddr)
	} else {
		mux.Handle("GET /metrics", observability.Handler())
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.CORS(cfg.Server.CORSOrigin)(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting shelfwatchd on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("Scheduled run did not stop before shutdown timeout")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Shutdown error")
	}
	return nil
}

func healthHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "database unreachable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
