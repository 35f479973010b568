package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/app"
	"github.com/shelfwatch/shelfwatch/pkg/config"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

type globalOpts struct {
	configPath string
	logLevel   string
}

// loadConfig reads the config file, searching from the working directory
// when no path is given.
func (g *globalOpts) loadConfig() (*config.Config, *logrus.Logger, error) {
	path := g.configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.FindConfigFile(wd)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := app.NewLogger(firstNonEmpty(g.logLevel, cfg.Logging))
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// open loads the config and wires every component.
func (g *globalOpts) open(ctx context.Context) (*app.App, *logrus.Logger, error) {
	cfg, log, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDateFlag parses a date flag value, YYYY-MM-DD or YYYYMMDD.
func parseDateFlag(name, v string) (time.Time, error) {
	d, err := inventory.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
