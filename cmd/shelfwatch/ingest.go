package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/platform"
	"github.com/shelfwatch/shelfwatch/pkg/feed"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

func newMigrateCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			version, dirty, err := platform.SchemaVersion(a.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

func newFetchCmd(g *globalOpts) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download today's feed and apply it",
		Long: `Downloads the current export, archives it, replaces the current SKU
records and rotates them into the snapshot of --date (default today).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := inventory.Today()
			if date != "" {
				var err error
				if d, err = parseDateFlag("date", date); err != nil {
					return err
				}
			}

			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Pipeline.RunDaily(cmd.Context(), d)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Snapshot date (default: today)")
	return cmd
}

func newIngestCmd(g *globalOpts) *cobra.Command {
	var (
		file string
		date string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Apply a feed file as the snapshot of a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file) //nolint:gosec // operator-provided path
			if err != nil {
				return fmt.Errorf("read feed: %w", err)
			}

			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Pipeline.IngestFeed(cmd.Context(), d, data)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Feed CSV file (required)")
	cmd.Flags().StringVar(&date, "date", "", "Snapshot date, YYYY-MM-DD or YYYYMMDD (required)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newBackfillCmd(g *globalOpts) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Ingest archived feeds",
		Long: `Ingests every archived feed in [--from, --to], or the whole archive when
no range is given. SKU records are only inserted when absent, so current state
is never overwritten. Dates without an archived feed are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (from == "") != (to == "") {
				return errors.New("--from and --to must be given together")
			}

			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var reports []*inventory.IngestionReport
			if from == "" {
				reports, err = a.Pipeline.BackfillAll(cmd.Context())
			} else {
				start, end, perr := parseRangeFlags("from", from, "to", to)
				if perr != nil {
					return perr
				}
				reports, err = a.Pipeline.BackfillRange(cmd.Context(), start, end)
			}
			for _, r := range reports {
				printReport(cmd, r)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (default: every archived feed)")
	cmd.Flags().StringVar(&to, "to", "", "Last date")
	return cmd
}

func newDownloadCmd(g *globalOpts) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical feeds into the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRangeFlags("from", from, "to", to)
			if err != nil {
				return err
			}

			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Pipeline.FetchRange(cmd.Context(), start, end)
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d feeds\n", n)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (required)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// errInvalidFeeds is returned by validate when any file fails the check.
var errInvalidFeeds = errors.New("invalid feed files found")

func newValidateCmd(g *globalOpts) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check that the CSV files in a directory are feed exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rows <= 0 {
				cfg, _, err := g.loadConfig()
				if err != nil {
					return err
				}
				rows = cfg.Feed.ValidateRows
			}
			return validateDir(cmd, args[0], rows)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "Data rows to check per file (default: feed.validate_rows)")
	return cmd
}

func validateDir(cmd *cobra.Command, dir string, rows int) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	out := cmd.OutOrStdout()
	invalid := 0
	for _, path := range files {
		if err := validateFile(path, rows); err != nil {
			invalid++
			fmt.Fprintf(out, "INVALID %s: %v\n", filepath.Base(path), err)
			continue
		}
		fmt.Fprintf(out, "ok      %s\n", filepath.Base(path))
	}
	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidFeeds, invalid, len(files))
	}
	return nil
}

func validateFile(path string, rows int) error {
	f, err := os.Open(path) //nolint:gosec // operator-provided path
	if err != nil {
		return err
	}
	defer f.Close()
	return feed.Validate(f, rows)
}
