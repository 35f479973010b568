package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/query"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

func newDiffCmd(g *globalOpts) *cobra.Command {
	var (
		date1, date2 string
		suppliers    []string
		outputFmt    string
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "List SKUs whose quantity changed between two dates",
		Long: `Lists every SKU recorded on both dates with a different quantity, largest
relative change first. The change is |q2-q1| / (q1+1) * 100.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d1, err := parseDateFlag("date1", date1)
			if err != nil {
				return err
			}
			d2, err := parseDateFlag("date2", date2)
			if err != nil {
				return err
			}

			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.Engine.Diff(cmd.Context(), d1, d2, inventory.NewSupplierFilter(suppliers...))
			if err != nil {
				return err
			}
			if outputFmt == "json" {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			printDiff(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&date1, "date1", "", "Earlier snapshot date (required)")
	cmd.Flags().StringVar(&date2, "date2", "", "Later snapshot date (required)")
	cmd.Flags().StringSliceVar(&suppliers, "supplier", nil, "Restrict to suppliers (repeatable, \"all\" disables)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("date1")
	_ = cmd.MarkFlagRequired("date2")
	return cmd
}

func newRangeCmd(g *globalOpts) *cobra.Command {
	var (
		start, end string
		suppliers  []string
		outputFmt  string
		pivot      bool
	)

	cmd := &cobra.Command{
		Use:   "range",
		Short: "Show per-SKU quantities over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseRangeFlags("start", start, "end", end)
			if err != nil {
				return err
			}

			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.Engine.Range(cmd.Context(), from, to, inventory.NewSupplierFilter(suppliers...))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case pivot && outputFmt == "json":
				return writeJSON(out, inventory.PivotByBrand(rows))
			case pivot:
				printPivot(out, inventory.PivotByBrand(rows))
			case outputFmt == "json":
				return writeJSON(out, rows)
			default:
				printRange(out, rows)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First date (required)")
	cmd.Flags().StringVar(&end, "end", "", "Last date (required)")
	cmd.Flags().StringSliceVar(&suppliers, "supplier", nil, "Restrict to suppliers (repeatable, \"all\" disables)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&pivot, "pivot", false, "Show one row per brand and one column per date")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newRunsCmd(g *globalOpts) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.Ingestion.Runs().List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tOPERATION\tDATE\tSTATUS\tINSERTED\tSKIPPED\tDROPPED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.StartedAt.Format(time.RFC3339), r.Operation, r.Date, r.Status, r.Inserted, r.Skipped, r.Dropped)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

func newSKUsCmd(g *globalOpts) *cobra.Command {
	var outputFmt string

	cmd := &cobra.Command{
		Use:   "skus [nc_code]",
		Short: "List current SKU records, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var skus []inventory.SKU
			if len(args) == 1 {
				sku, err := a.Engine.SKU(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				skus = []inventory.SKU{*sku}
			} else if skus, err = a.Engine.SKUs(cmd.Context()); err != nil {
				return err
			}

			if outputFmt == "json" {
				return writeJSON(cmd.OutOrStdout(), skus)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NC CODE\tBRAND\tSIZE\tCASES/PALLET\tAVAILABLE")
			for _, s := range skus {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.Brand, s.Size, s.CasesPerPallet, s.Quantity)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}

func parseRangeFlags(startName, startVal, endName, endVal string) (time.Time, time.Time, error) {
	start, err := parseDateFlag(startName, startVal)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDateFlag(endName, endVal)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: --%s is after --%s", query.ErrInvalidRange, startName, endName)
	}
	return start, end, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(cmd *cobra.Command, r *inventory.IngestionReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Snapshot %s (run %s)\n", r.Date, r.RunID)
	fmt.Fprintf(out, "  Received:   %d\n", r.Received)
	fmt.Fprintf(out, "  Inserted:   %d\n", r.Inserted)
	fmt.Fprintf(out, "  Skipped:    %d\n", r.Skipped)
	fmt.Fprintf(out, "  Duplicates: %d\n", r.Duplicates)
	fmt.Fprintf(out, "  Dropped:    %d\n", r.Dropped)
	if r.Current > 0 {
		fmt.Fprintf(out, "  Current:    %d\n", r.Current)
	}
}

func printDiff(out io.Writer, rows []inventory.DiffRow) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NC CODE\tBRAND\tSUPPLIER\tBEFORE\tAFTER\tCHANGE %")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\n",
			r.SKU, r.Brand, r.SupplierName, r.QuantityDate1, r.QuantityDate2, r.PercentageChange)
	}
	_ = w.Flush()
}

func printRange(out io.Writer, rows []inventory.RangeRow) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tNC CODE\tBRAND\tSUPPLIER\tAVAILABLE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.Date, r.SKU, r.Brand, r.SupplierName, r.Quantity)
	}
	_ = w.Flush()
}

func printPivot(out io.Writer, p *inventory.Pivot) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "BRAND\tSUPPLIER")
	for _, d := range p.Dates {
		fmt.Fprintf(w, "\t%s", d)
	}
	fmt.Fprintln(w, "\t")
	for _, b := range p.Brands {
		fmt.Fprintf(w, "%s\t%s", b.Brand, b.SupplierName)
		for _, d := range p.Dates {
			fmt.Fprintf(w, "\t%d", b.Totals[d])
		}
		fmt.Fprintln(w, "\t")
	}
	_ = w.Flush()
}
