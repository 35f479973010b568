// Package feed reads the daily inventory export: the CSV format, its
// validation and the HTTP client that downloads it.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// Column names of the export header, in order.
const (
	ColSKU               = "NC Code"
	ColBrand             = "Brand Name"
	ColTotalAvailable    = "Total Available"
	ColSize              = "Size"
	ColCasesPerPallet    = "Cases Per Pallet"
	ColSupplier          = "Supplier"
	ColSupplierAllotment = "Supplier Allotment"
	ColBroker            = "Broker Name"
)

// Header is the expected export header after blank columns are removed.
var Header = []string{
	ColSKU, ColBrand, ColTotalAvailable, ColSize,
	ColCasesPerPallet, ColSupplier, ColSupplierAllotment, ColBroker,
}

var (
	// ErrHeaderMismatch is returned when the first line is not the export header.
	ErrHeaderMismatch = errors.New("feed header mismatch")
	// ErrRowFormat is returned by Validate when a data row is not in export format.
	ErrRowFormat = errors.New("feed row format mismatch")
)

// maxReportedErrors caps the row errors kept on a ParseReport.
const maxReportedErrors = 20

// ParseReport describes how a feed was read.
type ParseReport struct {
	Rows    int      `json:"rows"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *ParseReport) skip(line int, err error) {
	r.Skipped++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("line %d: %v", line, err))
	}
}

// Parse reads an export into feed rows. A header mismatch is fatal; a data
// row that cannot be read is skipped and recorded on the report.
func Parse(r io.Reader) ([]inventory.FeedRow, *ParseReport, error) {
	cr := newReader(r)
	columns, err := readHeader(cr)
	if err != nil {
		return nil, nil, err
	}

	report := &ParseReport{}
	var rows []inventory.FeedRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.skip(perr.Line, err)
				continue
			}
			return nil, nil, fmt.Errorf("read feed: %w", err)
		}
		if isBlank(record) {
			continue
		}

		row, err := columns.row(record)
		if err != nil {
			line, _ := cr.FieldPos(0)
			report.skip(line, err)
			continue
		}
		rows = append(rows, row)
		report.Rows++
	}
	return rows, report, nil
}

// Validate checks that r starts with the export header and that the first
// maxRows data rows carry the export's ="..." cell wrapping.
func Validate(r io.Reader, maxRows int) error {
	cr := newReader(r)
	if _, err := readHeader(cr); err != nil {
		return err
	}

	for n := 0; n < maxRows; n++ {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		if !strings.HasPrefix(strings.TrimSpace(record[0]), `="`) {
			line, _ := cr.FieldPos(0)
			return fmt.Errorf("%w at line %d", ErrRowFormat, line)
		}
	}
	return nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// columnIndex maps header names to record positions.
type columnIndex map[string]int

func readHeader(cr *csv.Reader) (columnIndex, error) {
	record, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty feed", ErrHeaderMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("read feed header: %w", err)
	}

	columns := make(columnIndex, len(Header))
	var names []string
	for i, h := range record {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			continue
		}
		names = append(names, h)
		columns[h] = i
	}
	if !equal(names, Header) {
		return nil, fmt.Errorf("%w: got %q", ErrHeaderMismatch, names)
	}
	return columns, nil
}

func (c columnIndex) cell(record []string, name string) string {
	i := c[name]
	if i >= len(record) {
		return ""
	}
	return Clean(record[i])
}

func (c columnIndex) row(record []string) (inventory.FeedRow, error) {
	row := inventory.FeedRow{
		SKU:      c.cell(record, ColSKU),
		Brand:    c.cell(record, ColBrand),
		Size:     c.cell(record, ColSize),
		Supplier: c.cell(record, ColSupplier),
		Broker:   c.cell(record, ColBroker),
	}
	if row.SKU == "" {
		return row, errors.New("missing NC code")
	}

	qty, err := parseInt(c.cell(record, ColTotalAvailable))
	if err != nil {
		return row, fmt.Errorf("%s: %w", ColTotalAvailable, err)
	}
	row.Quantity = qty

	if v := c.cell(record, ColCasesPerPallet); v != "" {
		cases, err := parseInt(v)
		if err != nil {
			return row, fmt.Errorf("%s: %w", ColCasesPerPallet, err)
		}
		row.CasesPerPallet = cases
	}
	return row, nil
}

// Clean strips the ="..." wrapping the export uses to keep spreadsheet
// applications from reformatting codes, then trims whitespace.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func parseInt(s string) (int, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, errors.New("empty value")
	}
	return strconv.Atoi(s)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
