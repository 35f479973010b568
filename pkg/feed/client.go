package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the export endpoint of the state inventory report.
const DefaultURL = "https://abc2.nc.gov/StoresBoards/ExportExcel"

// ReportDateLayout is the date format of the ReportDate cookie.
const ReportDateLayout = "01/02/2006"

// StatusError is returned when the export endpoint answers with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed request failed: status %d", e.StatusCode)
}

// Client downloads raw exports.
type Client struct {
	URL  string
	HTTP *http.Client
}

// NewClient creates a Client for url. An empty url uses DefaultURL.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

// Fetch downloads the export. The zero date requests the current report;
// any other date requests the historical report of that day.
func (c *Client) Fetch(ctx context.Context, date time.Time) ([]byte, error) {
	method := http.MethodGet
	if !date.IsZero() {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	if !date.IsZero() {
		req.AddCookie(&http.Cookie{Name: "BrandName", Value: ""})
		req.AddCookie(&http.Cookie{Name: "ReportDate", Value: date.Format(ReportDateLayout)})
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return data, nil
}
