package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

const (
	defaultTrendLimit = 10
	maxTrendLimit     = 100
)

func (h *Handler) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.engine.AvailableDates(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

func (h *Handler) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	names, err := h.engine.Suppliers(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) handleBrokers(w http.ResponseWriter, r *http.Request) {
	names, err := h.engine.Brokers(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) handleListSKUs(w http.ResponseWriter, r *http.Request) {
	skus, err := h.engine.SKUs(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skus)
}

func (h *Handler) handleGetSKU(w http.ResponseWriter, r *http.Request) {
	sku, err := h.engine.SKU(r.Context(), r.PathValue("nc_code"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sku)
}

// handleDiff handles GET /api/diff?date1=&date2=&supplier=. Percentages are
// |q2-q1| / (q1+1) * 100.
func (h *Handler) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date1, err := requiredDate(q, "date1")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date2, err := requiredDate(q, "date2")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.engine.Diff(r.Context(), date1, date2, supplierFilter(q))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleRange handles GET /api/range?start=&end=&supplier=&pivot=true.
func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := requiredDate(q, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := requiredDate(q, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.engine.Range(r.Context(), start, end, supplierFilter(q))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if q.Get("pivot") == "true" {
		writeJSON(w, http.StatusOK, inventory.PivotByBrand(rows))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.engine.DailyTotals(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// handleBrandTrends handles GET /api/brands/trends?start=&end=&limit=&offset=.
func (h *Handler) handleBrandTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := requiredDate(q, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := requiredDate(q, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultTrendLimit
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = min(parsed, maxTrendLimit)
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	trends, err := h.engine.BrandTrends(r.Context(), start, end, limit, offset)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func requiredDate(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s parameter required", name)
	}
	return inventory.ParseDate(v)
}

// supplierFilter reads repeated or comma-separated supplier parameters.
func supplierFilter(q url.Values) inventory.SupplierFilter {
	var names []string
	for _, v := range q["supplier"] {
		names = append(names, strings.Split(v, ",")...)
	}
	return inventory.NewSupplierFilter(names...)
}
