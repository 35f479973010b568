// Package api implements the shelfwatch REST API: read endpoints over the
// query engine and write endpoints that ingest feeds.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/internal/catalog"
	"github.com/shelfwatch/shelfwatch/internal/ingestion"
	"github.com/shelfwatch/shelfwatch/internal/query"
	"github.com/shelfwatch/shelfwatch/pkg/feed"
	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// Handler is the top-level API handler.
type Handler struct {
	engine    *query.Engine
	ingestion *ingestion.Service
	pipeline  *ingestion.Pipeline
	log       logrus.FieldLogger
}

// NewHandler creates a new API handler.
func NewHandler(engine *query.Engine, svc *ingestion.Service, pipeline *ingestion.Pipeline, log logrus.FieldLogger) *Handler {
	return &Handler{
		engine:    engine,
		ingestion: svc,
		pipeline:  pipeline,
		log:       log.WithField("component", "api"),
	}
}

// RegisterRoutes registers all API routes on the given ServeMux. Write
// endpoints are wrapped with auth.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	// Write endpoints (auth-protected)
	mux.Handle("POST /api/v1/ingest", auth(http.HandlerFunc(h.handleIngest)))
	mux.Handle("POST /api/v1/cache/flush", auth(http.HandlerFunc(h.handleFlushCache)))
	mux.Handle("GET /api/v1/runs", auth(http.HandlerFunc(h.handleListRuns)))
	mux.Handle("DELETE /api/v1/skus/{nc_code}", auth(http.HandlerFunc(h.handleDeleteSKU)))

	// Read endpoints
	mux.HandleFunc("GET /api/dates", h.handleDates)
	mux.HandleFunc("GET /api/suppliers", h.handleSuppliers)
	mux.HandleFunc("GET /api/brokers", h.handleBrokers)
	mux.HandleFunc("GET /api/skus", h.handleListSKUs)
	mux.HandleFunc("GET /api/skus/{nc_code}", h.handleGetSKU)
	mux.HandleFunc("GET /api/diff", h.handleDiff)
	mux.HandleFunc("GET /api/range", h.handleRange)
	mux.HandleFunc("GET /api/totals", h.handleTotals)
	mux.HandleFunc("GET /api/brands/trends", h.handleBrandTrends)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps caller errors to 4xx and logs everything else as a 500.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inventory.ErrInvalidDate),
		errors.Is(err, query.ErrInvalidRange),
		errors.Is(err, feed.ErrHeaderMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingestion.ErrFeedNotFound),
		errors.Is(err, catalog.ErrSKUNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
