package api

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// maxFeedBytes bounds an uploaded feed.
const maxFeedBytes = 64 << 20

// stockRequest is the JSON body for POST /api/v1/ingest.
type stockRequest struct {
	Date string               `json:"date"`
	Rows []inventory.StockRow `json:"rows"`
}

// handleIngest handles POST /api/v1/ingest. A JSON body records stock rows
// for its date; any other body is a raw feed export applied as the current
// state and rotated into history for ?date= (default today).
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxFeedBytes)
	// Support gzip-compressed request bodies
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid gzip body: "+err.Error())
			return
		}
		defer gz.Close()
		body = gz
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		h.ingestStock(w, r, body)
		return
	}

	date, err := dateOrToday(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	report, err := h.pipeline.IngestFeed(r.Context(), date, data)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ingestStock(w http.ResponseWriter, r *http.Request, body io.Reader) {
	var req stockRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	date, err := dateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.ingestion.Ingest(r.Context(), date, req.Rows)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleFlushCache(w http.ResponseWriter, r *http.Request) {
	if c := h.engine.Cache(); c != nil {
		if err := c.Flush(r.Context()); err != nil {
			h.writeErr(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (h *Handler) handleDeleteSKU(w http.ResponseWriter, r *http.Request) {
	if err := h.ingestion.DeleteSKU(r.Context(), r.PathValue("nc_code")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	runs, err := h.ingestion.Runs().List(r.Context(), limit)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func dateOrToday(v string) (time.Time, error) {
	if v == "" {
		return inventory.Today(), nil
	}
	return inventory.ParseDate(v)
}
