// Package api serves the /ai result endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/internal/result"
	apperrors "github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// CreateRequest is the body accepted by POST /ai/.
type CreateRequest struct {
	ApplicationID *string `json:"applicationId"`
	Result        string  `json:"result"`
	Prediction    string  `json:"prediction"`
	Accuracy      string  `json:"accuracy"`
}

// Handler implements the result endpoints on top of a result.Store.
type Handler struct {
	store   result.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler. m may be nil.
func NewHandler(store result.Store, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		metrics: m,
		logger:  logger.WithComponent("api-handler"),
	}
}

// List returns every stored record in id order. Optional limit and offset
// query parameters page through them.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.store.List(r.Context(), page)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list results", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "failed to list results")
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

// Create stores a record from the request body and returns it with its id.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := h.store.Create(r.Context(), result.Record{
		ApplicationID: req.ApplicationID,
		Result:        req.Result,
		Prediction:    req.Prediction,
		Accuracy:      req.Accuracy,
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to create result", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "failed to create result")
		return
	}
	if h.metrics != nil {
		h.metrics.ResultsCreatedTotal.WithLabelValues("api").Inc()
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// Get returns the record with the id in the path.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, apperrors.ErrResultNotFound) {
		h.writeError(w, http.StatusNotFound, apperrors.ErrResultNotFound.Error())
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to fetch result", "id", id, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "failed to fetch result")
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "ai-service"})
}

func parsePage(r *http.Request) (result.Page, error) {
	var page result.Page
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, errors.New("limit must be a non-negative integer")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, errors.New("offset must be a non-negative integer")
		}
		page.Offset = n
	}
	return page, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
