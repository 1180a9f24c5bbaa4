package handlers

import (
	"net/http"

	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/internal/rates"
	"github.com/creco/imaikura/pkg/logger"
)

// RatesResponse is a rate snapshot plus the user-facing fallback warning
type RatesResponse struct {
	rates.Snapshot
	Warning string `json:"warning,omitempty"`
}

// NewRatesResponse wraps a snapshot
func NewRatesResponse(snap rates.Snapshot) RatesResponse {
	resp := RatesResponse{Snapshot: snap}
	if snap.UsingFallback {
		resp.Warning = inflation.FallbackWarning
	}
	return resp
}

// RatesHandler handles exchange rate endpoints
type RatesHandler struct {
	service *inflation.Service
	logger  *logger.Logger
}

// NewRatesHandler creates a new rates handler
func NewRatesHandler(service *inflation.Service, log *logger.Logger) *RatesHandler {
	return &RatesHandler{
		service: service,
		logger:  log,
	}
}

// GetRates returns the current rate snapshot, fetching when stale
// GET /api/rates
func (h *RatesHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, NewRatesResponse(h.service.Rates(r.Context())))
}

// Retry forces a fresh fetch from the provider
// POST /api/rates/retry
func (h *RatesHandler) Retry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, NewRatesResponse(h.service.Retry(r.Context())))
}
