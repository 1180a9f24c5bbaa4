package handlers

import (
	"net/http"

	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/pkg/logger"
)

// CalcHandler handles calculation endpoints
// ⭐ SSOT: 計算 API ハンドラーはこの構造体だけ
type CalcHandler struct {
	service *inflation.Service
	logger  *logger.Logger
}

// NewCalcHandler creates a new calculation handler
func NewCalcHandler(service *inflation.Service, log *logger.Logger) *CalcHandler {
	return &CalcHandler{
		service: service,
		logger:  log,
	}
}

// Calculate evaluates one request
// GET /api/calculate?year=1980&currency=usd&amount=100
func (h *CalcHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := inflation.Request{
		Year:     q.Get("year"),
		Currency: q.Get("currency"),
		Amount:   q.Get("amount"),
	}

	out := h.service.Calculate(r.Context(), req)
	if out.Failure != nil && out.Failure.Kind.IsDataFailure() {
		h.logger.WithFields(map[string]interface{}{
			"year":     req.Year,
			"currency": req.Currency,
			"kind":     string(out.Failure.Kind),
		}).Warn("計算に必要なデータがありません")
	}
	respondJSON(w, outcomeStatus(out), out)
}

// outcomeStatus maps an outcome to its HTTP status
func outcomeStatus(out inflation.Outcome) int {
	switch out.Status {
	case inflation.StatusSuccess:
		return http.StatusOK
	case inflation.StatusLoading:
		return http.StatusServiceUnavailable
	}
	if out.Failure != nil && out.Failure.Kind == inflation.ValidationRejected {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

// CurrencyInfo describes one supported currency
type CurrencyInfo struct {
	Code      string `json:"code"`
	Label     string `json:"label"`
	Emoji     string `json:"emoji"`
	FirstYear int    `json:"first_year,omitempty"` // 0 while CPI data is loading
}

// Currencies lists supported currencies with the first year that has CPI data
// GET /api/currencies
func (h *CalcHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	table := h.service.Table()

	list := make([]CurrencyInfo, 0, len(inflation.Currencies))
	for _, c := range inflation.Currencies {
		info := CurrencyInfo{Code: c.Code, Label: c.Label, Emoji: c.Emoji}
		if table != nil {
			info.FirstYear, _ = table.FirstYear(c.Code)
		}
		list = append(list, info)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"currencies":   list,
		"year_min":     inflation.YearMin,
		"year_default": inflation.YearDefault,
		"year_max":     h.service.Now().Year(),
	})
}
