package inflation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RateInput is the exchange-rate snapshot a calculation runs against.
// Values holds provider-style values (units per reference unit, jpy == 1).
type RateInput struct {
	Values        map[string]float64
	UsingFallback bool
	NetworkError  bool
}

// FallbackWarning is the non-fatal warning attached to results computed with
// fallback rates.
const FallbackWarning = "為替レートは参考値です"

// Evaluate runs one validated request against a CPI table and a rate
// snapshot. A nil table or rate input means data is still loading.
// It is pure: the same inputs always give the same Outcome.
// ⭐ SSOT: 計算パイプラインはここだけ
func Evaluate(req ValidRequest, table *CpiTable, rs *RateInput, now time.Time) Outcome {
	if table == nil || rs == nil {
		return loadingOutcome()
	}

	// 1. CPI
	cpi, failure := table.Resolve(req.YearText, req.Currency, now)
	if failure != nil {
		return failureOutcome(failure, rs.UsingFallback)
	}

	// 2. 為替レート
	value, ok := rs.Values[req.Currency]
	if !ok || falsy(value) {
		return failureOutcome(&Failure{
			Kind:      RateMissing,
			Message:   fmt.Sprintf("%sの為替レートが取得できません", strings.ToUpper(req.Currency)),
			Retryable: rs.NetworkError,
		}, rs.UsingFallback)
	}
	exchangeRate := rs.Values["jpy"] / value
	if math.IsNaN(exchangeRate) || math.IsInf(exchangeRate, 0) || exchangeRate <= 0 {
		return failureOutcome(&Failure{
			Kind:      RateComputeError,
			Message:   "為替レートの計算に失敗しました",
			Retryable: rs.NetworkError,
		}, rs.UsingFallback)
	}

	// 3. 計算
	result := CalculateInflationAdjustedAmount(req.Amount, cpi.Then, cpi.Now, exchangeRate)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return failureOutcome(&Failure{
			Kind:    ResultInvalid,
			Message: "計算結果が無効です。入力値を確認してください",
		}, rs.UsingFallback)
	}

	out := Outcome{
		Status:          StatusSuccess,
		Result:          result,
		ResultStatement: ResultStatement(result, rs.UsingFallback),
		ShareStatement:  ShareStatement(req, result, rs.UsingFallback),
		UsingFallback:   rs.UsingFallback,
	}
	if rs.UsingFallback {
		out.Warning = FallbackWarning
	}
	return out
}
