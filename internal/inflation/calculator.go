package inflation

import "math"

// CalculateInflationAdjustedAmount converts amount from the CPI level cpiThen
// to cpiNow and multiplies by exchangeRate, rounding half away from zero.
// It returns NaN when cpiThen, cpiNow or exchangeRate is zero or NaN.
// ⭐ SSOT: 換算式はここだけ
func CalculateInflationAdjustedAmount(amount, cpiThen, cpiNow, exchangeRate float64) float64 {
	if falsy(cpiThen) || falsy(cpiNow) || falsy(exchangeRate) {
		return math.NaN()
	}
	return math.Round(amount * (cpiNow / cpiThen) * exchangeRate)
}

func falsy(v float64) bool {
	return v == 0 || math.IsNaN(v)
}
