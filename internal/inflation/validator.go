package inflation

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ValidateYear reports whether year is a canonical integer in
// [YearMin, current year].
func ValidateYear(year string) bool {
	return ValidateYearAt(year, time.Now())
}

// ValidateYearAt is ValidateYear with an explicit clock. The upper bound
// moves with now.
func ValidateYearAt(year string, now time.Time) bool {
	n, err := strconv.Atoi(year)
	if err != nil {
		return false
	}
	// "01980", "+1980" などの非正規表記は拒否
	if strconv.Itoa(n) != year {
		return false
	}
	return n >= YearMin && n <= now.Year()
}

// ValidateCurrency reports whether code is a supported currency. Matching is
// case-sensitive.
func ValidateCurrency(code string) bool {
	_, ok := LookupCurrency(code)
	return ok
}

var amountMax = decimal.NewFromFloat(AmountMax)

// ValidateAmount reports whether amount is a canonical decimal with at most
// two fractional digits in [0, AmountMax].
func ValidateAmount(amount string) bool {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return false
	}
	// 小数第2位で丸めた正規表記が入力と完全一致すること
	rounded := d.Round(2)
	if rounded.String() != amount {
		return false
	}
	return !rounded.IsNegative() && rounded.LessThanOrEqual(amountMax)
}

// ValidationError is returned by ParseRequest when a field is rejected
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// Kind returns ValidationRejected
func (e *ValidationError) Kind() ErrorKind {
	return ValidationRejected
}

// Request is a raw calculation request as received from a URL or a form
type Request struct {
	Year     string `json:"year"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// ValidRequest is a request that passed every validator
type ValidRequest struct {
	Year       int
	YearText   string
	Currency   string
	Amount     float64
	AmountText string
}

// ParseRequest is the single parse and validation boundary for raw requests.
// Fields are checked in year, currency, amount order and the first rejected
// field is reported.
func ParseRequest(req Request, now time.Time) (ValidRequest, error) {
	if !ValidateYearAt(req.Year, now) {
		return ValidRequest{}, &ValidationError{Field: "year", Value: req.Year}
	}
	if !ValidateCurrency(req.Currency) {
		return ValidRequest{}, &ValidationError{Field: "currency", Value: req.Currency}
	}
	if !ValidateAmount(req.Amount) {
		return ValidRequest{}, &ValidationError{Field: "amount", Value: req.Amount}
	}

	year, _ := strconv.Atoi(req.Year)
	amount, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil {
		return ValidRequest{}, &ValidationError{Field: "amount", Value: req.Amount}
	}

	return ValidRequest{
		Year:       year,
		YearText:   req.Year,
		Currency:   req.Currency,
		Amount:     amount,
		AmountText: req.Amount,
	}, nil
}
