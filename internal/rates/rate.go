package rates

import (
	"errors"
	"fmt"
)

// Rate is one provider exchange rate. Value is the amount of this currency
// per reference unit.
type Rate struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

// RateSet maps lowercase currency codes to rates. A set is replaced
// wholesale and must not be modified once published.
type RateSet map[string]Rate

// RequiredCurrencies must all be present for a provider payload to be accepted
var RequiredCurrencies = []string{"jpy", "usd", "gbp", "eur"}

// Values returns the bare values keyed by code
func (s RateSet) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for code, r := range s {
		out[code] = r.Value
	}
	return out
}

// FallbackRates returns the static rate table used when the provider is
// unavailable.
// ⭐ SSOT: フォールバック為替レートはここだけ
func FallbackRates() RateSet {
	return RateSet{
		"jpy": {Name: "Japanese Yen", Unit: "JPY", Value: 1, Type: "fiat"},
		"usd": {Name: "US Dollar", Unit: "USD", Value: 0.0067, Type: "fiat"},
		"gbp": {Name: "British Pound Sterling", Unit: "GBP", Value: 0.0053, Type: "fiat"},
		"eur": {Name: "Euro", Unit: "EUR", Value: 0.0061, Type: "fiat"},
	}
}

var (
	// ErrInvalidPayload means the provider response had no usable rates object
	ErrInvalidPayload = errors.New("無効なAPIレスポンス形式です")
	// ErrMissingCurrency means a required currency was absent from the payload
	ErrMissingCurrency = errors.New("必要な通貨データが不足しています")
)

// PayloadError describes a malformed provider payload
type PayloadError struct {
	Currency string // set for ErrMissingCurrency
	Err      error
}

func (e *PayloadError) Error() string {
	if e.Currency != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Currency)
	}
	return e.Err.Error()
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// Validate checks that every required currency has a positive value
func (s RateSet) Validate() error {
	if s == nil {
		return &PayloadError{Err: ErrInvalidPayload}
	}
	for _, code := range RequiredCurrencies {
		r, ok := s[code]
		if !ok || r.Value <= 0 {
			return &PayloadError{Currency: code, Err: ErrMissingCurrency}
		}
	}
	return nil
}
