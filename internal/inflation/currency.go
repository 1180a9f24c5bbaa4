package inflation

import "strings"

// Input bounds shared by the validator, the HTTP surface and the sitemap
// planner.
const (
	YearMin     = 1900
	YearDefault = 1950
	AmountMax   = 1e16
)

// Currency is one currency the calculator accepts
type Currency struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

// Currencies lists the supported currencies in display order
// ⭐ SSOT: 対応通貨はここだけで定義
var Currencies = []Currency{
	{Code: "jpy", Label: "円", Emoji: "🇯🇵"},
	{Code: "usd", Label: "ドル", Emoji: "🇺🇸"},
	{Code: "gbp", Label: "ポンド", Emoji: "🇬🇧"},
	{Code: "eur", Label: "ユーロ", Emoji: "🇪🇺"},
}

// CurrencyCodes returns the supported lowercase codes
func CurrencyCodes() []string {
	codes := make([]string, len(Currencies))
	for i, c := range Currencies {
		codes[i] = c.Code
	}
	return codes
}

// LookupCurrency finds a supported currency by its exact lowercase code
func LookupCurrency(code string) (Currency, bool) {
	for _, c := range Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// CurrencyLabel returns the Japanese label of a code, or the upper-cased code
// when it is not supported.
func CurrencyLabel(code string) string {
	if c, ok := LookupCurrency(code); ok {
		return c.Label
	}
	return strings.ToUpper(code)
}
