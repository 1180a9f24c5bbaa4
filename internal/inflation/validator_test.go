package inflation

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestValidateYearAt(t *testing.T) {
	current := strconv.Itoa(testNow.Year())
	next := strconv.Itoa(testNow.Year() + 1)

	tests := []struct {
		year string
		want bool
	}{
		{"1900", true},
		{"1980", true},
		{"2000", true},
		{current, true},
		{"1899", false},
		{"1800", false},
		{next, false},
		{"2100", false},
		{"01980", false},
		{"0001980", false},
		{"1980.0", false},
		{"1980.5", false},
		{"-1980", false},
		{"+1980", false},
		{" 1980", false},
		{"abc", false},
		{"19ab", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.year, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateYearAt(tt.year, testNow))
		})
	}
}

func TestValidateYear_MovingBoundary(t *testing.T) {
	year := time.Now().Year()
	assert.True(t, ValidateYear(strconv.Itoa(year)))
	assert.False(t, ValidateYear(strconv.Itoa(year+1)))
}

func TestValidateCurrency(t *testing.T) {
	for _, code := range []string{"usd", "jpy", "gbp", "eur"} {
		assert.True(t, ValidateCurrency(code), code)
	}
	for _, code := range []string{"USD", "JPY", "Usd", "cad", "krw", "bitcoin", "abc", "123", ""} {
		assert.False(t, ValidateCurrency(code), code)
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"0", true},
		{"0.5", true},
		{"100", true},
		{"123.45", true},
		{"10000000000000000", true},
		{"100.123", false},
		{"00.50", false},
		{"0100", false},
		{"100.10", false},
		{"100.", false},
		{".5", false},
		{"1e3", false},
		{"-1", false},
		{"-0", false},
		{"1.2.3", false},
		{"10000000000000001", false},
		{"abc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAmount(tt.amount))
		})
	}
}

func TestParseRequest(t *testing.T) {
	valid, err := ParseRequest(Request{Year: "1980", Currency: "usd", Amount: "100.5"}, testNow)
	require.NoError(t, err)

	assert.Equal(t, 1980, valid.Year)
	assert.Equal(t, "1980", valid.YearText)
	assert.Equal(t, "usd", valid.Currency)
	assert.Equal(t, 100.5, valid.Amount)
	assert.Equal(t, "100.5", valid.AmountText)
}

func TestParseRequest_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"future year", Request{Year: "2050", Currency: "usd", Amount: "100"}, "year"},
		{"unsupported currency", Request{Year: "1980", Currency: "cad", Amount: "100"}, "currency"},
		{"too many decimals", Request{Year: "1980", Currency: "usd", Amount: "1.234"}, "amount"},
		{"year checked first", Request{Year: "x", Currency: "x", Amount: "x"}, "year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.req, testNow)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, ValidationRejected, vErr.Kind())
		})
	}
}
