package inflation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creco/imaikura/internal/rates"
)

func mustParse(t *testing.T, year, currency, amount string) ValidRequest {
	t.Helper()
	req, err := ParseRequest(Request{Year: year, Currency: currency, Amount: amount}, testNow)
	require.NoError(t, err)
	return req
}

func TestEvaluate_Loading(t *testing.T) {
	req := mustParse(t, "1980", "usd", "100")

	assert.Equal(t, StatusLoading, Evaluate(req, nil, liveRateInput(), testNow).Status)
	assert.Equal(t, StatusLoading, Evaluate(req, testTable(), nil, testNow).Status)
}

func TestEvaluate_Scenario1980USD(t *testing.T) {
	out := Evaluate(mustParse(t, "1980", "usd", "100"), testTable(), liveRateInput(), testNow)

	require.True(t, out.Succeeded())
	assert.Equal(t, 56487.0, out.Result)
	assert.Equal(t, "56,487円", out.ResultStatement)
	assert.Empty(t, out.Warning)
	assert.False(t, out.UsingFallback)
	assert.Nil(t, out.Failure)
	assert.Contains(t, out.ShareStatement, "1980年の100ドル")
	assert.Contains(t, out.ShareStatement, "今の価値で56,487円")
	assert.NotContains(t, out.ShareStatement, "※参考値")
}

func TestEvaluate_JPYUsesUnitRate(t *testing.T) {
	out := Evaluate(mustParse(t, "2000", "jpy", "1000"), testTable(), liveRateInput(), testNow)

	require.True(t, out.Succeeded())
	// 1000 * 142/110
	assert.Equal(t, 1291.0, out.Result)
}

func TestEvaluate_Fallback(t *testing.T) {
	fallback := &RateInput{Values: rates.FallbackRates().Values(), UsingFallback: true, NetworkError: true}

	out := Evaluate(mustParse(t, "1980", "usd", "100"), testTable(), fallback, testNow)

	require.True(t, out.Succeeded())
	assert.Equal(t, math.Round(100*(310.3/82.4)*(1/0.0067)), out.Result)
	assert.True(t, out.UsingFallback)
	assert.Equal(t, "為替レートは参考値です", out.Warning)
	assert.True(t, strings.HasSuffix(out.ResultStatement, "円（参考値）"))
	assert.True(t, strings.HasSuffix(out.ShareStatement, "\n※参考値"))
}

func TestEvaluate_Failures(t *testing.T) {
	missingGbp := &RateInput{Values: map[string]float64{"jpy": 1, "usd": 0.0067, "eur": 0.0061}, NetworkError: true}
	zeroJpy := &RateInput{Values: map[string]float64{"jpy": 0, "usd": 0.0067, "gbp": 0.0053, "eur": 0.0061}}
	extreme := NewCpiTable([]CpiRow{
		row("1980", "1e-300", "1", "1", "1"),
		row("2024", "1e300", "1", "1", "1"),
	})

	tests := []struct {
		name      string
		req       ValidRequest
		table     *CpiTable
		rates     *RateInput
		kind      ErrorKind
		message   string
		retryable bool
	}{
		{"cpi not found", mustParse(t, "1990", "usd", "100"), testTable(), liveRateInput(),
			CpiNotFound, "1990年のCPIデータが見つかりません", false},
		{"cpi invalid", mustParse(t, "1950", "gbp", "100"), testTable(), liveRateInput(),
			CpiInvalid, "1950年のGBPのCPIデータが無効です", false},
		{"rate missing", mustParse(t, "1980", "gbp", "100"), testTable(), missingGbp,
			RateMissing, "GBPの為替レートが取得できません", true},
		{"rate compute", mustParse(t, "1980", "usd", "100"), testTable(), zeroJpy,
			RateComputeError, "為替レートの計算に失敗しました", false},
		{"result invalid", mustParse(t, "1980", "jpy", "0"), extreme, liveRateInput(),
			ResultInvalid, "計算結果が無効です。入力値を確認してください", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(tt.req, tt.table, tt.rates, testNow)

			assert.Equal(t, StatusFailure, out.Status)
			require.NotNil(t, out.Failure)
			assert.Equal(t, tt.kind, out.Failure.Kind)
			assert.Equal(t, tt.message, out.Failure.Message)
			assert.Equal(t, tt.retryable, out.Failure.Retryable)
			assert.True(t, tt.kind.IsDataFailure())
			assert.Empty(t, out.ResultStatement)
		})
	}
}

func TestEvaluate_CurrentYearFallback(t *testing.T) {
	req := mustParse(t, "1980", "usd", "100")
	table := testTable()

	// 2025 has no row, 2024 is used
	out := Evaluate(req, table, liveRateInput(), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.True(t, out.Succeeded())

	out = Evaluate(req, table, liveRateInput(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, out.Failure)
	assert.Equal(t, CurrentCpiNotFound, out.Failure.Kind)
}

func TestEvaluate_Idempotent(t *testing.T) {
	req := mustParse(t, "1985", "jpy", "10000")
	table := NewCpiTable([]CpiRow{
		row("1985", "87.4", "", "", ""),
		row("2024", "108.5", "", "", ""),
	})

	first := Evaluate(req, table, liveRateInput(), testNow)
	second := Evaluate(req, table, liveRateInput(), testNow)

	require.True(t, first.Succeeded())
	assert.Equal(t, first, second)
}
