package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creco/imaikura/internal/api/handlers"
	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/internal/rates"
	"github.com/creco/imaikura/internal/seo"
	"github.com/creco/imaikura/pkg/config"
	"github.com/creco/imaikura/pkg/logger"
	"github.com/creco/imaikura/pkg/redis"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type staticProvider struct{}

func (staticProvider) Name() string { return "static" }

func (staticProvider) FetchRates(ctx context.Context) (rates.RateSet, error) {
	return rates.RateSet{
		"jpy": {Value: 1},
		"usd": {Value: 1.0 / 150},
		"gbp": {Value: 1.0 / 190},
		"eur": {Value: 1.0 / 160},
	}, nil
}

// fakeLimiter allows the first n requests
type fakeLimiter struct {
	n    int
	seen []string
	err  error
}

func (l *fakeLimiter) Allow(ctx context.Context, cfg redis.RateLimitConfig) (bool, int, error) {
	l.seen = append(l.seen, cfg.Key)
	if l.err != nil {
		return false, 0, l.err
	}
	if len(l.seen) > l.n {
		return false, 0, nil
	}
	return true, l.n - len(l.seen), nil
}

func row(year, jpy, usd, gbp, eur string) inflation.CpiRow {
	return inflation.CpiRow{Year: year, Values: map[string]string{"jpy": jpy, "usd": usd, "gbp": gbp, "eur": eur}}
}

func testTable() *inflation.CpiTable {
	return inflation.NewCpiTable([]inflation.CpiRow{
		row("1950", "", "24.1", "", ""),
		row("1980", "100", "82.4", "78.9", "85.2"),
		row("1985", "105", "107.6", "94.6", ""),
		row("2000", "110", "172.2", "156.1", "158.8"),
		row("2024", "142", "310.3", "298.2", "287.8"),
	})
}

type testEnv struct {
	handler http.Handler
	service *inflation.Service
	fetcher *rates.Fetcher
}

func newTestEnv(t *testing.T, limiter Limiter, withTable bool) *testEnv {
	t.Helper()
	log := logger.Nop()

	fetcher := rates.NewFetcher(staticProvider{}, nil, time.Minute, log)
	service := inflation.NewService(fetcher, log).WithClock(func() time.Time { return testNow })
	if withTable {
		service.SetTable(testTable())
	}

	renderer, err := seo.NewRenderer(config.SiteConfig{
		Domain:      "imaikura.creco.net",
		OGImageBase: "https://creco.net/misc/imaikura/og",
	})
	require.NoError(t, err)

	plan, err := seo.DefaultPlan()
	require.NoError(t, err)

	redisClient, err := redis.New(&config.Config{})
	require.NoError(t, err)
	cache := redis.NewCache(redisClient, "test")

	h := Handlers{
		Calc:   handlers.NewCalcHandler(service, log),
		Rates:  handlers.NewRatesHandler(service, log),
		Stream: handlers.NewStreamHandler(fetcher, log),
		Pages:  handlers.NewPageHandler(service, renderer, plan, "imaikura.creco.net", cache, log),
	}

	if limiter == nil {
		limiter = redis.NewRateLimiter(redisClient, "test")
	}

	return &testEnv{
		handler: NewRouter(h, limiter, redis.RetryRateLimit(2), log),
		service: service,
		fetcher: fetcher,
	}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) inflation.Outcome {
	t.Helper()
	var out inflation.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCalculate(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/api/calculate?year=1980&currency=usd&amount=100")
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeOutcome(t, rec)
	assert.Equal(t, inflation.StatusSuccess, out.Status)
	assert.Equal(t, 56487.0, out.Result)
	assert.Equal(t, "56,487円", out.ResultStatement)
	assert.False(t, out.UsingFallback)
}

func TestCalculate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		status   int
		kind     inflation.ErrorKind
		contains string
	}{
		{"year too early", "year=1800&currency=usd&amount=100", http.StatusBadRequest, inflation.ValidationRejected, "年の入力値が無効です: 1800"},
		{"future year", "year=2026&currency=usd&amount=100", http.StatusBadRequest, inflation.ValidationRejected, "年の入力値が無効です"},
		{"uppercase currency", "year=1980&currency=USD&amount=100", http.StatusBadRequest, inflation.ValidationRejected, "通貨の入力値が無効です: USD"},
		{"three decimals", "year=1980&currency=usd&amount=1.234", http.StatusBadRequest, inflation.ValidationRejected, "金額の入力値が無効です"},
		{"no CPI data", "year=1950&currency=jpy&amount=100", http.StatusUnprocessableEntity, inflation.CpiNotFound, ""},
	}

	env := newTestEnv(t, nil, true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do("GET", "/api/calculate?"+tt.query)
			assert.Equal(t, tt.status, rec.Code)

			out := decodeOutcome(t, rec)
			assert.Equal(t, inflation.StatusFailure, out.Status)
			require.NotNil(t, out.Failure)
			assert.Equal(t, tt.kind, out.Failure.Kind)
			assert.Contains(t, out.Failure.Message, tt.contains)
		})
	}
}

func TestCalculate_LogsDataFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&config.Config{LogLevel: "warn"}, &buf)

	service := inflation.NewService(rates.NewFetcher(staticProvider{}, nil, time.Minute, log), log).
		WithClock(func() time.Time { return testNow })
	service.SetTable(testTable())
	h := handlers.NewCalcHandler(service, log)

	rec := httptest.NewRecorder()
	h.Calculate(rec, httptest.NewRequest("GET", "/api/calculate?year=1950&currency=jpy&amount=100", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, buf.String(), `"kind":"CpiNotFound"`)
	assert.Contains(t, buf.String(), `"currency":"jpy"`)

	buf.Reset()
	rec = httptest.NewRecorder()
	h.Calculate(rec, httptest.NewRequest("GET", "/api/calculate?year=1800&currency=jpy&amount=100", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, buf.String())
}

func TestCalculate_Loading(t *testing.T) {
	env := newTestEnv(t, nil, false)

	rec := env.do("GET", "/api/calculate?year=1980&currency=usd&amount=100")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, inflation.StatusLoading, decodeOutcome(t, rec).Status)
}

func TestCurrencies(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/api/currencies")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Currencies []handlers.CurrencyInfo `json:"currencies"`
		YearMin    int                     `json:"year_min"`
		YearMax    int                     `json:"year_max"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Currencies, 4)
	first := map[string]int{}
	for _, c := range body.Currencies {
		first[c.Code] = c.FirstYear
	}
	assert.Equal(t, 1980, first["jpy"])
	assert.Equal(t, 1950, first["usd"])
	assert.Equal(t, 2000, first["eur"])
	assert.Equal(t, 1900, body.YearMin)
	assert.Equal(t, 2025, body.YearMax)
}

func TestRates(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/api/rates")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.RatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rates.StateSucceeded, resp.State)
	assert.Equal(t, "provider", resp.Source)
	assert.False(t, resp.UsingFallback)
	assert.Empty(t, resp.Warning)
}

func TestRetry_RateLimited(t *testing.T) {
	limiter := &fakeLimiter{n: 1}
	env := newTestEnv(t, limiter, true)

	rec := env.do("POST", "/api/rates/retry")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var resp handlers.RatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RetryCount)

	rec = env.do("POST", "/api/rates/retry")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, "rates-retry:192.0.2.1", limiter.seen[0])
}

func TestRetry_LimiterErrorPassesThrough(t *testing.T) {
	env := newTestEnv(t, &fakeLimiter{err: errors.New("redis down")}, true)

	rec := env.do("POST", "/api/rates/retry")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "192.0.2.1", clientID(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientID(req))
}

func TestPage(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/1980/usd/100")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>1980年の100ドルは今56,487円 | 今いくら</title>")
}

func TestPage_Redirects(t *testing.T) {
	env := newTestEnv(t, nil, true)

	for _, path := range []string{"/1980/USD/100", "/abcd/usd/100", "/1980/usd/1.234", "/2030/usd/1"} {
		rec := env.do("GET", path)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/", rec.Header().Get("Location"), path)
	}
}

func TestPage_CalculationFailureServesShell(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/1950/jpy/100")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>今いくら | 昔のお金の価値を今の日本円に換算</title>")
}

func TestSitemap(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/sitemap.xml")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<loc>https://imaikura.creco.net/</loc>")
	assert.Contains(t, body, "<loc>https://imaikura.creco.net/1985/usd/100</loc>")
	assert.Contains(t, body, "<lastmod>2025-06-01</lastmod>")
	assert.NotContains(t, body, "/1950/jpy/")

	// 2回目はキャッシュから
	again := env.do("GET", "/sitemap.xml")
	assert.Equal(t, body, again.Body.String())
}

func TestSitemap_Loading(t *testing.T) {
	env := newTestEnv(t, nil, false)

	rec := env.do("GET", "/sitemap.xml")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGzip(t *testing.T) {
	env := newTestEnv(t, nil, true)

	req := httptest.NewRequest("GET", "/sitemap.xml", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestWebsocketRates(t *testing.T) {
	env := newTestEnv(t, nil, true)
	server := httptest.NewServer(env.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/rates"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// 接続直後は現在のスナップショット
	var first handlers.RatesResponse
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, rates.StateFetching, first.State)

	env.fetcher.Load(context.Background())

	// 取得完了まで読み進める
	for {
		var next handlers.RatesResponse
		require.NoError(t, conn.ReadJSON(&next))
		if next.State == rates.StateSucceeded {
			assert.Equal(t, "provider", next.Source)
			break
		}
	}
}

func TestNotFoundRedirects(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/about")

	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, nil, true)

	rec := env.do("GET", "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<div id="root"></div>`)
}
