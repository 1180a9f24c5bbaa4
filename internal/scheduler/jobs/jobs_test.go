package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/internal/rates"
	"github.com/creco/imaikura/internal/seo"
	"github.com/creco/imaikura/pkg/config"
	"github.com/creco/imaikura/pkg/logger"
)

type fakeRefresher struct {
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestRatesRefreshJob(t *testing.T) {
	refresher := &fakeRefresher{}
	job := NewRatesRefreshJob(refresher, "0 */10 * * * *", logger.Nop())

	assert.Equal(t, "rates_refresh", job.Name())
	assert.Equal(t, "0 */10 * * * *", job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, refresher.calls)

	refresher.err = errors.New("fallback")
	assert.Error(t, job.Run(context.Background()))
}

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

func row(year, jpy, usd string) inflation.CpiRow {
	return inflation.CpiRow{Year: year, Values: map[string]string{"jpy": jpy, "usd": usd}}
}

func testService(withTable bool) *inflation.Service {
	log := logger.Nop()
	fetcher := rates.NewFetcher(staticProvider{}, nil, time.Minute, log)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := inflation.NewService(fetcher, log).WithClock(func() time.Time { return now })
	if withTable {
		svc.SetTable(inflation.NewCpiTable([]inflation.CpiRow{
			row("1985", "87.2", "107.6"),
			row("2024", "142", "310.3"),
		}))
	}
	return svc
}

func testPlan(t *testing.T) *seo.Plan {
	t.Helper()
	plan, err := seo.ParsePlan([]byte(`groups:
  - name: historical
    label: 歴史的イベント
    priority: 0.9
    routes:
      - {year: 1985, currency: usd, amount: 100}
      - {year: 1985, currency: jpy, amount: 10000}
      - {year: 1985, currency: gbp, amount: 100}
`))
	require.NoError(t, err)
	return plan
}

func TestSitemapJob(t *testing.T) {
	dir := t.TempDir()
	job := NewSitemapJob(testService(true), testPlan(t), "imaikura.creco.net", dir, nil, "0 0 4 * * *", logger.Nop())

	assert.Equal(t, "sitemap", job.Name())
	require.NoError(t, job.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "sitemap.xml"))
	require.NoError(t, err)
	xml := string(data)
	assert.Contains(t, xml, "<loc>https://imaikura.creco.net/1985/usd/100</loc>")
	assert.Contains(t, xml, "<loc>https://imaikura.creco.net/1985/jpy/10000</loc>")
	assert.NotContains(t, xml, "/1985/gbp/")
	assert.Contains(t, xml, "<lastmod>2025-06-01</lastmod>")

	// 一時ファイルは残らない
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSitemapJob_WithPrerender(t *testing.T) {
	dir := t.TempDir()
	svc := testService(true)

	renderer, err := seo.NewRenderer(config.SiteConfig{Domain: "imaikura.creco.net", OGImageBase: "https://creco.net/og"})
	require.NoError(t, err)
	pre := seo.NewPrerenderer(svc, renderer, logger.Nop())

	job := NewSitemapJob(svc, testPlan(t), "imaikura.creco.net", dir, pre, "0 0 4 * * *", logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	page, err := os.ReadFile(filepath.Join(dir, "1985", "usd", "100", "index.html"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(page), "1985年の100ドルは今"))

	_, err = os.Stat(filepath.Join(dir, "1985", "jpy", "10000", "index.html"))
	assert.NoError(t, err)
}

func TestSitemapJob_NoTable(t *testing.T) {
	job := NewSitemapJob(testService(false), testPlan(t), "imaikura.creco.net", t.TempDir(), nil, "0 0 4 * * *", logger.Nop())

	assert.Error(t, job.Run(context.Background()))
}
