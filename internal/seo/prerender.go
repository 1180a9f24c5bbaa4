package seo

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/pkg/config"
	"github.com/creco/imaikura/pkg/logger"
)

//go:embed shell.html
var defaultShell string

// Page is one calculated page to render
type Page struct {
	Request inflation.ValidRequest
	Result  float64
}

// Meta holds the per-page strings injected into the shell
type Meta struct {
	Title         string
	Description   string
	OGTitle       string
	OGDescription string
	Keywords      string
	CanonicalURL  string
	OGImageURL    string
	AmountText    string // formatted amount
	ResultText    string // formatted result
	CurrencyLabel string
	EraLabel      string // "（昭和55年）" or empty
}

// Renderer injects page meta tags, JSON-LD and a noscript fallback into the
// SPA shell HTML.
// ⭐ SSOT: ページ別メタタグの生成はここだけ
type Renderer struct {
	domain      string
	ogImageBase string
	shell       string
}

// NewRenderer loads the shell from site.HTMLTemplatePath, or uses the
// embedded shell when the path is empty.
func NewRenderer(site config.SiteConfig) (*Renderer, error) {
	shell := defaultShell
	if site.HTMLTemplatePath != "" {
		data, err := os.ReadFile(site.HTMLTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read HTML template: %w", err)
		}
		shell = string(data)
	}

	return &Renderer{
		domain:      site.Domain,
		ogImageBase: strings.TrimRight(site.OGImageBase, "/"),
		shell:       shell,
	}, nil
}

// Shell returns the unmodified shell HTML
func (r *Renderer) Shell() string {
	return r.shell
}

// BuildMeta computes the page strings. today sets the OG image cache key.
func (r *Renderer) BuildMeta(p Page, today time.Time) Meta {
	req := p.Request
	label := inflation.CurrencyLabel(req.Currency)
	amount := inflation.FormatNumber(req.Amount)
	result := inflation.FormatNumber(p.Result)

	eraLabel, eraKeyword := "", ""
	if era, ok := inflation.ToJapaneseEra(req.Year); ok {
		eraLabel = "（" + era + "）"
		eraKeyword = "," + era
	}

	path := fmt.Sprintf("%s/%s/%s", req.YearText, req.Currency, req.AmountText)

	return Meta{
		Title: fmt.Sprintf("%s年の%s%sは今%s円 | 今いくら", req.YearText, amount, label, result),
		Description: fmt.Sprintf("%s年%sの%s%sを現在の日本円に換算すると%s円です。インフレ率を考慮した正確な価値を計算できます。",
			req.YearText, eraLabel, amount, label, result),
		OGTitle: fmt.Sprintf("%s年の%s%sは今%s円！", req.YearText, amount, label, result),
		OGDescription: fmt.Sprintf("昔のお金の価値を今の価値に換算。%s年%sの%s%sは現在の%s円相当です。",
			req.YearText, eraLabel, amount, label, result),
		Keywords: fmt.Sprintf("インフレ計算,%s年%s,%s,物価,昔の価値,現在価値,CPI,消費者物価指数,貨幣価値 換算",
			req.YearText, eraKeyword, label),
		CanonicalURL: fmt.Sprintf("https://%s/%s", r.domain, path),
		OGImageURL: fmt.Sprintf("%s/%s.png?r=%s&d=%s",
			r.ogImageBase, path, strconv.FormatFloat(p.Result, 'f', -1, 64), today.Format("0102")),
		AmountText:    amount,
		ResultText:    result,
		CurrencyLabel: label,
		EraLabel:      eraLabel,
	}
}

// Render returns the shell with the page's meta tags, structured data and
// noscript content.
func (r *Renderer) Render(p Page, today time.Time) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.shell))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML shell: %w", err)
	}

	m := r.BuildMeta(p, today)
	head := doc.Find("head")

	title := doc.Find("title")
	if title.Length() == 0 {
		head.AppendHtml("<title></title>")
		title = doc.Find("title")
	}
	title.SetText(m.Title)

	setMeta(head, "name", "description", m.Description)
	setMeta(head, "name", "keywords", m.Keywords)
	setMeta(head, "property", "og:title", m.OGTitle)
	setMeta(head, "property", "og:description", m.OGDescription)
	setMeta(head, "property", "og:url", m.CanonicalURL)
	setMeta(head, "property", "og:image", m.OGImageURL)
	setMeta(head, "name", "twitter:title", m.Title)
	setMeta(head, "name", "twitter:description", m.Description)
	setMeta(head, "name", "twitter:image", m.OGImageURL)

	canonical := head.Find(`link[rel="canonical"]`)
	if canonical.Length() == 0 {
		head.AppendHtml(`<link rel="canonical" href=""/>`)
		canonical = head.Find(`link[rel="canonical"]`)
	}
	canonical.SetAttr("href", m.CanonicalURL)

	scripts, err := r.structuredData(p.Request, m)
	if err != nil {
		return "", err
	}
	head.AppendHtml(scripts)

	doc.Find("body").AppendHtml(fmt.Sprintf(`<noscript>
      <div style="max-width:600px;margin:2rem auto;padding:1rem;font-family:sans-serif">
        <h1>%s</h1>
        <p>%s</p>
        <p>計算結果: <strong>%s円</strong>（参考値）</p>
      </div>
    </noscript>`, html.EscapeString(m.Title), html.EscapeString(m.Description), m.ResultText))

	out, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}

func setMeta(head *goquery.Selection, attr, key, content string) {
	selector := fmt.Sprintf(`meta[%s=%q]`, attr, key)
	meta := head.Find(selector)
	if meta.Length() == 0 {
		head.AppendHtml(fmt.Sprintf(`<meta %s="%s" content=""/>`, attr, html.EscapeString(key)))
		meta = head.Find(selector)
	}
	meta.SetAttr("content", content)
}

func (r *Renderer) structuredData(req inflation.ValidRequest, m Meta) (string, error) {
	subject := fmt.Sprintf("%s年%sの%s%s", req.YearText, m.EraLabel, m.AmountText, m.CurrencyLabel)

	data := []map[string]interface{}{
		{
			"@context":            "https://schema.org",
			"@type":               "WebApplication",
			"name":                "今いくら",
			"description":         "昔のお金の価値を現在の日本円に換算するインフレ計算機",
			"url":                 fmt.Sprintf("https://%s/", r.domain),
			"applicationCategory": "FinanceApplication",
			"operatingSystem":     "Web Browser",
			"offers":              map[string]string{"@type": "Offer", "price": "0", "priceCurrency": "JPY"},
			"author":              map[string]string{"@type": "Organization", "name": "creco", "url": "https://creco.net/"},
			"inLanguage":          "ja-JP",
			"isAccessibleForFree": true,
		},
		{
			"@context": "https://schema.org",
			"@type":    "FAQPage",
			"mainEntity": []map[string]interface{}{
				{
					"@type": "Question",
					"name":  subject + "は今いくらですか？",
					"acceptedAnswer": map[string]string{
						"@type": "Answer",
						"text":  fmt.Sprintf("%sは、現在の価値で約%s円に相当します。この計算は消費者物価指数（CPI）データに基づいて行われています。", subject, m.ResultText),
					},
				},
				{
					"@type": "Question",
					"name":  "インフレ計算はどのように行われますか？",
					"acceptedAnswer": map[string]string{
						"@type": "Answer",
						"text":  "当サイトでは、各国の消費者物価指数（CPI）データと現在の為替レートを使用して、過去の金額を現在の日本円価値に換算しています。",
					},
				},
			},
		},
	}

	var b bytes.Buffer
	for i, item := range data {
		// json.Marshal は < > & をエスケープするので script 内に安全に置ける
		payload, err := json.Marshal(item)
		if err != nil {
			return "", fmt.Errorf("failed to encode structured data: %w", err)
		}
		fmt.Fprintf(&b, `<script type="application/ld+json" id="structured-data-%d">%s</script>`, i, payload)
	}
	return b.String(), nil
}

// Calculator evaluates validated requests. *inflation.Service implements it.
type Calculator interface {
	CalculateValid(ctx context.Context, req inflation.ValidRequest) inflation.Outcome
	Now() time.Time
}

// Prerenderer writes one static HTML page per route
type Prerenderer struct {
	calc     Calculator
	renderer *Renderer
	logger   *logger.Logger
}

// NewPrerenderer creates a page generator
func NewPrerenderer(calc Calculator, renderer *Renderer, log *logger.Logger) *Prerenderer {
	return &Prerenderer{calc: calc, renderer: renderer, logger: log}
}

// RenderRoute validates and calculates one route and renders its page.
// The second return is false when the route cannot be calculated.
func (p *Prerenderer) RenderRoute(ctx context.Context, route Route) (string, bool, error) {
	now := p.calc.Now()

	req, err := inflation.ParseRequest(route.Request(), now)
	if err != nil {
		return "", false, nil
	}

	out := p.calc.CalculateValid(ctx, req)
	if !out.Succeeded() {
		return "", false, nil
	}

	page, err := p.renderer.Render(Page{Request: req, Result: out.Result}, now)
	if err != nil {
		return "", false, err
	}
	return page, true, nil
}

// GenerateStats summarises a Generate run
type GenerateStats struct {
	Written int
	Skipped int
}

// Generate writes outDir/{year}/{currency}/{amount}/index.html for every
// route. Routes that fail to calculate are skipped and logged.
func (p *Prerenderer) Generate(ctx context.Context, routes []Route, outDir string) (GenerateStats, error) {
	var stats GenerateStats

	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, ok, err := p.RenderRoute(ctx, route)
		if err != nil {
			return stats, fmt.Errorf("render %s: %w", route.Path(), err)
		}
		if !ok {
			p.logger.WithField("path", route.Path()).Warn("計算できないためスキップします")
			stats.Skipped++
			continue
		}

		dir := filepath.Join(outDir, strconv.Itoa(route.Year), route.Currency, route.Amount)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(page), 0o644); err != nil {
			return stats, fmt.Errorf("failed to write page: %w", err)
		}
		stats.Written++
	}

	p.logger.WithFields(map[string]interface{}{
		"written": stats.Written,
		"skipped": stats.Skipped,
	}).Info("Prerender completed")

	return stats, nil
}
