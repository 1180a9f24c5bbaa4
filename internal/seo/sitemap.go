package seo

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// BuildSitemap renders the top page and routes as a sitemap document.
// Consecutive routes from the same group share one comment header.
func BuildSitemap(domain string, routes []Route, today time.Time) *etree.Document {
	lastmod := today.Format("2006-01-02")

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	urlset := doc.CreateElement("urlset")
	urlset.CreateAttr("xmlns", sitemapNS)

	urlset.CreateComment(" トップページ ")
	addURL(urlset, fmt.Sprintf("https://%s/", domain), lastmod, "weekly", "1.0")

	lastGroup := ""
	for _, r := range routes {
		if r.Group != lastGroup && r.Group != "" {
			urlset.CreateComment(" " + r.Group + " ")
		}
		lastGroup = r.Group

		addURL(urlset,
			fmt.Sprintf("https://%s%s", domain, r.Path()),
			lastmod, "monthly", strconv.FormatFloat(r.Priority, 'f', -1, 64))
	}

	doc.Indent(2)
	return doc
}

func addURL(urlset *etree.Element, loc, lastmod, changefreq, priority string) {
	u := urlset.CreateElement("url")
	u.CreateElement("loc").SetText(loc)
	u.CreateElement("lastmod").SetText(lastmod)
	u.CreateElement("changefreq").SetText(changefreq)
	u.CreateElement("priority").SetText(priority)
}

// WriteSitemap writes the sitemap XML to w
func WriteSitemap(w io.Writer, domain string, routes []Route, today time.Time) error {
	if _, err := BuildSitemap(domain, routes, today).WriteTo(w); err != nil {
		return fmt.Errorf("failed to write sitemap: %w", err)
	}
	return nil
}

// ReadSitemapRoutes extracts /{year}/{currency}/{amount} paths of domain
// from a sitemap. The top page and foreign URLs are skipped.
func ReadSitemapRoutes(r io.Reader, domain string) ([]Route, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}

	prefix := fmt.Sprintf("https://%s/", domain)
	var routes []Route
	for _, u := range doc.FindElements("//url") {
		loc := u.FindElement("loc")
		if loc == nil {
			continue
		}
		path, ok := strings.CutPrefix(strings.TrimSpace(loc.Text()), prefix)
		if !ok {
			continue
		}
		parts := strings.Split(path, "/")
		if len(parts) != 3 {
			continue
		}
		year, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		route := Route{Year: year, Currency: parts[1], Amount: parts[2]}
		if p := u.FindElement("priority"); p != nil {
			route.Priority, _ = strconv.ParseFloat(strings.TrimSpace(p.Text()), 64)
		}
		routes = append(routes, route)
	}

	return routes, nil
}
