package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/internal/seo"
	"github.com/creco/imaikura/pkg/logger"
	"github.com/creco/imaikura/pkg/redis"
)

// Cache stores rendered artifacts. *redis.Cache implements it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// PageHandler serves the HTML route surface and sitemap.xml
type PageHandler struct {
	service  *inflation.Service
	renderer *seo.Renderer
	plan     *seo.Plan
	domain   string
	cache    Cache
	logger   *logger.Logger
}

// NewPageHandler creates a new page handler. cache may be nil.
func NewPageHandler(
	service *inflation.Service,
	renderer *seo.Renderer,
	plan *seo.Plan,
	domain string,
	cache Cache,
	log *logger.Logger,
) *PageHandler {
	return &PageHandler{
		service:  service,
		renderer: renderer,
		plan:     plan,
		domain:   domain,
		cache:    cache,
		logger:   log,
	}
}

// Index serves the unmodified shell
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	respondHTML(w, http.StatusOK, h.renderer.Shell())
}

// Page serves a calculation page with its meta tags filled in. Malformed
// segments redirect to the top page.
// GET /{year}/{currency}/{amount}
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req := inflation.Request{
		Year:     vars["year"],
		Currency: vars["currency"],
		Amount:   vars["amount"],
	}

	now := h.service.Now()
	valid, err := inflation.ParseRequest(req, now)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	out := h.service.CalculateValid(r.Context(), valid)
	if !out.Succeeded() {
		// 計算できないページはクライアント側でエラー表示
		respondHTML(w, http.StatusOK, h.renderer.Shell())
		return
	}

	page, err := h.renderer.Render(seo.Page{Request: valid, Result: out.Result}, now)
	if err != nil {
		h.logger.WithError(err).Error("Failed to render page")
		respondHTML(w, http.StatusOK, h.renderer.Shell())
		return
	}

	respondHTML(w, http.StatusOK, page)
}

// Sitemap serves sitemap.xml built from the route plan
// GET /sitemap.xml
func (h *PageHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	table := h.service.Table()
	if table == nil {
		respondError(w, http.StatusServiceUnavailable, "CPI data is loading")
		return
	}

	today := h.service.Now()
	key := "sitemap:" + today.Format("2006-01-02")

	var body string
	if h.cache != nil {
		if found, err := h.cache.Get(ctx, key, &body); err != nil {
			h.logger.WithError(err).Warn("Sitemap cache read failed")
		} else if found {
			writeXML(w, body)
			return
		}
	}

	var buf bytes.Buffer
	if err := seo.WriteSitemap(&buf, h.domain, h.plan.Routes(table), today); err != nil {
		h.logger.WithError(err).Error("Failed to build sitemap")
		respondError(w, http.StatusInternalServerError, "Failed to build sitemap")
		return
	}
	body = buf.String()

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, body, redis.TTLSitemap); err != nil {
			h.logger.WithError(err).Warn("Sitemap cache write failed")
		}
	}

	writeXML(w, body)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
