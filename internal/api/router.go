package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"github.com/creco/imaikura/internal/api/handlers"
	"github.com/creco/imaikura/pkg/logger"
	"github.com/creco/imaikura/pkg/redis"
)

// Limiter decides whether a client may proceed. *redis.RateLimiter implements it.
type Limiter interface {
	Allow(ctx context.Context, cfg redis.RateLimitConfig) (bool, int, error)
}

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Calc   *handlers.CalcHandler
	Rates  *handlers.RatesHandler
	Stream *handlers.StreamHandler
	Pages  *handlers.PageHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: ルーティング設定はこの関数だけ
func NewRouter(h Handlers, limiter Limiter, retryLimit redis.RateLimitConfig, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/calculate", h.Calc.Calculate).Methods("GET")
	api.HandleFunc("/currencies", h.Calc.Currencies).Methods("GET")
	api.HandleFunc("/rates", h.Rates.GetRates).Methods("GET")
	api.Handle("/rates/retry",
		rateLimitMiddleware(limiter, retryLimit, log)(http.HandlerFunc(h.Rates.Retry))).Methods("POST")

	// Websocket
	r.HandleFunc("/ws/rates", h.Stream.Rates).Methods("GET")

	// Pages
	r.HandleFunc("/sitemap.xml", h.Pages.Sitemap).Methods("GET")
	r.HandleFunc("/{year}/{currency}/{amount}", h.Pages.Page).Methods("GET")
	r.HandleFunc("/", h.Pages.Index).Methods("GET")
	r.NotFoundHandler = http.RedirectHandler("/", http.StatusFound)

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return compress(r)
}

// compress gzips responses except websocket upgrades, which need the raw
// connection.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "imaikura-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware limits requests per client address. Limiter errors
// let the request through.
func rateLimitMiddleware(limiter Limiter, cfg redis.RateLimitConfig, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, err := limiter.Allow(r.Context(), cfg.ForClient(clientID(r)))
			if err != nil {
				log.WithError(err).Warn("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "しばらく待ってから再試行してください",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientID returns the first X-Forwarded-For address or the remote host
func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
