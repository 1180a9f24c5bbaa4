package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/creco/imaikura/internal/api"
	"github.com/creco/imaikura/internal/api/handlers"
	"github.com/creco/imaikura/internal/seo"
	"github.com/creco/imaikura/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API サーバー起動",
	Long: `HTTP サーバーを起動します。

Endpoints:
  GET  /health                     - Health check
  GET  /api/calculate              - 計算 (?year=&currency=&amount=)
  GET  /api/currencies             - 対応通貨
  GET  /api/rates                  - 為替レートの状態
  POST /api/rates/retry            - 為替レート再取得
  GET  /ws/rates                   - 為替レート状態のストリーム
  GET  /sitemap.xml                - サイトマップ
  GET  /{year}/{currency}/{amount} - 計算ページ

Example:
  go run ./cmd/imaikura api
  go run ./cmd/imaikura api --port 8080 --scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API サーバーポート (default is PORT)")
	apiCmd.Flags().BoolVar(&apiScheduler, "scheduler", false, "スケジューラーを同じプロセスで起動")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. Bootstrap
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	// 2. Load CPI table and first rates
	if err := a.loadCPI(ctx); err != nil {
		return err
	}

	// 3. Pages
	renderer, err := seo.NewRenderer(a.cfg.Site)
	if err != nil {
		return err
	}
	plan, err := seo.LoadPlan(a.cfg.Site.RoutePlanPath)
	if err != nil {
		return err
	}

	// 4. Handlers
	h := api.Handlers{
		Calc:   handlers.NewCalcHandler(a.service, a.log),
		Rates:  handlers.NewRatesHandler(a.service, a.log),
		Stream: handlers.NewStreamHandler(a.fetcher, a.log),
		Pages: handlers.NewPageHandler(a.service, renderer, plan, a.cfg.Site.Domain,
			redis.NewCache(a.redis, keyPrefix), a.log),
	}

	// 5. Router and server
	limiter := redis.NewRateLimiter(a.redis, keyPrefix)
	router := api.NewRouter(h, limiter, redis.RetryRateLimit(a.cfg.Rates.RetryLimitPerMin), a.log)
	server := api.New(a.cfg, a.log, router)

	// 6. Optional scheduler
	if apiScheduler {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 7. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
