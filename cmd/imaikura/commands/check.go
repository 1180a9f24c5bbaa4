package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/creco/imaikura/internal/inflation"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "設定と接続の確認",
	Long: `設定を読み込み、各データソースへの接続を確認します。

このコマンドは:
- config の読み込み
- CPI データの読み込みと通貨ごとの開始年
- Redis 接続 (REDIS_ENABLED=true の場合)
- PostgreSQL Health Check (DATABASE_URL 設定時)
- 為替レートの取得

Example:
  go run ./cmd/imaikura check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== imaikura Check ===")

	// 1. Config
	a, err := newApp()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	defer a.Close()
	PrintSuccess(fmt.Sprintf("Config loaded (ENV: %s)", a.cfg.Env))

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// 2. Database
	if a.cfg.Database.Enabled() {
		fmt.Printf("   Database URL: %s\n", redactURL(a.cfg.Database.URL))
		db, err := a.database(ctx)
		if err != nil {
			return fmt.Errorf("❌ %w", err)
		}
		status, err := db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("❌ Health check failed: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Database healthy (%v)", status.ResponseTime))
		PrintKeyValue("Max Connections", strconv.Itoa(int(status.Stats.MaxConns)), 18)
		PrintKeyValue("Total Connections", strconv.Itoa(int(status.Stats.TotalConns)), 18)
		PrintKeyValue("Idle Connections", strconv.Itoa(int(status.Stats.IdleConns)), 18)
	} else {
		PrintInfo("Database disabled (DATABASE_URL not set)")
	}

	// 3. Redis
	if a.redis.Enabled() {
		PrintSuccess("Redis connected")
	} else {
		PrintInfo("Redis disabled (in-memory cache)")
	}

	// 4. CPI table and rates
	if err := a.loadCPI(ctx); err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	table := a.service.Table()
	PrintSuccess(fmt.Sprintf("CPI table loaded (%s, %d years)", a.cfg.CPI.Source, table.Len()))
	for _, c := range inflation.Currencies {
		first := "-"
		if y, ok := table.FirstYear(c.Code); ok {
			first = strconv.Itoa(y)
		}
		PrintKeyValue(c.Code, first, 4)
	}

	printSnapshot(a.fetcher.Current())
	return nil
}

// redactURL hides the password of a connection URL
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
