package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/creco/imaikura/internal/cpidata"
	"github.com/creco/imaikura/pkg/database"
	"github.com/creco/imaikura/pkg/logger"
)

// cpiCmd represents the cpi command
var cpiCmd = &cobra.Command{
	Use:   "cpi",
	Short: "CPI データ管理",
	Long: `CPI データファイルの変換と PostgreSQL への取り込みを行います。

Subcommands:
  convert - CSV を JSON に変換
  import  - CSV/JSON を PostgreSQL に取り込み

Example:
  go run ./cmd/imaikura cpi convert cpi.csv cpi_all.json
  go run ./cmd/imaikura cpi import cpi_all.json`,
}

var (
	cpiConvertCmd = &cobra.Command{
		Use:   "convert <in.csv> <out.json>",
		Short: "CSV を JSON に変換",
		Args:  cobra.ExactArgs(2),
		RunE:  runCPIConvert,
	}

	cpiImportCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "CPI データを PostgreSQL に取り込み",
		Long: `CSV または JSON の CPI データを cpi_index テーブルに upsert します。
DATABASE_URL が必要です。`,
		Args: cobra.ExactArgs(1),
		RunE: runCPIImport,
	}
)

func init() {
	rootCmd.AddCommand(cpiCmd)
	cpiCmd.AddCommand(cpiConvertCmd)
	cpiCmd.AddCommand(cpiImportCmd)
}

func runCPIConvert(cmd *cobra.Command, args []string) error {
	n, err := cpidata.Convert(args[0], args[1])
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s → %s (%d rows)", args[0], args[1], n))
	return nil
}

func runCPIImport(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	// 2. Read rows
	rows, err := cpidata.ReadFile(args[0])
	if err != nil {
		return err
	}

	// 3. Connect to database
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 4. Upsert
	repo := cpidata.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.Import(ctx, rows); err != nil {
		return err
	}

	log.WithField("rows", len(rows)).Info("CPI data imported")
	PrintSuccess(fmt.Sprintf("%d rows imported", len(rows)))
	return nil
}
