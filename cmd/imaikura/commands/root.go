package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cpiDataPath string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imaikura",
	Short: "今いくら - 昔のお金の価値を今の日本円に換算",
	Long: `imaikura CLI

消費者物価指数（CPI）と為替レートから、過去の金額を現在の日本円に換算します。

Usage:
  go run ./cmd/imaikura [command]

Examples:
  go run ./cmd/imaikura calc 1980 usd 100
  go run ./cmd/imaikura api
  go run ./cmd/imaikura rates --retry
  go run ./cmd/imaikura sitemap
  go run ./cmd/imaikura cpi convert cpi.csv cpi.json`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cpiDataPath, "cpi-data", "", "CPI data file (default is CPI_DATA_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
