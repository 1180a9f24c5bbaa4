package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/internal/rates"
)

// ratesCmd represents the rates command
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "為替レートの取得状況",
	Long: `為替レートを取得して状態を表示します。

取得に失敗した場合はフォールバックレートが使われます。
--retry はキャッシュを無視して再取得します。

Example:
  go run ./cmd/imaikura rates
  go run ./cmd/imaikura rates --retry`,
	RunE: runRates,
}

var ratesRetry bool

func init() {
	rootCmd.AddCommand(ratesCmd)

	ratesCmd.Flags().BoolVar(&ratesRetry, "retry", false, "キャッシュを無視して再取得")
}

func runRates(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var snap rates.Snapshot
	if ratesRetry {
		snap = a.service.Retry(ctx)
	} else {
		snap = a.service.Rates(ctx)
	}

	printSnapshot(snap)
	return nil
}

func printSnapshot(snap rates.Snapshot) {
	PrintHeader("Exchange Rates")
	PrintKeyValue("State", string(snap.State), 10)
	PrintKeyValue("Source", snap.Source, 10)
	PrintKeyValue("Retries", strconv.Itoa(snap.RetryCount), 10)
	if !snap.FetchedAt.IsZero() {
		PrintKeyValue("Fetched", snap.FetchedAt.Format("2006-01-02 15:04:05"), 10)
	}
	PrintSeparator()

	codes := make([]string, 0, len(snap.Rates))
	for code := range snap.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	widths := []int{8, 24, 14}
	PrintTableHeader([]string{"Code", "Name", "Value"}, widths)
	for _, code := range codes {
		r := snap.Rates[code]
		PrintTableRow([]string{code, r.Name, strconv.FormatFloat(r.Value, 'g', 6, 64)}, widths)
	}
	fmt.Println()

	if snap.UsingFallback {
		PrintWarning(inflation.FallbackWarning)
		if snap.Err != nil {
			PrintError(fmt.Sprintf("%s (%s)", snap.Err.Message, snap.Err.Kind))
		}
		return
	}
	PrintSuccess("Live rates")
}
