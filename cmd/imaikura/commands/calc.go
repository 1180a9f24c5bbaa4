package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/creco/imaikura/internal/inflation"
)

// calcCmd represents the calc command
var calcCmd = &cobra.Command{
	Use:   "calc <year> <currency> <amount>",
	Short: "今いくらかを計算",
	Long: `指定した年・通貨・金額を現在の日本円に換算します。

通貨: jpy, usd, gbp, eur

Example:
  go run ./cmd/imaikura calc 1980 usd 100
  go run ./cmd/imaikura calc 1964 jpy 1000 --json`,
	Args: cobra.ExactArgs(3),
	RunE: runCalc,
}

var calcJSON bool

func init() {
	rootCmd.AddCommand(calcCmd)

	calcCmd.Flags().BoolVar(&calcJSON, "json", false, "JSON で出力")
}

func runCalc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.loadCPI(ctx); err != nil {
		return err
	}

	req := inflation.Request{Year: args[0], Currency: args[1], Amount: args[2]}
	out := a.service.Calculate(ctx, req)

	if calcJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if !out.Succeeded() {
			return fmt.Errorf("calculation failed: %s", out.Failure.Kind)
		}
		return nil
	}

	PrintHeader(fmt.Sprintf("%s年の%s%s", req.Year, req.Amount, inflation.CurrencyLabel(req.Currency)))

	if !out.Succeeded() {
		PrintError(out.Failure.Message)
		return fmt.Errorf("calculation failed: %s", out.Failure.Kind)
	}

	PrintSuccess("今の価値で " + out.ResultStatement)
	if out.Warning != "" {
		PrintWarning(out.Warning)
	}

	PrintSeparator()
	fmt.Println(out.ShareStatement)
	return nil
}
