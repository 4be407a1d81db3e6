package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescreen/internal/report"
)

var (
	screenAsOf   string
	screenFormat string
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run the factor screen at one date",
	Long: `screen fetches fundamentals and prices for the universe, computes
the factor cross-section as of the given date and writes the ranked
report. Names that trip a hard gate appear unranked at the bottom with
the exclusion reason.`,
	RunE: runScreen,
}

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&screenAsOf, "asof", "", "valuation date, YYYY-MM-DD (default today)")
	screenCmd.Flags().StringVar(&screenFormat, "format", "markdown", "report format: markdown or csv")
}

func runScreen(cmd *cobra.Command, _ []string) error {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if screenAsOf != "" {
		var err error
		if asOf, err = time.Parse("2006-01-02", screenAsOf); err != nil {
			return fmt.Errorf("parse --asof: %w", err)
		}
	}

	ctx := cmd.Context()
	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tickers, err := resolveTickers()
	if err != nil {
		return err
	}
	runner, err := a.buildRunner(tickers)
	if err != nil {
		return err
	}

	res, err := runner.Screen(ctx, asOf)
	if err != nil {
		return err
	}

	out, err := openOutput()
	if err != nil {
		return err
	}
	defer out.Close()

	switch screenFormat {
	case "csv":
		return report.WriteScreenCSV(out, res)
	case "markdown", "md":
		return report.WriteScreenMarkdown(out, res)
	default:
		return fmt.Errorf("unknown format %q, want markdown or csv", screenFormat)
	}
}
