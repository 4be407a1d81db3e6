package commands

import (
	"github.com/spf13/cobra"
)

var (
	strategyFile string
	sourceName   string
	csvFile      string
	pricesDir    string
	tickerList   []string
	universeFile string
	outputPath   string
)

var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Equity factor screening and portfolio backtesting",
	Long: `screener computes fundamental factor scores over a ticker universe,
applies forensic exclusion gates, ranks the survivors into a composite
and either reports the cross-section or simulates the strategy over
history.

Process configuration (data sources, logging) comes from the
environment or a .env file. Strategy parameters come from a YAML file
passed with --strategy; without one the built-in defaults apply.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&strategyFile, "strategy", "s", "", "strategy YAML file (built-in defaults when omitted)")
	rootCmd.PersistentFlags().StringVar(&sourceName, "source", "csv", "data source: csv, http or postgres")
	rootCmd.PersistentFlags().StringVar(&csvFile, "csv-file", "fundamentals.csv", "fundamentals CSV path (csv source)")
	rootCmd.PersistentFlags().StringVar(&pricesDir, "prices-dir", "prices", "per-ticker price CSV directory (csv source)")
	rootCmd.PersistentFlags().StringSliceVar(&tickerList, "tickers", nil, "comma-separated ticker universe")
	rootCmd.PersistentFlags().StringVar(&universeFile, "universe-file", "", "file with one ticker per line")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "write the report here instead of stdout")
}
