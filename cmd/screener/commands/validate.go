package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescreen/internal/strategy"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a strategy file without running anything",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	path := strategyFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("provide a strategy file as an argument or with --strategy")
	}

	strat, err := strategy.Load(path)
	if err != nil {
		var verr *strategy.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s: field %s: %s", path, verr.Field, verr.Message)
		}
		return err
	}

	scoring := strat.ScoringConfig()
	fmt.Printf("%s: ok\n", path)
	fmt.Printf("  name:    %s\n", strat.Name)
	fmt.Printf("  hash:    %s\n", strat.Hash())
	fmt.Printf("  factors: %d weighted\n", len(scoring.Weights))
	fmt.Printf("  top:     %.0f%% with %.0f%% band, %s rebalance\n",
		strat.Portfolio.TopPct*100, strat.Portfolio.BandSigma*100, strat.Portfolio.Rebalance)
	return nil
}
