package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescreen/internal/backtest"
	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/portfolio"
	"github.com/wonny/valuescreen/internal/report"
)

var (
	backtestFrom   string
	backtestTo     string
	backtestFormat string
)

// priceWindowSlack pads the fetched price range so the first momentum
// lookback and the last T+1 fill both land inside the series.
const priceWindowSlack = 14

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate the strategy over a date range",
	Long: `backtest walks the rebalance schedule between the start and end
dates, re-runs the screen at each date with only the data that was
visible then, fills the book one trading day later and accounts for
costs. Dates where data is unavailable hold the prior book and are
marked degraded.`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "start date, YYYY-MM-DD (overrides the strategy file)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "end date, YYYY-MM-DD (overrides the strategy file)")
	backtestCmd.Flags().StringVar(&backtestFormat, "format", "summary", "report format: summary, json or csv")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	simCfg, err := a.strat.BacktestSimConfig()
	if err != nil {
		return fmt.Errorf("strategy backtest section: %w", err)
	}
	if backtestFrom != "" {
		if simCfg.Start, err = time.Parse("2006-01-02", backtestFrom); err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
	}
	if backtestTo != "" {
		if simCfg.End, err = time.Parse("2006-01-02", backtestTo); err != nil {
			return fmt.Errorf("parse --to: %w", err)
		}
	}

	tickers, err := resolveTickers()
	if err != nil {
		return err
	}
	runner, err := a.buildRunner(tickers)
	if err != nil {
		return err
	}
	ctor, err := portfolio.New(a.strat.PortfolioConstructorConfig(), a.log)
	if err != nil {
		return err
	}
	sim, err := backtest.NewSimulator(simCfg, ctor, a.log)
	if err != nil {
		return err
	}

	from := simCfg.Start.AddDate(0, 0, -priceWindowSlack)
	to := simCfg.End.AddDate(0, 0, priceWindowSlack)
	prices, err := a.source.FetchPrices(ctx, tickers, from, to)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	var benchmark *contracts.PriceHistory
	if simCfg.Benchmark != "" {
		series, err := a.source.FetchPrices(ctx, []string{simCfg.Benchmark}, from, to)
		if err != nil {
			return fmt.Errorf("fetch benchmark %s: %w", simCfg.Benchmark, err)
		}
		benchmark = series[simCfg.Benchmark]
		if benchmark == nil {
			a.log.WithField("benchmark", simCfg.Benchmark).Warn("benchmark series unavailable")
		}
	}

	res, err := sim.Run(ctx, runner, prices, benchmark)
	if err != nil {
		return err
	}
	res.ConfigHash = a.strat.Hash()

	out, err := openOutput()
	if err != nil {
		return err
	}
	defer out.Close()

	switch backtestFormat {
	case "summary":
		return report.WriteBacktestSummary(out, res)
	case "json":
		return report.WriteBacktestJSON(out, res)
	case "csv":
		return report.WriteBacktestCSV(out, res)
	default:
		return fmt.Errorf("unknown format %q, want summary, json or csv", backtestFormat)
	}
}
