package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/wonny/valuescreen/internal/backtest"
)

// WriteBacktestJSON writes the full run artifact: config, every period and
// the final metrics.
func WriteBacktestJSON(w io.Writer, res *backtest.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteBacktestCSV writes the period series as CSV, one row per rebalance
// interval.
func WriteBacktestCSV(w io.Writer, res *backtest.Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"as_of", "fill_date", "state", "names", "turnover",
		"cost", "gross_return", "net_return", "benchmark_return", "reason",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range res.Periods {
		row := []string{
			p.AsOf.Format("2006-01-02"),
			p.FillDate.Format("2006-01-02"),
			string(p.State),
			strconv.Itoa(len(p.Holdings)),
			formatFloat(p.Turnover),
			formatFloat(p.Cost),
			formatFloat(p.GrossReturn),
			formatFloat(p.NetReturn),
			formatFloat(p.BenchmarkReturn),
			p.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write period %s: %w", p.AsOf.Format("2006-01-02"), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBacktestSummary writes a human-readable recap of the run.
func WriteBacktestSummary(w io.Writer, res *backtest.Result) error {
	m := res.Metrics
	fmt.Fprintf(w, "Backtest %s to %s (%s)\n",
		res.Config.Start.Format("2006-01-02"),
		res.Config.End.Format("2006-01-02"),
		res.Config.Rebalance)
	if res.ConfigHash != "" {
		fmt.Fprintf(w, "Strategy hash: %s\n", res.ConfigHash)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Periods:            %d (%d degraded)\n", m.Periods, m.DegradedPeriods)
	fmt.Fprintf(w, "Cumulative return:  %.2f%%\n", m.CumulativeReturn*100)
	fmt.Fprintf(w, "Annualized return:  %.2f%%\n", m.AnnualizedReturn*100)
	fmt.Fprintf(w, "Annualized vol:     %.2f%%\n", m.AnnualizedVol*100)
	fmt.Fprintf(w, "Sharpe:             %.2f\n", m.Sharpe)
	fmt.Fprintf(w, "Sortino:            %.2f\n", m.Sortino)
	fmt.Fprintf(w, "Max drawdown:       %.2f%% (%d periods underwater)\n", m.MaxDrawdown*100, m.DrawdownPeriods)
	fmt.Fprintf(w, "Avg turnover:       %.2f%%\n", m.AvgTurnover*100)
	fmt.Fprintf(w, "Total costs:        %.4f%%\n", m.TotalCosts*100)
	if res.Config.Benchmark != "" {
		fmt.Fprintf(w, "Benchmark return:   %.2f%% (%s)\n", m.BenchmarkReturn*100, res.Config.Benchmark)
		fmt.Fprintf(w, "Excess return:      %.2f%%\n", m.ExcessReturn*100)
	}

	var degraded []*backtest.Period
	for _, p := range res.Periods {
		if p.Degraded {
			degraded = append(degraded, p)
		}
	}
	if len(degraded) > 0 {
		fmt.Fprintln(w, "\nDegraded dates:")
		for _, p := range degraded {
			fmt.Fprintf(w, "  %s  %s\n", p.AsOf.Format("2006-01-02"), p.Reason)
		}
	}

	if len(res.Periods) > 0 {
		last := res.Periods[len(res.Periods)-1]
		fmt.Fprintf(w, "\nFinal book (%s), %d names:\n", last.AsOf.Format("2006-01-02"), len(last.Holdings))
		for _, tk := range sortedByWeight(last.Holdings) {
			fmt.Fprintf(w, "  %-8s %6.2f%%\n", tk, last.Holdings[tk]*100)
		}
	}
	return nil
}

func sortedByWeight(weights map[string]float64) []string {
	out := make([]string, 0, len(weights))
	for t := range weights {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if weights[out[i]] != weights[out[j]] {
			return weights[out[i]] > weights[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
