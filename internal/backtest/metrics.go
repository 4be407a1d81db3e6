package backtest

import "math"

// Metrics is the performance summary of a finished run. All figures derive
// from the net period return series; nothing here is recomputed mid-run.
type Metrics struct {
	CumulativeReturn  float64 `json:"cumulative_return"`
	AnnualizedReturn  float64 `json:"annualized_return"`
	AnnualizedVol     float64 `json:"annualized_vol"`
	Sharpe            float64 `json:"sharpe"`
	Sortino           float64 `json:"sortino"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	DrawdownPeriods   int     `json:"drawdown_periods"`
	AvgTurnover       float64 `json:"avg_turnover"`
	TotalCosts        float64 `json:"total_costs"`
	ExcessReturn      float64 `json:"excess_return"` // cumulative, vs benchmark
	BenchmarkReturn   float64 `json:"benchmark_return"`
	Periods           int     `json:"periods"`
	DegradedPeriods   int     `json:"degraded_periods"`
}

// computeMetrics folds the period results into the summary. periodsPerYear
// is the annualization factor of the rebalance frequency.
func computeMetrics(periods []*Period, periodsPerYear float64) Metrics {
	m := Metrics{Periods: len(periods)}
	if len(periods) == 0 {
		return m
	}

	returns := make([]float64, len(periods))
	bench := make([]float64, len(periods))
	for i, p := range periods {
		returns[i] = p.NetReturn
		bench[i] = p.BenchmarkReturn
		m.AvgTurnover += p.Turnover
		m.TotalCosts += p.Cost
		if p.Degraded {
			m.DegradedPeriods++
		}
	}
	m.AvgTurnover /= float64(len(periods))

	m.CumulativeReturn = compound(returns)
	m.BenchmarkReturn = compound(bench)
	m.ExcessReturn = m.CumulativeReturn - m.BenchmarkReturn

	years := float64(len(returns)) / periodsPerYear
	if years > 0 && m.CumulativeReturn > -1 {
		m.AnnualizedReturn = math.Pow(1+m.CumulativeReturn, 1/years) - 1
	}

	mu := mean(returns)
	sd := stddev(returns, mu)
	m.AnnualizedVol = sd * math.Sqrt(periodsPerYear)
	if sd > 0 {
		m.Sharpe = mu / sd * math.Sqrt(periodsPerYear)
	}
	if dd := downsideDev(returns); dd > 0 {
		m.Sortino = mu / dd * math.Sqrt(periodsPerYear)
	}

	m.MaxDrawdown, m.DrawdownPeriods = maxDrawdown(returns)
	return m
}

func compound(returns []float64) float64 {
	wealth := 1.0
	for _, r := range returns {
		wealth *= 1 + r
	}
	return wealth - 1
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, mu float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func downsideDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	ss := 0.0
	for _, x := range xs {
		if x < 0 {
			ss += x * x
		}
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// maxDrawdown returns the deepest peak-to-trough loss as a positive number
// and the length of the longest underwater stretch in periods.
func maxDrawdown(returns []float64) (float64, int) {
	wealth := 1.0
	peak := 1.0
	maxDD := 0.0
	underwater := 0
	longest := 0
	for _, r := range returns {
		wealth *= 1 + r
		if wealth >= peak {
			peak = wealth
			underwater = 0
		} else {
			underwater++
			if underwater > longest {
				longest = underwater
			}
			if dd := 1 - wealth/peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, longest
}
