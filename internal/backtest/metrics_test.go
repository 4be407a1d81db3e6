package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func periodsFromReturns(returns []float64) []*Period {
	out := make([]*Period, len(returns))
	for i, r := range returns {
		out[i] = &Period{NetReturn: r, Turnover: 0.2, Cost: 0.0003}
	}
	return out
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := computeMetrics(nil, 12)
	assert.Equal(t, 0, m.Periods)
	assert.Equal(t, 0.0, m.CumulativeReturn)
}

func TestCumulativeAndAnnualized(t *testing.T) {
	// 12 months of +1% compounds to (1.01)^12 - 1, annualizing back to it.
	returns := make([]float64, 12)
	for i := range returns {
		returns[i] = 0.01
	}
	m := computeMetrics(periodsFromReturns(returns), 12)

	want := math.Pow(1.01, 12) - 1
	assert.InDelta(t, want, m.CumulativeReturn, 1e-12)
	assert.InDelta(t, want, m.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0, m.AnnualizedVol, 1e-12, "constant returns have no vol")
	assert.InDelta(t, 0.2, m.AvgTurnover, 1e-12)
	assert.InDelta(t, 12*0.0003, m.TotalCosts, 1e-12)
}

func TestSharpeSign(t *testing.T) {
	up := computeMetrics(periodsFromReturns([]float64{0.02, 0.01, 0.03, -0.01}), 12)
	down := computeMetrics(periodsFromReturns([]float64{-0.02, -0.01, -0.03, 0.01}), 12)
	assert.Greater(t, up.Sharpe, 0.0)
	assert.Less(t, down.Sharpe, 0.0)
	assert.Greater(t, up.Sortino, 0.0)
}

func TestMaxDrawdown(t *testing.T) {
	// Rise to 1.1, fall to 1.1*0.9*0.95, recover.
	dd, length := maxDrawdown([]float64{0.10, -0.10, -0.05, 0.20})
	assert.InDelta(t, 1-0.9*0.95, dd, 1e-12)
	assert.Equal(t, 2, length)

	dd, length = maxDrawdown([]float64{0.01, 0.02, 0.03})
	assert.Equal(t, 0.0, dd)
	assert.Equal(t, 0, length)
}

func TestExcessVsBenchmark(t *testing.T) {
	periods := []*Period{
		{NetReturn: 0.02, BenchmarkReturn: 0.01},
		{NetReturn: 0.03, BenchmarkReturn: 0.01},
	}
	m := computeMetrics(periods, 4)
	assert.InDelta(t, 1.02*1.03-1, m.CumulativeReturn, 1e-12)
	assert.InDelta(t, 1.01*1.01-1, m.BenchmarkReturn, 1e-12)
	assert.InDelta(t, m.CumulativeReturn-m.BenchmarkReturn, m.ExcessReturn, 1e-12)
}

func TestDegradedPeriodsCounted(t *testing.T) {
	periods := []*Period{
		{NetReturn: 0.01},
		{NetReturn: 0, Degraded: true},
		{NetReturn: 0.01},
	}
	m := computeMetrics(periods, 12)
	assert.Equal(t, 1, m.DegradedPeriods)
}
