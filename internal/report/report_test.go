package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescreen/internal/backtest"
	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/pipeline"
)

func sampleScreen() *pipeline.ScreenResult {
	factorsOf := func(ey float64) map[contracts.Factor]float64 {
		m := make(map[contracts.Factor]float64)
		for _, f := range contracts.AllFactors {
			m[f] = contracts.Missing()
		}
		m[contracts.FactorEarningsYield] = ey
		return m
	}
	return &pipeline.ScreenResult{
		AsOf:     time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Skipped:  1,
		Excluded: 1,
		Rows: []*pipeline.ScreenRow{
			{
				Ticker: "AAA", Name: "Alpha", Sector: "Tech",
				Price: 100, MarketCap: 5000, EnterpriseValue: 5500,
				Factors: factorsOf(0.12), Composite: 0.84, Rank: 1, GatePassed: true,
			},
			{
				Ticker: "BBB", Name: "Beta", Sector: "Energy",
				Price: 40, MarketCap: 1200, EnterpriseValue: contracts.Missing(),
				Factors:    factorsOf(0.05),
				GatePassed: false, GateReason: "trading_halt",
				Flags: []contracts.RiskFlag{contracts.FlagLowLiquidity},
			},
		},
	}
}

func TestWriteScreenCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScreenCSV(&buf, sampleScreen()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, "rank", header[0])
	assert.Equal(t, "ticker", header[1])
	assert.Contains(t, header, "earnings_yield")
	assert.Contains(t, header, "beneish_m")
	assert.Equal(t, "flags", header[len(header)-1])
	// Every row matches the header width.
	for _, r := range rows[1:] {
		assert.Len(t, r, len(header))
	}

	idx := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s not found", name)
		return -1
	}

	aaa := rows[1]
	assert.Equal(t, "1", aaa[idx("rank")])
	assert.Equal(t, "AAA", aaa[idx("ticker")])
	assert.Equal(t, "0.12", aaa[idx("earnings_yield")])
	assert.Equal(t, "true", aaa[idx("gate_passed")])

	bbb := rows[2]
	assert.Equal(t, "", bbb[idx("rank")], "gated names carry no rank")
	assert.Equal(t, "", bbb[idx("enterprise_value")], "missing is empty, not zero")
	assert.Equal(t, "", bbb[idx("composite_score")])
	assert.Equal(t, "trading_halt", bbb[idx("gate_reason")])
	assert.Equal(t, "low_liquidity", bbb[idx("flags")])
}

func TestWriteScreenMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScreenMarkdown(&buf, sampleScreen()))

	out := buf.String()
	assert.Contains(t, out, "# Screen 2025-06-30")
	assert.Contains(t, out, "2 names, 1 skipped, 1 gated out")
	assert.Contains(t, out, "| AAA |")
	assert.Contains(t, out, "| - |", "missing cells render as a dash")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Header, separator and one line per row share the same column count.
	var tableLines []string
	for _, l := range lines {
		if strings.HasPrefix(l, "|") {
			tableLines = append(tableLines, l)
		}
	}
	require.Len(t, tableLines, 4)
	want := strings.Count(tableLines[0], "|")
	for _, l := range tableLines {
		assert.Equal(t, want, strings.Count(l, "|"))
	}
}

func sampleBacktest() *backtest.Result {
	cfg := backtest.DefaultConfig()
	cfg.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.End = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	cfg.Benchmark = "SPY"
	return &backtest.Result{
		Config:     cfg,
		ConfigHash: "abc123",
		Periods: []*backtest.Period{
			{
				AsOf:     time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
				FillDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
				State:    backtest.StateExecuted,
				Holdings: map[string]float64{"AAA": 0.6, "BBB": 0.4},
				Turnover: 1.0, Cost: 0.0015,
				GrossReturn: 0.03, NetReturn: 0.0285, BenchmarkReturn: 0.01,
			},
			{
				AsOf:     time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
				FillDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
				State:    backtest.StateDegraded,
				Degraded: true,
				Reason:   "snapshot failed: no visible records at 2024-06-28",
				Holdings: map[string]float64{"AAA": 0.6, "BBB": 0.4},
			},
		},
		Metrics: backtest.Metrics{
			Periods: 2, DegradedPeriods: 1, CumulativeReturn: 0.0285, Sharpe: 1.1,
			BenchmarkReturn: 0.01, ExcessReturn: 0.0185,
		},
	}
}

func TestWriteBacktestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBacktestCSV(&buf, sampleBacktest()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "reason", rows[0][len(rows[0])-1])
	assert.Equal(t, "2024-03-29", rows[1][0])
	assert.Equal(t, "2024-04-01", rows[1][1])
	assert.Equal(t, "executed", rows[1][2])
	assert.Equal(t, "2", rows[1][3])
	assert.Equal(t, "", rows[1][len(rows[1])-1])

	// The degraded date carries its cause into the report.
	assert.Equal(t, "degraded", rows[2][2])
	assert.Equal(t, "snapshot failed: no visible records at 2024-06-28", rows[2][len(rows[2])-1])
}

func TestWriteBacktestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBacktestJSON(&buf, sampleBacktest()))

	out := buf.String()
	assert.Contains(t, out, `"config_hash": "abc123"`)
	assert.Contains(t, out, `"cumulative_return": 0.0285`)
	assert.Contains(t, out, `"state": "executed"`)
	assert.Contains(t, out, `"reason": "snapshot failed: no visible records at 2024-06-28"`)
}

func TestWriteBacktestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBacktestSummary(&buf, sampleBacktest()))

	out := buf.String()
	assert.Contains(t, out, "Strategy hash: abc123")
	assert.Contains(t, out, "Cumulative return:  2.85%")
	assert.Contains(t, out, "Benchmark return:   1.00% (SPY)")
	assert.Contains(t, out, "Degraded dates:")
	assert.Contains(t, out, "2024-06-28  snapshot failed: no visible records at 2024-06-28")
	// Final book sorted by weight descending.
	aaa := strings.Index(out, "AAA")
	bbb := strings.Index(out, "BBB")
	require.Positive(t, aaa)
	require.Positive(t, bbb)
	assert.Less(t, aaa, bbb)
}
