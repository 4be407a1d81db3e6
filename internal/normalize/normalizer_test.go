package normalize

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

func vectorWith(ticker string, f contracts.Factor, v float64) *contracts.FactorVector {
	vec := contracts.NewFactorVector(ticker)
	vec.Values[f] = v
	return vec
}

func sameGroup(tickers ...string) map[string]contracts.GroupKey {
	g := contracts.GroupKey{Sector: "Tech", SizeBucket: "large"}
	m := make(map[string]contracts.GroupKey)
	for _, t := range tickers {
		m[t] = g
	}
	return m
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.WinsorizePct = 0.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.GroupBy = "zipcode"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MinGroup = 0
	assert.Error(t, cfg.Validate())
}

func TestZScoresCenterAndScale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WinsorizePct = 0 // exact z-scores for the assertion
	n, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	var vectors []*contracts.FactorVector
	var tickers []string
	for i := 0; i < 20; i++ {
		tk := fmt.Sprintf("T%02d", i)
		tickers = append(tickers, tk)
		vectors = append(vectors, vectorWith(tk, contracts.FactorEarningsYield, float64(i)))
	}

	out := n.Normalize(vectors, sameGroup(tickers...))
	require.Len(t, out, 20)

	var sum, ss float64
	for _, v := range out {
		z := v.ZScores[contracts.FactorEarningsYield]
		sum += z
		ss += z * z
	}
	mean := sum / 20
	std := math.Sqrt((ss - 20*mean*mean) / 19)
	assert.InDelta(t, 0, mean, 1e-9)
	assert.InDelta(t, 1, std, 1e-9)
}

func TestSmallerIsBetterFlipped(t *testing.T) {
	n, err := New(DefaultConfig(), logger.NewNop())
	require.NoError(t, err)

	var vectors []*contracts.FactorVector
	var tickers []string
	for i := 0; i < 10; i++ {
		tk := fmt.Sprintf("T%02d", i)
		tickers = append(tickers, tk)
		vectors = append(vectors, vectorWith(tk, contracts.FactorAccruals, float64(i)))
	}

	out := n.Normalize(vectors, sameGroup(tickers...))

	// Lowest accruals must come out with the highest z.
	low := out[0].ZScores[contracts.FactorAccruals]
	high := out[len(out)-1].ZScores[contracts.FactorAccruals]
	assert.Greater(t, low, 0.0)
	assert.Less(t, high, 0.0)
}

func TestMissingGetsPenaltyNotZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MissingPenalty = -0.2
	n, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	vectors := []*contracts.FactorVector{
		vectorWith("AAA", contracts.FactorEarningsYield, 0.05),
		vectorWith("BBB", contracts.FactorEarningsYield, 0.10),
		vectorWith("CCC", contracts.FactorEarningsYield, 0.15),
		vectorWith("DDD", contracts.FactorEarningsYield, 0.20),
		vectorWith("EEE", contracts.FactorEarningsYield, 0.25),
		contracts.NewFactorVector("FFF"), // everything missing
	}

	out := n.Normalize(vectors, sameGroup("AAA", "BBB", "CCC", "DDD", "EEE", "FFF"))
	require.Equal(t, "FFF", out[5].Ticker)
	assert.InDelta(t, -0.2, out[5].ZScores[contracts.FactorEarningsYield], 1e-12)
	// Every factor of the empty vector carries the penalty.
	for _, f := range contracts.AllFactors {
		assert.InDelta(t, -0.2, out[5].ZScores[f], 1e-12, "factor %s", f)
	}
}

func TestSmallGroupFallsBackToUniverse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinGroup = 5
	n, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	groups := map[string]contracts.GroupKey{
		"TINY1": {Sector: "Utilities", SizeBucket: "small"},
		"TINY2": {Sector: "Utilities", SizeBucket: "small"},
	}
	var vectors []*contracts.FactorVector
	vectors = append(vectors,
		vectorWith("TINY1", contracts.FactorROIC, 0.30),
		vectorWith("TINY2", contracts.FactorROIC, 0.02),
	)
	for i := 0; i < 8; i++ {
		tk := fmt.Sprintf("BIG%d", i)
		groups[tk] = contracts.GroupKey{Sector: "Tech", SizeBucket: "large"}
		vectors = append(vectors, vectorWith(tk, contracts.FactorROIC, 0.05+0.01*float64(i)))
	}

	out := n.Normalize(vectors, groups)

	var tiny *contracts.NormalizedFactorVector
	for _, v := range out {
		if v.Ticker == "TINY1" {
			tiny = v
		}
	}
	require.NotNil(t, tiny)
	s := tiny.Stats[contracts.FactorROIC]
	assert.True(t, s.Fallback)
	assert.Equal(t, 10, s.Size, "fallback stats cover the full universe")
}

func TestOutputOrderedByTicker(t *testing.T) {
	n, err := New(DefaultConfig(), logger.NewNop())
	require.NoError(t, err)

	vectors := []*contracts.FactorVector{
		contracts.NewFactorVector("ZZZ"),
		contracts.NewFactorVector("MMM"),
		contracts.NewFactorVector("AAA"),
	}
	out := n.Normalize(vectors, sameGroup("ZZZ", "MMM", "AAA"))
	require.Len(t, out, 3)
	assert.Equal(t, "AAA", out[0].Ticker)
	assert.Equal(t, "MMM", out[1].Ticker)
	assert.Equal(t, "ZZZ", out[2].Ticker)
}
