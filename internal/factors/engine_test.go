package factors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

func testRecord() *contracts.FundamentalRecord {
	return &contracts.FundamentalRecord{
		Ticker:             "ACME",
		Sector:             "Industrials",
		SizeBucket:         "mid",
		Price:              50,
		MarketCap:          1000,
		EnterpriseValue:    contracts.Missing(),
		TotalDebt:          300,
		Cash:               100,
		TotalEquity:        400,
		EBIT:               120,
		EBITDA:             150,
		GrossProfit:        200,
		Revenue:            800,
		OperatingCashFlow:  110,
		CapEx:              40,
		PretaxIncome:       100,
		TaxExpense:         25,
		InterestExpense:    20,
		NetIncome:          75,
		TotalAssets:        900,
		SharesOutstanding:  20,
		WorkingCapital:     contracts.Missing(),
		RetainedEarnings:   250,
		CurrentAssets:      350,
		CurrentLiabilities: 200,
		Receivables:        90,
		SGAExpense:         60,
		Depreciation:       30,
		ReportingDate:      time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		FilingDate:         time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
	}
}

func asOf() time.Time {
	return time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
}

func TestEarningsYield(t *testing.T) {
	r := testRecord()
	// EV derived: 1000 + 300 - 100 = 1200.
	assert.InDelta(t, 120.0/1200.0, earningsYield(r), 1e-12)

	r.EnterpriseValue = 1000
	assert.InDelta(t, 0.12, earningsYield(r), 1e-12)

	// Non-positive EV is not a yield.
	r.EnterpriseValue = -50
	assert.True(t, contracts.IsMissing(earningsYield(r)))

	r = testRecord()
	r.EBIT = contracts.Missing()
	assert.True(t, contracts.IsMissing(earningsYield(r)))
}

func TestFCFYield(t *testing.T) {
	r := testRecord()
	assert.InDelta(t, (110.0-40.0)/1000.0, fcfYield(r), 1e-12)

	r.CapEx = contracts.Missing()
	assert.True(t, contracts.IsMissing(fcfYield(r)))
}

func TestBookToMarket(t *testing.T) {
	r := testRecord()
	assert.InDelta(t, 0.4, bookToMarket(r), 1e-12)

	// Negative equity passes through; the cross-section handles it.
	r.TotalEquity = -100
	assert.InDelta(t, -0.1, bookToMarket(r), 1e-12)
}

func TestROIC(t *testing.T) {
	r := testRecord()
	// Tax rate 25/100 = 0.25, NOPAT = 120*0.75 = 90, invested = 300+400-100 = 600.
	assert.InDelta(t, 90.0/600.0, roic(r), 1e-12)

	// Tax rate clipped at 0.45.
	r.TaxExpense = 80
	assert.InDelta(t, 120*0.55/600.0, roic(r), 1e-12)

	// Unusable tax inputs fall back to the flat rate.
	r.PretaxIncome = contracts.Missing()
	assert.InDelta(t, 90.0/600.0, roic(r), 1e-12)

	// Non-positive invested capital.
	r = testRecord()
	r.Cash = 800
	assert.True(t, contracts.IsMissing(roic(r)))
}

func TestInterestCoverage(t *testing.T) {
	r := testRecord()
	assert.InDelta(t, 6.0, interestCoverage(r), 1e-12)

	// Sign convention of the source does not matter.
	r.InterestExpense = -20
	assert.InDelta(t, 6.0, interestCoverage(r), 1e-12)

	r.InterestExpense = 0
	assert.True(t, contracts.IsMissing(interestCoverage(r)))
}

func TestNetDebtEBITDA(t *testing.T) {
	r := testRecord()
	assert.InDelta(t, 200.0/150.0, netDebtEBITDA(r), 1e-12)

	r.EBITDA = 0
	assert.True(t, contracts.IsMissing(netDebtEBITDA(r)))

	// Negative EBITDA would flip the ratio's sign and reward distress.
	r.EBITDA = -150
	assert.True(t, contracts.IsMissing(netDebtEBITDA(r)))
}

func TestAccrualsAndNOA(t *testing.T) {
	r := testRecord()
	assert.InDelta(t, (75.0-110.0)/900.0, accruals(r), 1e-12)
	assert.InDelta(t, 800.0/900.0, noaRatio(r), 1e-12)

	// Net income derived from pretax - tax when absent.
	r.NetIncome = contracts.Missing()
	assert.InDelta(t, (75.0-110.0)/900.0, accruals(r), 1e-12)
}

func TestRiskFlags(t *testing.T) {
	r := testRecord()
	// Coverage 6 ok, D/E 0.75 ok, current ratio 1.75 ok.
	assert.Equal(t, 0.0, riskFlags(r))

	r.InterestExpense = 60 // coverage 2 < 2.5
	r.TotalDebt = 500      // D/E 1.25 > 1
	r.CurrentLiabilities = 400
	assert.Equal(t, 3.0, riskFlags(r))

	// One signal uncomputable: the others still count.
	r.InterestExpense = contracts.Missing()
	assert.Equal(t, 2.0, riskFlags(r))

	// Nothing computable at all.
	r.TotalDebt = contracts.Missing()
	r.CurrentAssets = contracts.Missing()
	assert.True(t, contracts.IsMissing(riskFlags(r)))
}

func TestInvestmentFactors(t *testing.T) {
	r := testRecord()
	assert.True(t, contracts.IsMissing(assetGrowth(r)), "no prior period")
	assert.True(t, contracts.IsMissing(netIssuance(r)))

	r.Prior = &contracts.PriorFundamentals{
		TotalAssets:       750,
		SharesOutstanding: 25,
	}
	assert.InDelta(t, 900.0/750.0-1, assetGrowth(r), 1e-12)
	assert.InDelta(t, 20.0/25.0-1, netIssuance(r), 1e-12)
}

func TestMomentum12M1M(t *testing.T) {
	h := &contracts.PriceHistory{Ticker: "ACME", Points: []contracts.PricePoint{
		{Date: time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), Close: 40},
		{Date: time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), Close: 50},
		{Date: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Close: 44},
	}}

	// Skips the latest month: 40 -> 50, not 40 -> 44.
	m := momentum12M1M(h, asOf())
	assert.InDelta(t, 0.25, m, 1e-12)

	assert.True(t, contracts.IsMissing(momentum12M1M(nil, asOf())))
}

func TestFScore(t *testing.T) {
	r := testRecord()
	// Without a prior period only the three current criteria can score:
	// ROA > 0, OCF > 0, OCF > NI.
	assert.Equal(t, 3.0, fscore(r))

	r.Prior = &contracts.PriorFundamentals{
		TotalAssets:        750,
		SharesOutstanding:  25,
		Revenue:            700,
		GrossProfit:        150,
		TotalDebt:          300,
		CurrentAssets:      280,
		CurrentLiabilities: 200,
		NetIncome:          50,
		OperatingCashFlow:  80,
	}
	// Prior ROA 50/750 ≈ 0.0667 < 75/900 ≈ 0.0833: delta ROA point.
	// Leverage 300/900 < 300/750: point. Current ratio 1.75 > 1.4: point.
	// Shares 20 <= 25: point. Margin 200/800 > 150/700: point.
	// Turnover 800/900 < 700/750: no point.
	assert.Equal(t, 8.0, fscore(r))
}

func TestBeneishM(t *testing.T) {
	r := testRecord()
	// No prior period: all indices neutral, only TATA varies.
	// M = -4.84 + 0.92 + 0.528 + 0.404 + 0.892 + 0.115 - 0.172 - 0.327
	//     + 4.679 * (75-110)/900
	tata := (75.0 - 110.0) / 900.0
	want := -4.84 + 0.92 + 0.528 + 0.404 + 0.892 + 0.115 - 0.172 - 0.327 + 4.679*tata
	assert.InDelta(t, want, beneishM(r), 1e-9)

	// TATA uncomputable: the score is uncomputable.
	r.OperatingCashFlow = contracts.Missing()
	assert.True(t, contracts.IsMissing(beneishM(r)))

	// Revenue doubling shows up through SGI; everything else about the
	// prior period stays unknown and the other indices stay neutral.
	r = testRecord()
	prior := emptyPrior()
	prior.Revenue = 400
	r.Prior = prior
	grown := beneishM(r)
	require.False(t, contracts.IsMissing(grown))
	assert.InDelta(t, want+0.892, grown, 1e-9)
}

// emptyPrior returns a prior period with every field unknown.
func emptyPrior() *contracts.PriorFundamentals {
	m := contracts.Missing()
	return &contracts.PriorFundamentals{
		TotalAssets:        m,
		SharesOutstanding:  m,
		Revenue:            m,
		Receivables:        m,
		GrossProfit:        m,
		SGAExpense:         m,
		Depreciation:       m,
		TotalDebt:          m,
		TotalEquity:        m,
		CurrentAssets:      m,
		CurrentLiabilities: m,
		NetIncome:          m,
		OperatingCashFlow:  m,
	}
}

func TestAltmanZ(t *testing.T) {
	r := testRecord()
	// WC falls back to 350-200 = 150, TL to 900-400 = 500.
	want := 1.2*(150.0/900.0) + 1.4*(250.0/900.0) + 3.3*(120.0/900.0) +
		0.6*(1000.0/500.0) + 1.0*(800.0/900.0)
	assert.InDelta(t, want, altmanZ(r), 1e-9)

	r.RetainedEarnings = contracts.Missing()
	assert.True(t, contracts.IsMissing(altmanZ(r)))
}

func TestComputeIsolation(t *testing.T) {
	e := New(logger.NewNop())
	r := testRecord()
	r.EBITDA = contracts.Missing() // poisons net_debt_ebitda only

	v := e.Compute(r, nil, asOf())
	require.Len(t, v.Values, len(contracts.AllFactors))

	assert.True(t, contracts.IsMissing(v.Get(contracts.FactorNetDebtEBITDA)))
	assert.False(t, contracts.IsMissing(v.Get(contracts.FactorEarningsYield)))
	assert.False(t, contracts.IsMissing(v.Get(contracts.FactorROIC)))
	assert.False(t, contracts.IsMissing(v.Get(contracts.FactorAltmanZ)))
}
