package factors

import "github.com/wonny/valuescreen/internal/contracts"

const (
	defaultTaxRate = 0.25
	maxTaxRate     = 0.45
)

// grossProfitability is gross profit scaled by total assets.
func grossProfitability(r *contracts.FundamentalRecord) float64 {
	if !valid(r.GrossProfit, r.TotalAssets) || r.TotalAssets <= 0 {
		return contracts.Missing()
	}
	return r.GrossProfit / r.TotalAssets
}

// effectiveTaxRate is tax expense over pretax income, clipped to [0, 0.45].
// Falls back to a flat rate when the inputs are unusable.
func effectiveTaxRate(r *contracts.FundamentalRecord) float64 {
	if !valid(r.TaxExpense, r.PretaxIncome) || r.PretaxIncome <= 0 {
		return defaultTaxRate
	}
	rate := r.TaxExpense / r.PretaxIncome
	if rate < 0 {
		return 0
	}
	if rate > maxTaxRate {
		return maxTaxRate
	}
	return rate
}

// roic is after-tax operating profit over invested capital
// (debt + equity - cash). Invested capital must be strictly positive.
func roic(r *contracts.FundamentalRecord) float64 {
	if !valid(r.EBIT, r.TotalDebt, r.TotalEquity, r.Cash) {
		return contracts.Missing()
	}
	invested := r.TotalDebt + r.TotalEquity - r.Cash
	if invested <= 0 {
		return contracts.Missing()
	}
	nopat := r.EBIT * (1 - effectiveTaxRate(r))
	return nopat / invested
}

// interestCoverage is EBIT over the absolute interest expense. Zero interest
// expense yields missing rather than infinity; the gates treat a missing
// coverage as not-flagged.
func interestCoverage(r *contracts.FundamentalRecord) float64 {
	if !valid(r.EBIT, r.InterestExpense) || r.InterestExpense == 0 {
		return contracts.Missing()
	}
	ie := r.InterestExpense
	if ie < 0 {
		ie = -ie
	}
	return r.EBIT / ie
}

// netDebtEBITDA is (debt - cash) over EBITDA. The ratio expects a positive
// scale; zero or negative EBITDA yields missing, never a sign-flipped
// leverage figure.
func netDebtEBITDA(r *contracts.FundamentalRecord) float64 {
	if !valid(r.TotalDebt, r.Cash, r.EBITDA) || r.EBITDA <= 0 {
		return contracts.Missing()
	}
	return (r.TotalDebt - r.Cash) / r.EBITDA
}
