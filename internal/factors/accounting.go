package factors

import "github.com/wonny/valuescreen/internal/contracts"

// accruals is the accrual component of earnings, (net income - operating
// cash flow) over total assets. High accruals mean earnings outrun cash.
func accruals(r *contracts.FundamentalRecord) float64 {
	ni := r.DerivedNetIncome()
	if !valid(ni, r.OperatingCashFlow, r.TotalAssets) || r.TotalAssets <= 0 {
		return contracts.Missing()
	}
	return (ni - r.OperatingCashFlow) / r.TotalAssets
}

// noaRatio approximates net operating assets as non-cash assets over total
// assets.
func noaRatio(r *contracts.FundamentalRecord) float64 {
	if !valid(r.TotalAssets, r.Cash) || r.TotalAssets <= 0 {
		return contracts.Missing()
	}
	return (r.TotalAssets - r.Cash) / r.TotalAssets
}

// riskFlags counts balance-sheet stress signals, one point each:
// interest coverage below 2.5, debt-to-equity above 1, current ratio below 1.
// A signal whose inputs are missing contributes nothing; the count is missing
// only when no signal could be evaluated.
func riskFlags(r *contracts.FundamentalRecord) float64 {
	count := 0.0
	evaluated := false

	if ic := interestCoverage(r); !contracts.IsMissing(ic) {
		evaluated = true
		if ic < 2.5 {
			count++
		}
	}
	if valid(r.TotalDebt, r.TotalEquity) && r.TotalEquity > 0 {
		evaluated = true
		if r.TotalDebt/r.TotalEquity > 1 {
			count++
		}
	}
	if valid(r.CurrentAssets, r.CurrentLiabilities) && r.CurrentLiabilities > 0 {
		evaluated = true
		if r.CurrentAssets/r.CurrentLiabilities < 1 {
			count++
		}
	}

	if !evaluated {
		return contracts.Missing()
	}
	return count
}
