package factors

import "github.com/wonny/valuescreen/internal/contracts"

// fscore is the Piotroski F-Score, 0 to 9. Each criterion scores a point
// when it passes and nothing when its inputs are missing. The score itself
// is missing only when neither profitability criterion could be evaluated,
// which marks a record too thin to grade at all.
func fscore(r *contracts.FundamentalRecord) float64 {
	score := 0.0
	gradable := false

	ni := r.DerivedNetIncome()
	ta := r.TotalAssets

	// Profitability.
	if valid(ni, ta) && ta > 0 {
		gradable = true
		if ni/ta > 0 {
			score++
		}
	}
	if valid(r.OperatingCashFlow) {
		gradable = true
		if r.OperatingCashFlow > 0 {
			score++
		}
		if valid(ni) && r.OperatingCashFlow > ni {
			score++
		}
	}

	if !gradable {
		return contracts.Missing()
	}

	p := r.Prior
	if p == nil {
		return score
	}

	// Delta ROA.
	if valid(ni, ta, p.NetIncome, p.TotalAssets) && ta > 0 && p.TotalAssets > 0 {
		if ni/ta > p.NetIncome/p.TotalAssets {
			score++
		}
	}
	// Leverage down.
	if valid(r.TotalDebt, ta, p.TotalDebt, p.TotalAssets) && ta > 0 && p.TotalAssets > 0 {
		if r.TotalDebt/ta < p.TotalDebt/p.TotalAssets {
			score++
		}
	}
	// Current ratio up.
	if valid(r.CurrentAssets, r.CurrentLiabilities, p.CurrentAssets, p.CurrentLiabilities) &&
		r.CurrentLiabilities > 0 && p.CurrentLiabilities > 0 {
		if r.CurrentAssets/r.CurrentLiabilities > p.CurrentAssets/p.CurrentLiabilities {
			score++
		}
	}
	// No dilution.
	if valid(r.SharesOutstanding, p.SharesOutstanding) && p.SharesOutstanding > 0 {
		if r.SharesOutstanding <= p.SharesOutstanding {
			score++
		}
	}
	// Gross margin up.
	if valid(r.GrossProfit, r.Revenue, p.GrossProfit, p.Revenue) &&
		r.Revenue > 0 && p.Revenue > 0 {
		if r.GrossProfit/r.Revenue > p.GrossProfit/p.Revenue {
			score++
		}
	}
	// Asset turnover up.
	if valid(r.Revenue, ta, p.Revenue, p.TotalAssets) && ta > 0 && p.TotalAssets > 0 {
		if r.Revenue/ta > p.Revenue/p.TotalAssets {
			score++
		}
	}

	return score
}
