package factors

import "github.com/wonny/valuescreen/internal/contracts"

// assetGrowth is the period-over-period growth of total assets. Firms that
// grow the balance sheet fastest tend to underperform, so the normalizer
// flips this one.
func assetGrowth(r *contracts.FundamentalRecord) float64 {
	if r.Prior == nil {
		return contracts.Missing()
	}
	if !valid(r.TotalAssets, r.Prior.TotalAssets) || r.Prior.TotalAssets <= 0 {
		return contracts.Missing()
	}
	return r.TotalAssets/r.Prior.TotalAssets - 1
}

// netIssuance is the period-over-period growth in shares outstanding.
// Positive means dilution, negative means buybacks.
func netIssuance(r *contracts.FundamentalRecord) float64 {
	if r.Prior == nil {
		return contracts.Missing()
	}
	if !valid(r.SharesOutstanding, r.Prior.SharesOutstanding) || r.Prior.SharesOutstanding <= 0 {
		return contracts.Missing()
	}
	return r.SharesOutstanding/r.Prior.SharesOutstanding - 1
}
