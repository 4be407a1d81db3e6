package factors

import "github.com/wonny/valuescreen/internal/contracts"

// earningsYield is EBIT over enterprise value. Enterprise value must be
// strictly positive; a zero or negative EV makes the yield meaningless.
func earningsYield(r *contracts.FundamentalRecord) float64 {
	ev := r.DerivedEnterpriseValue()
	if !valid(r.EBIT, ev) || ev <= 0 {
		return contracts.Missing()
	}
	return r.EBIT / ev
}

// fcfYield is free cash flow (operating cash flow less capex) over market cap.
func fcfYield(r *contracts.FundamentalRecord) float64 {
	if !valid(r.OperatingCashFlow, r.CapEx, r.MarketCap) || r.MarketCap <= 0 {
		return contracts.Missing()
	}
	return (r.OperatingCashFlow - r.CapEx) / r.MarketCap
}

// bookToMarket is total equity over market cap. Negative equity carries
// through as a negative ratio; the normalizer handles the tail.
func bookToMarket(r *contracts.FundamentalRecord) float64 {
	if !valid(r.TotalEquity, r.MarketCap) || r.MarketCap <= 0 {
		return contracts.Missing()
	}
	return r.TotalEquity / r.MarketCap
}
