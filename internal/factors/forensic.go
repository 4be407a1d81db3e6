package factors

import "github.com/wonny/valuescreen/internal/contracts"

// beneishIndex builds one year-over-year Beneish index from a current and a
// prior ratio. When either side is unusable the index degrades to the
// neutral value 1.0 so one thin prior period does not sink the whole score.
func beneishIndex(curNum, curDen, priNum, priDen float64, invert bool) float64 {
	if !valid(curNum, curDen, priNum, priDen) || curDen == 0 || priDen == 0 {
		return 1.0
	}
	cur := curNum / curDen
	pri := priNum / priDen
	if invert {
		cur, pri = pri, cur
	}
	if pri == 0 {
		return 1.0
	}
	return cur / pri
}

// beneishM is the Beneish M-Score earnings-manipulation probe. TATA, the
// only level term, is required; the seven year-over-year indices fall back
// to neutral when the prior period is unavailable.
func beneishM(r *contracts.FundamentalRecord) float64 {
	tata := accruals(r)
	if contracts.IsMissing(tata) {
		return contracts.Missing()
	}

	dsri, gmi, aqi, sgi, depi, sgai, lvgi := 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0
	if p := r.Prior; p != nil {
		dsri = beneishIndex(r.Receivables, r.Revenue, p.Receivables, p.Revenue, false)
		// Gross margin index: prior margin over current, so deterioration
		// pushes the index above 1.
		gmi = beneishIndex(r.GrossProfit, r.Revenue, p.GrossProfit, p.Revenue, true)
		aqi = assetQualityIndex(r, p)
		sgi = beneishIndex(r.Revenue, 1, p.Revenue, 1, false)
		depi = beneishIndex(r.Depreciation, r.TotalAssets, p.Depreciation, p.TotalAssets, true)
		sgai = beneishIndex(r.SGAExpense, r.Revenue, p.SGAExpense, p.Revenue, false)
		lvgi = leverageIndex(r, p)
	}

	return -4.84 +
		0.920*dsri +
		0.528*gmi +
		0.404*aqi +
		0.892*sgi +
		0.115*depi -
		0.172*sgai +
		4.679*tata -
		0.327*lvgi
}

// assetQualityIndex compares the non-current, non-cash share of assets
// against the prior period.
func assetQualityIndex(r *contracts.FundamentalRecord, p *contracts.PriorFundamentals) float64 {
	if !valid(r.CurrentAssets, r.TotalAssets, p.CurrentAssets, p.TotalAssets) ||
		r.TotalAssets <= 0 || p.TotalAssets <= 0 {
		return 1.0
	}
	cur := 1 - r.CurrentAssets/r.TotalAssets
	pri := 1 - p.CurrentAssets/p.TotalAssets
	if pri <= 0 {
		return 1.0
	}
	return cur / pri
}

// leverageIndex compares total obligations to assets against the prior
// period.
func leverageIndex(r *contracts.FundamentalRecord, p *contracts.PriorFundamentals) float64 {
	if !valid(r.TotalDebt, r.CurrentLiabilities, r.TotalAssets,
		p.TotalDebt, p.CurrentLiabilities, p.TotalAssets) ||
		r.TotalAssets <= 0 || p.TotalAssets <= 0 {
		return 1.0
	}
	cur := (r.TotalDebt + r.CurrentLiabilities) / r.TotalAssets
	pri := (p.TotalDebt + p.CurrentLiabilities) / p.TotalAssets
	if pri <= 0 {
		return 1.0
	}
	return cur / pri
}

// altmanZ is the Altman Z-Score distress probe. Working capital falls back
// to current assets less current liabilities, and total liabilities to
// total assets less equity, when the source did not supply them directly.
func altmanZ(r *contracts.FundamentalRecord) float64 {
	ta := r.TotalAssets
	if !valid(ta) || ta <= 0 {
		return contracts.Missing()
	}

	wc := r.WorkingCapital
	if contracts.IsMissing(wc) && valid(r.CurrentAssets, r.CurrentLiabilities) {
		wc = r.CurrentAssets - r.CurrentLiabilities
	}

	tl := contracts.Missing()
	if valid(r.TotalEquity) {
		tl = ta - r.TotalEquity
	} else if valid(r.MarketCap) {
		tl = ta - r.MarketCap/2
	}

	if !valid(wc, r.RetainedEarnings, r.EBIT, r.MarketCap, r.Revenue, tl) || tl <= 0 {
		return contracts.Missing()
	}

	return 1.2*(wc/ta) +
		1.4*(r.RetainedEarnings/ta) +
		3.3*(r.EBIT/ta) +
		0.6*(r.MarketCap/tl) +
		1.0*(r.Revenue/ta)
}
