package factors

import (
	"time"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

// Engine computes the raw factor vector for one ticker at one as-of date.
// Each factor is computed independently: a missing input poisons only that
// factor, never the vector and never the run. No factor computation panics
// and none substitutes zero for an unavailable value.
type Engine struct {
	logger *logger.Logger
}

func New(log *logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Compute builds the fully-keyed factor vector for rec. prices may be nil,
// in which case the momentum factor is missing.
func (e *Engine) Compute(rec *contracts.FundamentalRecord, prices *contracts.PriceHistory, asOf time.Time) *contracts.FactorVector {
	v := contracts.NewFactorVector(rec.Ticker)

	v.Values[contracts.FactorEarningsYield] = earningsYield(rec)
	v.Values[contracts.FactorFCFYield] = fcfYield(rec)
	v.Values[contracts.FactorBookToMarket] = bookToMarket(rec)
	v.Values[contracts.FactorGrossProfitability] = grossProfitability(rec)
	v.Values[contracts.FactorROIC] = roic(rec)
	v.Values[contracts.FactorFScore] = fscore(rec)
	v.Values[contracts.FactorInterestCoverage] = interestCoverage(rec)
	v.Values[contracts.FactorNetDebtEBITDA] = netDebtEBITDA(rec)
	v.Values[contracts.FactorAccruals] = accruals(rec)
	v.Values[contracts.FactorNOARatio] = noaRatio(rec)
	v.Values[contracts.FactorRiskFlags] = riskFlags(rec)
	v.Values[contracts.FactorAssetGrowth] = assetGrowth(rec)
	v.Values[contracts.FactorNetIssuance] = netIssuance(rec)
	v.Values[contracts.FactorMomentum12M1M] = momentum12M1M(prices, asOf)
	v.Values[contracts.FactorBeneishM] = beneishM(rec)
	v.Values[contracts.FactorAltmanZ] = altmanZ(rec)

	if e.logger != nil {
		missing := 0
		for _, f := range contracts.AllFactors {
			if contracts.IsMissing(v.Values[f]) {
				missing++
			}
		}
		e.logger.WithFields(map[string]interface{}{
			"ticker":  rec.Ticker,
			"missing": missing,
		}).Debug("factor vector computed")
	}
	return v
}

// valid reports whether every argument carries a real value.
func valid(vs ...float64) bool {
	for _, v := range vs {
		if contracts.IsMissing(v) {
			return false
		}
	}
	return true
}

// ratio divides num by den, returning the missing sentinel when either input
// is missing or the denominator is zero.
func ratio(num, den float64) float64 {
	if !valid(num, den) || den == 0 {
		return contracts.Missing()
	}
	return num / den
}
