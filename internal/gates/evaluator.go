package gates

import (
	"fmt"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

// Config holds the hard-exclusion thresholds and the soft-flag cutoffs.
type Config struct {
	BeneishMax       float64 // M-Score above this is excluded
	AltmanMin        float64 // Z-Score below this is excluded
	AllowRestatement bool    // keep frequent restaters in the universe

	// Soft-flag cutoffs. Flags annotate, never exclude.
	NetIssuanceFlag float64
	AssetGrowthFlag float64
	MinADV          float64 // average daily value below this flags low liquidity
}

func DefaultConfig() Config {
	return Config{
		BeneishMax:      -1.78,
		AltmanMin:       1.8,
		NetIssuanceFlag: 0.05,
		AssetGrowthFlag: 0.25,
	}
}

func (c Config) Validate() error {
	if c.NetIssuanceFlag < 0 {
		return fmt.Errorf("net issuance flag cutoff must be >= 0: got %v", c.NetIssuanceFlag)
	}
	if c.AssetGrowthFlag < 0 {
		return fmt.Errorf("asset growth flag cutoff must be >= 0: got %v", c.AssetGrowthFlag)
	}
	return nil
}

// Evaluator applies the hard gates in a fixed severity order and collects
// soft flags. Evaluation is pure: one record in, one verdict out, inputs
// untouched.
//
// A gate whose input is missing does not trigger. Exclusion requires
// affirmative evidence; thin data is the normalizer's problem, not a crime.
type Evaluator struct {
	cfg    Config
	logger *logger.Logger
}

func NewEvaluator(cfg Config, log *logger.Logger) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg, logger: log}, nil
}

// Evaluate returns the gate verdict for one ticker. meta may be nil when the
// source has no universe metadata; liquidity then goes unflagged.
func (e *Evaluator) Evaluate(rec *contracts.FundamentalRecord, vec *contracts.FactorVector, meta *contracts.SecurityMeta) *contracts.GateResult {
	res := &contracts.GateResult{Ticker: rec.Ticker, Passed: true}

	// Hard gates, most severe first. Every triggered reason is recorded.
	if m := vec.Get(contracts.FactorBeneishM); !contracts.IsMissing(m) && m > e.cfg.BeneishMax {
		res.Reasons = append(res.Reasons, contracts.GateBeneishExceeded)
	}
	if z := vec.Get(contracts.FactorAltmanZ); !contracts.IsMissing(z) && z < e.cfg.AltmanMin {
		res.Reasons = append(res.Reasons, contracts.GateAltmanBelow)
	}
	if rec.AuditQualified {
		res.Reasons = append(res.Reasons, contracts.GateAuditOpinion)
	}
	if rec.FrequentRestatement && !e.cfg.AllowRestatement {
		res.Reasons = append(res.Reasons, contracts.GateRestatement)
	}
	if rec.TradingHalted || (meta != nil && meta.Halted) {
		res.Reasons = append(res.Reasons, contracts.GateTradingHalt)
	}
	res.Passed = len(res.Reasons) == 0

	// Soft flags.
	if ni := vec.Get(contracts.FactorNetIssuance); !contracts.IsMissing(ni) && ni > e.cfg.NetIssuanceFlag {
		res.Flags = append(res.Flags, contracts.FlagHighNetIssuance)
	}
	if ag := vec.Get(contracts.FactorAssetGrowth); !contracts.IsMissing(ag) && ag > e.cfg.AssetGrowthFlag {
		res.Flags = append(res.Flags, contracts.FlagHighAssetGrowth)
	}
	if marginDeteriorated(rec) {
		res.Flags = append(res.Flags, contracts.FlagMarginDeterioration)
	}
	if meta != nil && e.cfg.MinADV > 0 &&
		!contracts.IsMissing(meta.AvgDailyValue) && meta.AvgDailyValue < e.cfg.MinADV {
		res.Flags = append(res.Flags, contracts.FlagLowLiquidity)
	}

	if e.logger != nil && !res.Passed {
		e.logger.WithFields(map[string]interface{}{
			"ticker": rec.Ticker,
			"reason": res.Reason(),
		}).Debug("ticker excluded by gate")
	}
	return res
}

// marginDeteriorated reports whether the gross margin fell against the prior
// period. Requires both periods to be computable.
func marginDeteriorated(r *contracts.FundamentalRecord) bool {
	p := r.Prior
	if p == nil {
		return false
	}
	if contracts.IsMissing(r.GrossProfit) || contracts.IsMissing(r.Revenue) || r.Revenue <= 0 {
		return false
	}
	if contracts.IsMissing(p.GrossProfit) || contracts.IsMissing(p.Revenue) || p.Revenue <= 0 {
		return false
	}
	return r.GrossProfit/r.Revenue < p.GrossProfit/p.Revenue
}
