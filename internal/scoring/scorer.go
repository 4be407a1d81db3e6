package scoring

import (
	"fmt"
	"sort"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

// zClip bounds the summed composite so a stack of extreme z-scores cannot
// run the ranking away from the rest of the cross-section.
const zClip = 3.0

// factorCategory maps each factor to its weighting category.
var factorCategory = map[contracts.Factor]contracts.Category{
	contracts.FactorEarningsYield:      contracts.CategoryValue,
	contracts.FactorFCFYield:           contracts.CategoryValue,
	contracts.FactorBookToMarket:       contracts.CategoryValue,
	contracts.FactorGrossProfitability: contracts.CategoryQuality,
	contracts.FactorROIC:               contracts.CategoryQuality,
	contracts.FactorFScore:             contracts.CategoryQuality,
	contracts.FactorInterestCoverage:   contracts.CategoryQuality,
	contracts.FactorNetDebtEBITDA:      contracts.CategoryQuality,
	contracts.FactorAccruals:           contracts.CategoryAccounting,
	contracts.FactorNOARatio:           contracts.CategoryAccounting,
	contracts.FactorRiskFlags:          contracts.CategoryAccounting,
	contracts.FactorBeneishM:           contracts.CategoryAccounting,
	contracts.FactorAltmanZ:            contracts.CategoryAccounting,
	contracts.FactorAssetGrowth:        contracts.CategoryInvestment,
	contracts.FactorNetIssuance:        contracts.CategoryInvestment,
	contracts.FactorMomentum12M1M:      contracts.CategoryMomentum,
}

// CategoryOf returns the weighting category of f.
func CategoryOf(f contracts.Factor) (contracts.Category, bool) {
	c, ok := factorCategory[f]
	return c, ok
}

// Config holds the per-factor composite weights. Factors absent from the map
// contribute nothing. Weights are renormalized to sum to one at load time.
type Config struct {
	Weights map[contracts.Factor]float64
}

func DefaultConfig() Config {
	return Config{Weights: map[contracts.Factor]float64{
		contracts.FactorEarningsYield:      0.20,
		contracts.FactorFCFYield:           0.10,
		contracts.FactorBookToMarket:       0.10,
		contracts.FactorGrossProfitability: 0.15,
		contracts.FactorROIC:               0.10,
		contracts.FactorFScore:             0.05,
		contracts.FactorAccruals:           0.07,
		contracts.FactorNOARatio:           0.05,
		contracts.FactorRiskFlags:          0.03,
		contracts.FactorAssetGrowth:        0.05,
		contracts.FactorNetIssuance:        0.05,
		contracts.FactorMomentum12M1M:      0.05,
	}}
}

func (c Config) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("weights are empty")
	}
	sum := 0.0
	for f, w := range c.Weights {
		if _, ok := factorCategory[f]; !ok {
			return fmt.Errorf("unknown factor in weights: %q", f)
		}
		if w < 0 {
			return fmt.Errorf("weight for %q must be >= 0: got %v", f, w)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("weights sum to zero")
	}
	return nil
}

// Scorer folds sign-corrected z-scores into one composite per ticker.
type Scorer struct {
	weights map[contracts.Factor]float64 // renormalized to sum 1
	logger  *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sum := 0.0
	for _, w := range cfg.Weights {
		sum += w
	}
	weights := make(map[contracts.Factor]float64, len(cfg.Weights))
	for f, w := range cfg.Weights {
		weights[f] = w / sum
	}
	return &Scorer{weights: weights, logger: log}, nil
}

// Score computes composites for the cross-section and assigns ranks. Output
// is ordered best first; ties break by ticker ascending so two runs over the
// same input produce identical rankings.
func (s *Scorer) Score(vectors []*contracts.NormalizedFactorVector) []*contracts.CompositeScore {
	out := make([]*contracts.CompositeScore, 0, len(vectors))
	for _, v := range vectors {
		out = append(out, s.scoreOne(v))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Ticker < out[j].Ticker
	})
	for i, cs := range out {
		cs.Rank = i + 1
	}
	return out
}

func (s *Scorer) scoreOne(v *contracts.NormalizedFactorVector) *contracts.CompositeScore {
	cs := &contracts.CompositeScore{
		Ticker:     v.Ticker,
		Categories: make(map[contracts.Category]float64, len(contracts.AllCategories)),
	}
	for _, f := range contracts.AllFactors {
		w, ok := s.weights[f]
		if !ok || w == 0 {
			continue
		}
		z, ok := v.ZScores[f]
		if !ok || contracts.IsMissing(z) {
			continue
		}
		contrib := w * z
		cs.Score += contrib
		cs.Categories[factorCategory[f]] += contrib
	}
	cs.Score = clip(cs.Score)
	return cs
}

func clip(z float64) float64 {
	if z > zClip {
		return zClip
	}
	if z < -zClip {
		return -zClip
	}
	return z
}

// Select applies the top-percentile cut with turnover banding. A name
// already held survives while its rank percentile stays within
// topPct+bandSigma; a name not held must clear the strict topPct cut to
// enter. Input must already be ranked; output preserves rank order.
func Select(ranked []*contracts.CompositeScore, held map[string]bool, topPct, bandSigma float64) []*contracts.CompositeScore {
	n := len(ranked)
	if n == 0 {
		return nil
	}
	var out []*contracts.CompositeScore
	for _, cs := range ranked {
		pct := float64(cs.Rank) / float64(n)
		if pct <= topPct {
			out = append(out, cs)
			continue
		}
		if held[cs.Ticker] && pct <= topPct+bandSigma {
			out = append(out, cs)
		}
	}
	return out
}
