package strategy

import (
	"time"

	"github.com/wonny/valuescreen/internal/backtest"
	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/gates"
	"github.com/wonny/valuescreen/internal/normalize"
	"github.com/wonny/valuescreen/internal/portfolio"
	"github.com/wonny/valuescreen/internal/scoring"
)

// Strategy is one screening strategy as loaded from YAML. Every knob the
// pipeline exposes lives here so a run is reproducible from the file alone.
type Strategy struct {
	Name          string              `yaml:"name"`
	Universe      UniverseConfig      `yaml:"universe"`
	Normalization NormalizationConfig `yaml:"normalization"`
	Weights       map[string]map[string]float64 `yaml:"weights"`
	Gates         GatesConfig         `yaml:"gates"`
	Portfolio     PortfolioConfig     `yaml:"portfolio"`
	Backtest      BacktestConfig      `yaml:"backtest"`

	hash string
}

type UniverseConfig struct {
	MinMarketCap     float64  `yaml:"min_market_cap"`
	MinADV           float64  `yaml:"min_adv"`
	CountryWhitelist []string `yaml:"country_whitelist"`
}

type NormalizationConfig struct {
	WinsorizePct   float64 `yaml:"winsorize_pct"`
	GroupBy        string  `yaml:"group_by"`
	MissingPenalty float64 `yaml:"missing_penalty"`
	MinGroup       int     `yaml:"min_group"`
}

type GatesConfig struct {
	BeneishMax       float64 `yaml:"beneish_max"`
	AltmanMin        float64 `yaml:"altman_min"`
	AllowRestatement bool    `yaml:"allow_restatement"`
}

type PortfolioConfig struct {
	TopPct             float64 `yaml:"top_pct"`
	MaxWeightPerName   float64 `yaml:"max_weight_per_name"`
	MaxWeightPerSector float64 `yaml:"max_weight_per_sector"`
	Rebalance          string  `yaml:"rebalance"`
	BandSigma          float64 `yaml:"band_sigma"`
	TCBps              float64 `yaml:"tc_bps"`
	WeightScheme       string  `yaml:"weight_scheme"`
}

type BacktestConfig struct {
	Start         string  `yaml:"start"`
	End           string  `yaml:"end"`
	ReportLagDays int     `yaml:"report_lag_days"`
	Benchmark     string  `yaml:"benchmark"`
	SlippageBps   float64 `yaml:"slippage_bps"`
}

// Default returns the strategy the screener runs with no file given.
func Default() *Strategy {
	s := &Strategy{
		Name: "default",
		Normalization: NormalizationConfig{
			WinsorizePct:   0.01,
			GroupBy:        string(normalize.GroupBySectorSize),
			MissingPenalty: -0.2,
			MinGroup:       5,
		},
		Weights: map[string]map[string]float64{
			"value": {
				"earnings_yield": 0.20,
				"fcf_yield":      0.10,
				"book_to_market": 0.10,
			},
			"quality": {
				"gross_profitability": 0.15,
				"roic":                0.10,
				"fscore":              0.05,
			},
			"accounting": {
				"accruals":   0.07,
				"noa_ratio":  0.05,
				"risk_flags": 0.03,
			},
			"investment": {
				"asset_growth": 0.05,
				"net_issuance": 0.05,
			},
			"momentum": {
				"momentum_12m_1m": 0.05,
			},
		},
		Gates: GatesConfig{
			BeneishMax: -1.78,
			AltmanMin:  1.8,
		},
		Portfolio: PortfolioConfig{
			TopPct:             0.10,
			MaxWeightPerName:   0.05,
			MaxWeightPerSector: 0.25,
			Rebalance:          string(backtest.RebalanceQuarterly),
			BandSigma:          0.02,
			TCBps:              10,
			WeightScheme:       string(portfolio.WeightEqual),
		},
		Backtest: BacktestConfig{
			ReportLagDays: 45,
			SlippageBps:   5,
		},
	}
	s.hash = hashStrategy(s)
	return s
}

// Hash is the SHA-256 fingerprint of the loaded configuration, recorded in
// run artifacts so results trace back to exact settings.
func (s *Strategy) Hash() string { return s.hash }

// NormalizeConfig translates the normalization section.
func (s *Strategy) NormalizeConfig() normalize.Config {
	return normalize.Config{
		WinsorizePct:   s.Normalization.WinsorizePct,
		GroupBy:        normalize.GroupBy(s.Normalization.GroupBy),
		MissingPenalty: s.Normalization.MissingPenalty,
		MinGroup:       s.Normalization.MinGroup,
	}
}

// GatesConfig translates the gates section, folding in the universe
// liquidity floor for the soft flag.
func (s *Strategy) GatesEvaluatorConfig() gates.Config {
	cfg := gates.DefaultConfig()
	cfg.BeneishMax = s.Gates.BeneishMax
	cfg.AltmanMin = s.Gates.AltmanMin
	cfg.AllowRestatement = s.Gates.AllowRestatement
	cfg.MinADV = s.Universe.MinADV
	return cfg
}

// factorAliases maps the short weight keys used in strategy files to the
// internal factor names. Long names are accepted as well.
var factorAliases = map[string]contracts.Factor{
	"ey":         contracts.FactorEarningsYield,
	"fcfy":       contracts.FactorFCFYield,
	"bm":         contracts.FactorBookToMarket,
	"gross_prof": contracts.FactorGrossProfitability,
	"noa":        contracts.FactorNOARatio,
	"risk":       contracts.FactorRiskFlags,
	"m12m_1m":    contracts.FactorMomentum12M1M,
}

// canonicalFactor resolves a weight key to its factor, by alias or by the
// factor's own name.
func canonicalFactor(name string) (contracts.Factor, bool) {
	if f, ok := factorAliases[name]; ok {
		return f, true
	}
	f := contracts.Factor(name)
	if _, ok := scoring.CategoryOf(f); ok {
		return f, true
	}
	return "", false
}

// ScoringConfig flattens the per-category weight tables into the factor map.
func (s *Strategy) ScoringConfig() scoring.Config {
	weights := make(map[contracts.Factor]float64)
	for _, sub := range s.Weights {
		for factor, w := range sub {
			if f, ok := canonicalFactor(factor); ok {
				weights[f] = w
			}
		}
	}
	return scoring.Config{Weights: weights}
}

// PortfolioConfig translates the portfolio section.
func (s *Strategy) PortfolioConstructorConfig() portfolio.Config {
	return portfolio.Config{
		TopPct:             s.Portfolio.TopPct,
		BandSigma:          s.Portfolio.BandSigma,
		MaxWeightPerName:   s.Portfolio.MaxWeightPerName,
		MaxWeightPerSector: s.Portfolio.MaxWeightPerSector,
		Scheme:             portfolio.WeightScheme(s.Portfolio.WeightScheme),
		MinADV:             s.Universe.MinADV,
	}
}

// BacktestSimConfig translates the backtest section. Start and end may be
// overridden by CLI flags, so zero values pass through here and fail later
// in the simulator's own validation.
func (s *Strategy) BacktestSimConfig() (backtest.Config, error) {
	cfg := backtest.Config{
		Rebalance:   backtest.Rebalance(s.Portfolio.Rebalance),
		LagDays:     s.Backtest.ReportLagDays,
		TCBps:       s.Portfolio.TCBps,
		SlippageBps: s.Backtest.SlippageBps,
		Benchmark:   s.Backtest.Benchmark,
	}
	var err error
	if s.Backtest.Start != "" {
		if cfg.Start, err = time.Parse("2006-01-02", s.Backtest.Start); err != nil {
			return cfg, err
		}
	}
	if s.Backtest.End != "" {
		if cfg.End, err = time.Parse("2006-01-02", s.Backtest.End); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
