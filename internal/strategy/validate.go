package strategy

import (
	"fmt"
	"time"

	"github.com/wonny/valuescreen/internal/backtest"
	"github.com/wonny/valuescreen/internal/normalize"
	"github.com/wonny/valuescreen/internal/portfolio"
	"github.com/wonny/valuescreen/internal/scoring"
)

// ValidationError reports one invalid strategy field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid strategy: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every section. The first offending field is reported.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return invalid("name", "must not be empty")
	}

	if s.Universe.MinMarketCap < 0 {
		return invalid("universe.min_market_cap", "must be >= 0, got %v", s.Universe.MinMarketCap)
	}
	if s.Universe.MinADV < 0 {
		return invalid("universe.min_adv", "must be >= 0, got %v", s.Universe.MinADV)
	}

	if err := s.validateNormalization(); err != nil {
		return err
	}
	if err := s.validateWeights(); err != nil {
		return err
	}
	if err := s.validatePortfolio(); err != nil {
		return err
	}
	return s.validateBacktest()
}

func (s *Strategy) validateNormalization() error {
	n := s.Normalization
	if n.WinsorizePct < 0 || n.WinsorizePct >= 0.5 {
		return invalid("normalization.winsorize_pct", "must be in [0, 0.5), got %v", n.WinsorizePct)
	}
	switch normalize.GroupBy(n.GroupBy) {
	case normalize.GroupBySectorSize, normalize.GroupBySector, normalize.GroupByNone:
	default:
		return invalid("normalization.group_by", "unknown value %q", n.GroupBy)
	}
	if n.MinGroup < 1 {
		return invalid("normalization.min_group", "must be >= 1, got %d", n.MinGroup)
	}
	return nil
}

func (s *Strategy) validateWeights() error {
	if len(s.Weights) == 0 {
		return invalid("weights", "must not be empty")
	}
	total := 0.0
	for category, sub := range s.Weights {
		for factor, w := range sub {
			field := fmt.Sprintf("weights.%s.%s", category, factor)
			f, ok := canonicalFactor(factor)
			if !ok {
				return invalid(field, "unknown factor")
			}
			cat, _ := scoring.CategoryOf(f)
			if string(cat) != category {
				return invalid(field, "factor belongs to category %q", cat)
			}
			if w < 0 {
				return invalid(field, "must be >= 0, got %v", w)
			}
			total += w
		}
	}
	if total <= 0 {
		return invalid("weights", "must sum to a positive total")
	}
	return nil
}

func (s *Strategy) validatePortfolio() error {
	p := s.Portfolio
	if p.TopPct <= 0 || p.TopPct > 1 {
		return invalid("portfolio.top_pct", "must be in (0, 1], got %v", p.TopPct)
	}
	if p.MaxWeightPerName <= 0 || p.MaxWeightPerName > 1 {
		return invalid("portfolio.max_weight_per_name", "must be in (0, 1], got %v", p.MaxWeightPerName)
	}
	if p.MaxWeightPerSector <= 0 || p.MaxWeightPerSector > 1 {
		return invalid("portfolio.max_weight_per_sector", "must be in (0, 1], got %v", p.MaxWeightPerSector)
	}
	if p.BandSigma < 0 {
		return invalid("portfolio.band_sigma", "must be >= 0, got %v", p.BandSigma)
	}
	if p.TCBps < 0 {
		return invalid("portfolio.tc_bps", "must be >= 0, got %v", p.TCBps)
	}
	if err := backtest.Rebalance(p.Rebalance).Validate(); err != nil {
		return invalid("portfolio.rebalance", "unknown value %q", p.Rebalance)
	}
	switch portfolio.WeightScheme(p.WeightScheme) {
	case portfolio.WeightEqual, portfolio.WeightScoreProportional:
	default:
		return invalid("portfolio.weight_scheme", "unknown value %q", p.WeightScheme)
	}
	return nil
}

func (s *Strategy) validateBacktest() error {
	b := s.Backtest
	if b.ReportLagDays < 0 {
		return invalid("backtest.report_lag_days", "must be >= 0, got %d", b.ReportLagDays)
	}
	if b.SlippageBps < 0 {
		return invalid("backtest.slippage_bps", "must be >= 0, got %v", b.SlippageBps)
	}

	var start, end time.Time
	var err error
	if b.Start != "" {
		if start, err = time.Parse("2006-01-02", b.Start); err != nil {
			return invalid("backtest.start", "must be YYYY-MM-DD, got %q", b.Start)
		}
	}
	if b.End != "" {
		if end, err = time.Parse("2006-01-02", b.End); err != nil {
			return invalid("backtest.end", "must be YYYY-MM-DD, got %q", b.End)
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return invalid("backtest.end", "must be after backtest.start")
	}
	return nil
}
