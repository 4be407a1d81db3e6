package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/scoring"
	"github.com/wonny/valuescreen/pkg/logger"
)

// ErrUnsatisfiable means the caps cannot hold the full budget: too few names
// for the per-name cap, or too few sectors for the sector cap. The caller
// decides whether to hold the prior book or stop.
var ErrUnsatisfiable = errors.New("portfolio constraints unsatisfiable")

// ErrEmptySelection means the top cut selected nothing.
var ErrEmptySelection = errors.New("selection is empty")

// WeightScheme selects how the budget is spread across selected names.
type WeightScheme string

const (
	WeightEqual             WeightScheme = "equal"
	WeightScoreProportional WeightScheme = "score_proportional"
)

// Config holds the selection cut and the weighting constraints.
type Config struct {
	TopPct             float64
	BandSigma          float64
	MaxWeightPerName   float64
	MaxWeightPerSector float64
	Scheme             WeightScheme
	MinADV             float64 // names below this average daily value are dropped
}

func DefaultConfig() Config {
	return Config{
		TopPct:             0.10,
		BandSigma:          0.02,
		MaxWeightPerName:   0.05,
		MaxWeightPerSector: 0.25,
		Scheme:             WeightEqual,
	}
}

func (c Config) Validate() error {
	if c.TopPct <= 0 || c.TopPct > 1 {
		return fmt.Errorf("top_pct must be in (0, 1]: got %v", c.TopPct)
	}
	if c.BandSigma < 0 {
		return fmt.Errorf("band_sigma must be >= 0: got %v", c.BandSigma)
	}
	if c.MaxWeightPerName <= 0 || c.MaxWeightPerName > 1 {
		return fmt.Errorf("max_weight_per_name must be in (0, 1]: got %v", c.MaxWeightPerName)
	}
	if c.MaxWeightPerSector <= 0 || c.MaxWeightPerSector > 1 {
		return fmt.Errorf("max_weight_per_sector must be in (0, 1]: got %v", c.MaxWeightPerSector)
	}
	switch c.Scheme {
	case WeightEqual, WeightScoreProportional:
	default:
		return fmt.Errorf("unknown weight scheme: %q", c.Scheme)
	}
	return nil
}

const (
	maxIterations = 32
	capTolerance  = 1e-9
)

// Constructor turns a ranked cross-section into a constrained weight vector.
// Construction is deterministic: the same scores, holdings and sector map
// always produce the same weights.
type Constructor struct {
	cfg    Config
	logger *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Constructor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Constructor{cfg: cfg, logger: log}, nil
}

// Construct selects the top cut with banding against the held book, drops
// illiquid names, weights the survivors and squeezes the weights under the
// caps. sectors maps ticker to sector for the sector cap; names without an
// entry stay under the name cap only. meta is optional liquidity metadata.
func (c *Constructor) Construct(
	asOf time.Time,
	ranked []*contracts.CompositeScore,
	held map[string]bool,
	sectors map[string]string,
	meta map[string]*contracts.SecurityMeta,
) (*contracts.PortfolioWeight, error) {
	selected := scoring.Select(ranked, held, c.cfg.TopPct, c.cfg.BandSigma)
	selected = c.filterLiquidity(selected, meta)
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	if err := c.checkFeasible(selected, sectors); err != nil {
		return nil, err
	}

	weights := c.initialWeights(selected)
	violations := c.applyCaps(weights, sectors)

	res := &contracts.PortfolioWeight{
		AsOf:       asOf,
		Weights:    weights,
		Satisfied:  len(violations) == 0,
		Violations: violations,
	}
	if c.logger != nil {
		c.logger.WithFields(map[string]interface{}{
			"as_of":     asOf.Format("2006-01-02"),
			"names":     len(weights),
			"satisfied": res.Satisfied,
		}).Debug("portfolio constructed")
	}
	return res, nil
}

func (c *Constructor) filterLiquidity(selected []*contracts.CompositeScore, meta map[string]*contracts.SecurityMeta) []*contracts.CompositeScore {
	if c.cfg.MinADV <= 0 || meta == nil {
		return selected
	}
	out := selected[:0:0]
	for _, cs := range selected {
		m := meta[cs.Ticker]
		if m != nil && !contracts.IsMissing(m.AvgDailyValue) && m.AvgDailyValue < c.cfg.MinADV {
			continue
		}
		out = append(out, cs)
	}
	return out
}

// checkFeasible rejects cap settings that cannot absorb the full budget.
// Names without a sector entry sit outside the sector cap and contribute
// capacity bounded only by the per-name cap.
func (c *Constructor) checkFeasible(selected []*contracts.CompositeScore, sectors map[string]string) error {
	if float64(len(selected))*c.cfg.MaxWeightPerName < 1-capTolerance {
		return fmt.Errorf("%w: %d names cannot hold the budget under a %.4f per-name cap",
			ErrUnsatisfiable, len(selected), c.cfg.MaxWeightPerName)
	}
	seen := make(map[string]bool)
	sectorless := 0
	for _, cs := range selected {
		if s := sectors[cs.Ticker]; s != "" {
			seen[s] = true
		} else {
			sectorless++
		}
	}
	capacity := float64(len(seen))*c.cfg.MaxWeightPerSector + float64(sectorless)*c.cfg.MaxWeightPerName
	if capacity < 1-capTolerance {
		return fmt.Errorf("%w: %d sectors cannot hold the budget under a %.4f per-sector cap",
			ErrUnsatisfiable, len(seen), c.cfg.MaxWeightPerSector)
	}
	return nil
}

// initialWeights spreads the budget before caps. Score-proportional shifts
// scores so the worst selected name keeps a small positive share, and
// degrades to equal weighting when every score is identical.
func (c *Constructor) initialWeights(selected []*contracts.CompositeScore) map[string]float64 {
	weights := make(map[string]float64, len(selected))
	n := float64(len(selected))

	if c.cfg.Scheme == WeightEqual {
		for _, cs := range selected {
			weights[cs.Ticker] = 1 / n
		}
		return weights
	}

	minScore, maxScore := selected[0].Score, selected[0].Score
	for _, cs := range selected {
		if cs.Score < minScore {
			minScore = cs.Score
		}
		if cs.Score > maxScore {
			maxScore = cs.Score
		}
	}
	span := maxScore - minScore
	if span == 0 {
		for _, cs := range selected {
			weights[cs.Ticker] = 1 / n
		}
		return weights
	}

	floor := span / n
	total := 0.0
	for _, cs := range selected {
		w := cs.Score - minScore + floor
		weights[cs.Ticker] = w
		total += w
	}
	for t := range weights {
		weights[t] /= total
	}
	return weights
}

// applyCaps clamps per-name and per-sector weights, redistributing trimmed
// mass to uncapped names, and iterates to a fixed point. Returns the list of
// residual violations when the iteration budget runs out.
func (c *Constructor) applyCaps(weights map[string]float64, sectors map[string]string) []string {
	tickers := sortedTickers(weights)

	for iter := 0; iter < maxIterations; iter++ {
		normalize(weights, tickers)

		moved := c.capNames(weights, tickers)
		moved = c.capSectors(weights, tickers, sectors) || moved

		if !moved {
			return nil
		}
	}
	return c.residualViolations(weights, tickers, sectors)
}

// capNames clamps names above the per-name cap and hands the excess to
// names with headroom, proportional to their weight.
func (c *Constructor) capNames(weights map[string]float64, tickers []string) bool {
	cap := c.cfg.MaxWeightPerName
	excess := 0.0
	var receivers []string
	receiverMass := 0.0

	for _, t := range tickers {
		if weights[t] > cap+capTolerance {
			excess += weights[t] - cap
			weights[t] = cap
		} else if weights[t] < cap-capTolerance {
			receivers = append(receivers, t)
			receiverMass += weights[t]
		}
	}
	if excess <= capTolerance || receiverMass <= 0 {
		return excess > capTolerance
	}
	for _, t := range receivers {
		weights[t] += excess * weights[t] / receiverMass
	}
	return true
}

// capSectors scales down sectors above the cap and hands the excess to
// names with sector headroom. A name without a sector entry is outside the
// cap and only ever receives.
func (c *Constructor) capSectors(weights map[string]float64, tickers []string, sectors map[string]string) bool {
	cap := c.cfg.MaxWeightPerSector

	sums := make(map[string]float64)
	for _, t := range tickers {
		if s := sectors[t]; s != "" {
			sums[s] += weights[t]
		}
	}

	excess := 0.0
	over := make(map[string]bool)
	for s, sum := range sums {
		if sum > cap+capTolerance {
			over[s] = true
			excess += sum - cap
		}
	}
	if excess <= capTolerance {
		return false
	}

	for _, t := range tickers {
		if s := sectors[t]; over[s] {
			weights[t] *= cap / sums[s]
		}
	}

	var receivers []string
	receiverMass := 0.0
	for _, t := range tickers {
		if !over[sectors[t]] {
			receivers = append(receivers, t)
			receiverMass += weights[t]
		}
	}
	if receiverMass <= 0 {
		return true
	}
	for _, t := range receivers {
		weights[t] += excess * weights[t] / receiverMass
	}
	return true
}

func (c *Constructor) residualViolations(weights map[string]float64, tickers []string, sectors map[string]string) []string {
	var out []string
	for _, t := range tickers {
		if weights[t] > c.cfg.MaxWeightPerName+1e-6 {
			out = append(out, fmt.Sprintf("name %s at %.6f exceeds cap %.6f", t, weights[t], c.cfg.MaxWeightPerName))
		}
	}
	sums := make(map[string]float64)
	for _, t := range tickers {
		if s := sectors[t]; s != "" {
			sums[s] += weights[t]
		}
	}
	sectorNames := make([]string, 0, len(sums))
	for s := range sums {
		sectorNames = append(sectorNames, s)
	}
	sort.Strings(sectorNames)
	for _, s := range sectorNames {
		if sums[s] > c.cfg.MaxWeightPerSector+1e-6 {
			out = append(out, fmt.Sprintf("sector %s at %.6f exceeds cap %.6f", s, sums[s], c.cfg.MaxWeightPerSector))
		}
	}
	return out
}

func sortedTickers(weights map[string]float64) []string {
	out := make([]string, 0, len(weights))
	for t := range weights {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalize(weights map[string]float64, tickers []string) {
	total := 0.0
	for _, t := range tickers {
		total += weights[t]
	}
	if total <= 0 {
		return
	}
	for _, t := range tickers {
		weights[t] /= total
	}
}
