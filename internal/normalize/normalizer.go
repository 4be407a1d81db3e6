package normalize

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

// GroupBy selects the peer-group definition for cross-sectional stats.
type GroupBy string

const (
	GroupBySectorSize GroupBy = "sector_size"
	GroupBySector     GroupBy = "sector"
	GroupByNone       GroupBy = "none"
)

// Config controls the cross-sectional transform.
type Config struct {
	WinsorizePct   float64 // tail fraction clamped on each side
	GroupBy        GroupBy
	MissingPenalty float64 // z assigned to a missing raw value
	MinGroup       int     // below this, full-universe stats are used
}

func DefaultConfig() Config {
	return Config{
		WinsorizePct:   0.01,
		GroupBy:        GroupBySectorSize,
		MissingPenalty: -0.2,
		MinGroup:       5,
	}
}

func (c Config) Validate() error {
	if c.WinsorizePct < 0 || c.WinsorizePct >= 0.5 {
		return fmt.Errorf("winsorize_pct must be in [0, 0.5): got %v", c.WinsorizePct)
	}
	switch c.GroupBy {
	case GroupBySectorSize, GroupBySector, GroupByNone:
	default:
		return fmt.Errorf("unknown group_by: %q", c.GroupBy)
	}
	if c.MinGroup < 1 {
		return fmt.Errorf("min_group must be >= 1: got %d", c.MinGroup)
	}
	return nil
}

// Normalizer turns raw factor vectors into sign-corrected group z-scores.
// After the transform, higher always means better for every factor.
type Normalizer struct {
	cfg    Config
	logger *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Normalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{cfg: cfg, logger: log}, nil
}

// Normalize transforms the cross-section. groups maps ticker to its peer
// group; a ticker absent from the map falls into the empty group. The result
// is ordered by ticker ascending, independent of input order.
func (n *Normalizer) Normalize(vectors []*contracts.FactorVector, groups map[string]contracts.GroupKey) []*contracts.NormalizedFactorVector {
	sorted := make([]*contracts.FactorVector, len(vectors))
	copy(sorted, vectors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ticker < sorted[j].Ticker })

	out := make([]*contracts.NormalizedFactorVector, len(sorted))
	for i, v := range sorted {
		out[i] = &contracts.NormalizedFactorVector{
			Ticker:  v.Ticker,
			Group:   n.groupOf(groups[v.Ticker]),
			ZScores: make(map[contracts.Factor]float64, len(contracts.AllFactors)),
			Stats:   make(map[contracts.Factor]contracts.GroupStats, len(contracts.AllFactors)),
		}
	}

	for _, f := range contracts.AllFactors {
		n.normalizeFactor(f, sorted, out)
	}
	return out
}

// groupOf collapses the raw group key per the configured grouping.
func (n *Normalizer) groupOf(k contracts.GroupKey) contracts.GroupKey {
	switch n.cfg.GroupBy {
	case GroupBySector:
		return contracts.GroupKey{Sector: k.Sector}
	case GroupByNone:
		return contracts.GroupKey{}
	default:
		return k
	}
}

func (n *Normalizer) normalizeFactor(f contracts.Factor, vectors []*contracts.FactorVector, out []*contracts.NormalizedFactorVector) {
	// Gather present values per group and for the full universe.
	byGroup := make(map[contracts.GroupKey][]float64)
	var universe []float64
	for i, v := range vectors {
		raw := v.Get(f)
		if contracts.IsMissing(raw) {
			continue
		}
		g := out[i].Group
		byGroup[g] = append(byGroup[g], raw)
		universe = append(universe, raw)
	}

	universeStats := n.summarize(universe)

	statsFor := func(g contracts.GroupKey) contracts.GroupStats {
		vals := byGroup[g]
		if len(vals) < n.cfg.MinGroup {
			s := universeStats
			s.Fallback = true
			return s
		}
		return n.summarize(vals)
	}

	// Cache per-group stats; groups repeat across members.
	cache := make(map[contracts.GroupKey]contracts.GroupStats, len(byGroup))

	flip := contracts.SmallerIsBetter(f)
	for i, v := range vectors {
		raw := v.Get(f)
		if contracts.IsMissing(raw) {
			out[i].ZScores[f] = n.cfg.MissingPenalty
			continue
		}
		g := out[i].Group
		s, ok := cache[g]
		if !ok {
			s = statsFor(g)
			cache[g] = s
		}
		out[i].Stats[f] = s

		z := 0.0
		if s.Std > 0 {
			z = (winsorize(raw, s) - s.Mean) / s.Std
		}
		if flip {
			z = -z
		}
		out[i].ZScores[f] = z
	}
}

// summarize computes winsorized group stats. Mean and Std describe the
// winsorized values; Median and IQR describe the raw ones, kept for audit.
func (n *Normalizer) summarize(vals []float64) contracts.GroupStats {
	s := contracts.GroupStats{Size: len(vals)}
	if len(vals) == 0 {
		s.Median = contracts.Missing()
		s.Mean = contracts.Missing()
		s.Std = 0
		s.IQR = contracts.Missing()
		return s
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s.Median = quantile(sorted, 0.5)
	s.IQR = quantile(sorted, 0.75) - quantile(sorted, 0.25)
	s.Lo = quantile(sorted, n.cfg.WinsorizePct)
	s.Hi = quantile(sorted, 1-n.cfg.WinsorizePct)

	var sum float64
	for _, v := range sorted {
		sum += clamp(v, s.Lo, s.Hi)
	}
	s.Mean = sum / float64(len(sorted))

	var ss float64
	for _, v := range sorted {
		d := clamp(v, s.Lo, s.Hi) - s.Mean
		ss += d * d
	}
	if len(sorted) > 1 {
		s.Std = math.Sqrt(ss / float64(len(sorted)-1))
	}
	return s
}

func winsorize(v float64, s contracts.GroupStats) float64 {
	return clamp(v, s.Lo, s.Hi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// quantile interpolates linearly on an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return contracts.Missing()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
