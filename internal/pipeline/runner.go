package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/valuescreen/internal/backtest"
	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/factors"
	"github.com/wonny/valuescreen/internal/gates"
	"github.com/wonny/valuescreen/internal/normalize"
	"github.com/wonny/valuescreen/internal/scoring"
	"github.com/wonny/valuescreen/pkg/logger"
)

// Config controls one pipeline run.
type Config struct {
	Tickers      []string
	LagDays      int // reporting lag for record visibility
	Workers      int // bounded parallelism for factor computation
	MinMarketCap float64
	Countries    []string // empty means all countries
}

func DefaultConfig() Config {
	return Config{LagDays: 45, Workers: 8}
}

func (c Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("ticker universe is empty")
	}
	if c.LagDays < 0 {
		return fmt.Errorf("lag days must be >= 0: got %d", c.LagDays)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1: got %d", c.Workers)
	}
	return nil
}

// momentumLookbackMonths is how much price history a run fetches: the
// momentum window plus a month of slack for thin calendars.
const momentumLookbackMonths = 13

// ScreenRow is one ticker's full screening outcome, gated or not.
type ScreenRow struct {
	Ticker          string
	Name            string
	Sector          string
	Price           float64
	MarketCap       float64
	EnterpriseValue float64
	Factors         map[contracts.Factor]float64 // raw values
	Composite       float64
	Rank            int // 0 when gated out
	GatePassed      bool
	GateReason      string
	Flags           []contracts.RiskFlag
}

// ScreenResult is the full cross-section at one as-of date. Rows are ordered
// rank first, then gated-out names by ticker.
type ScreenResult struct {
	AsOf     time.Time
	Rows     []*ScreenRow
	Skipped  int // records dropped by schema validation or the lag filter
	Excluded int // records dropped by hard gates
}

// Runner wires the stages: fetch, validate, compute, normalize, gate, score.
// Factor computation fans out across a bounded worker pool; everything after
// the barrier runs on sorted input so two runs over the same data produce
// identical output.
type Runner struct {
	cfg        Config
	source     contracts.DataSource
	engine     *factors.Engine
	normalizer *normalize.Normalizer
	evaluator  *gates.Evaluator
	scorer     *scoring.Scorer
	logger     *logger.Logger
}

func New(
	cfg Config,
	source contracts.DataSource,
	engine *factors.Engine,
	normalizer *normalize.Normalizer,
	evaluator *gates.Evaluator,
	scorer *scoring.Scorer,
	log *logger.Logger,
) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		engine:     engine,
		normalizer: normalizer,
		evaluator:  evaluator,
		scorer:     scorer,
		logger:     log,
	}, nil
}

// Screen runs the full pipeline at asOf and returns the reportable
// cross-section.
func (r *Runner) Screen(ctx context.Context, asOf time.Time) (*ScreenResult, error) {
	run, err := r.run(ctx, asOf)
	if err != nil {
		return nil, err
	}

	res := &ScreenResult{AsOf: asOf, Skipped: run.skipped}

	byTicker := make(map[string]*contracts.CompositeScore, len(run.scores))
	for _, cs := range run.scores {
		byTicker[cs.Ticker] = cs
	}

	for _, rec := range run.records {
		row := &ScreenRow{
			Ticker:          rec.Ticker,
			Name:            rec.Name,
			Sector:          rec.Sector,
			Price:           rec.Price,
			MarketCap:       rec.MarketCap,
			EnterpriseValue: rec.DerivedEnterpriseValue(),
			Factors:         run.vectors[rec.Ticker].Values,
			GatePassed:      run.gates[rec.Ticker].Passed,
			GateReason:      run.gates[rec.Ticker].Reason(),
			Flags:           run.gates[rec.Ticker].Flags,
		}
		if cs, ok := byTicker[rec.Ticker]; ok {
			row.Composite = cs.Score
			row.Rank = cs.Rank
		} else {
			res.Excluded++
		}
		res.Rows = append(res.Rows, row)
	}

	// Ranked names first, then excluded ones alphabetically.
	sort.Slice(res.Rows, func(i, j int) bool {
		a, b := res.Rows[i], res.Rows[j]
		if (a.Rank > 0) != (b.Rank > 0) {
			return a.Rank > 0
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.Ticker < b.Ticker
	})

	r.logger.WithFields(map[string]interface{}{
		"as_of":    asOf.Format("2006-01-02"),
		"rows":     len(res.Rows),
		"skipped":  res.Skipped,
		"excluded": res.Excluded,
	}).Info("screen completed")
	return res, nil
}

// SnapshotAt implements the backtest's snapshot provider: the ranked
// cross-section of gate-passing names at asOf.
func (r *Runner) SnapshotAt(ctx context.Context, asOf time.Time) (*backtest.Snapshot, error) {
	run, err := r.run(ctx, asOf)
	if err != nil {
		return nil, err
	}

	sectors := make(map[string]string, len(run.records))
	for _, rec := range run.records {
		sectors[rec.Ticker] = rec.Sector
	}
	return &backtest.Snapshot{
		Scores:  run.scores,
		Sectors: sectors,
		Meta:    run.meta,
	}, nil
}

// runState carries the intermediate products of one run. Maps are keyed by
// ticker; records are sorted by ticker ascending.
type runState struct {
	records []*contracts.FundamentalRecord
	meta    map[string]*contracts.SecurityMeta
	vectors map[string]*contracts.FactorVector
	gates   map[string]*contracts.GateResult
	scores  []*contracts.CompositeScore
	skipped int
}

func (r *Runner) run(ctx context.Context, asOf time.Time) (*runState, error) {
	st := &runState{
		meta:    make(map[string]*contracts.SecurityMeta),
		vectors: make(map[string]*contracts.FactorVector),
		gates:   make(map[string]*contracts.GateResult),
	}

	metas, err := r.source.FetchUniverse(ctx, r.cfg.Tickers, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}
	for _, m := range metas {
		st.meta[m.Ticker] = m
	}

	recs, err := r.source.FetchFundamentals(ctx, r.cfg.Tickers, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch fundamentals: %w", err)
	}

	countries := make(map[string]bool, len(r.cfg.Countries))
	for _, c := range r.cfg.Countries {
		countries[c] = true
	}

	// Universe filters, schema validation and the reporting-lag filter all
	// run before any factor is computed. A record filed too recently does
	// not exist for this run.
	for _, rec := range recs {
		if m := st.meta[rec.Ticker]; m != nil {
			if r.cfg.MinMarketCap > 0 && m.MarketCap > 0 && m.MarketCap < r.cfg.MinMarketCap {
				st.skipped++
				continue
			}
			if len(countries) > 0 && m.Country != "" && !countries[m.Country] {
				st.skipped++
				continue
			}
		}
		if err := rec.Validate(); err != nil {
			r.logger.WithError(err).WithField("ticker", rec.Ticker).Warn("record rejected")
			st.skipped++
			continue
		}
		if !rec.VisibleAt(asOf, r.cfg.LagDays) {
			r.logger.WithFields(map[string]interface{}{
				"ticker": rec.Ticker,
				"filed":  rec.FilingDate.Format("2006-01-02"),
			}).Debug("record not yet visible")
			st.skipped++
			continue
		}
		st.records = append(st.records, rec)
	}
	sort.Slice(st.records, func(i, j int) bool { return st.records[i].Ticker < st.records[j].Ticker })

	if len(st.records) == 0 {
		return nil, fmt.Errorf("no visible records at %s", asOf.Format("2006-01-02"))
	}

	visible := make([]string, len(st.records))
	for i, rec := range st.records {
		visible[i] = rec.Ticker
	}
	prices, err := r.source.FetchPrices(ctx, visible, asOf.AddDate(0, -momentumLookbackMonths, 0), asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	// Fan out factor computation; each worker owns one output slot, so the
	// barrier needs no locking and the result order is fixed by the sorted
	// records.
	vectors := make([]*contracts.FactorVector, len(st.records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, rec := range st.records {
		i, rec := i, rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vectors[i] = r.engine.Compute(rec, prices[rec.Ticker], asOf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	groups := make(map[string]contracts.GroupKey, len(st.records))
	for i, rec := range st.records {
		st.vectors[rec.Ticker] = vectors[i]
		groups[rec.Ticker] = contracts.GroupKey{Sector: rec.Sector, SizeBucket: rec.SizeBucket}
	}

	normalized := r.normalizer.Normalize(vectors, groups)

	// Gates run on raw factors; only passers enter the composite ranking.
	var passing []*contracts.NormalizedFactorVector
	byTicker := make(map[string]*contracts.NormalizedFactorVector, len(normalized))
	for _, nv := range normalized {
		byTicker[nv.Ticker] = nv
	}
	for _, rec := range st.records {
		res := r.evaluator.Evaluate(rec, st.vectors[rec.Ticker], st.meta[rec.Ticker])
		st.gates[rec.Ticker] = res
		if res.Passed {
			passing = append(passing, byTicker[rec.Ticker])
		}
	}

	st.scores = r.scorer.Score(passing)
	return st, nil
}
