package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/portfolio"
	"github.com/wonny/valuescreen/pkg/logger"
)

// State tracks a rebalance period through its lifecycle. Transitions only
// move forward; a period that cannot advance degrades and carries the prior
// book instead.
type State string

const (
	StateAwaitingData   State = "awaiting_data"
	StateFactorsReady   State = "factors_ready"
	StatePortfolioReady State = "portfolio_ready"
	StateExecuted       State = "executed"
	StateDegraded       State = "degraded"
)

// Snapshot is the ranked cross-section at one as-of date, produced by the
// screening pipeline. Everything in it must be computed from data visible at
// that date.
type Snapshot struct {
	Scores  []*contracts.CompositeScore
	Sectors map[string]string
	Meta    map[string]*contracts.SecurityMeta
}

// SnapshotProvider supplies the cross-section at each rebalance date. The
// provider owns the reporting-lag filter; the simulator never sees a record,
// only its consequences.
type SnapshotProvider interface {
	SnapshotAt(ctx context.Context, asOf time.Time) (*Snapshot, error)
}

// Config drives one backtest run.
type Config struct {
	Start       time.Time
	End         time.Time
	Rebalance   Rebalance
	LagDays     int     // reporting lag applied by the snapshot provider
	TCBps       float64 // transaction cost, basis points on traded weight
	SlippageBps float64 // spread slippage, basis points on traded weight
	Benchmark   string
}

func DefaultConfig() Config {
	return Config{
		Rebalance:   RebalanceQuarterly,
		LagDays:     45,
		TCBps:       10,
		SlippageBps: 5,
	}
}

func (c Config) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("start and end must be set")
	}
	if !c.End.After(c.Start) {
		return fmt.Errorf("end %s must be after start %s",
			c.End.Format("2006-01-02"), c.Start.Format("2006-01-02"))
	}
	if err := c.Rebalance.Validate(); err != nil {
		return err
	}
	if c.LagDays < 0 {
		return fmt.Errorf("lag days must be >= 0: got %d", c.LagDays)
	}
	if c.TCBps < 0 || c.SlippageBps < 0 {
		return fmt.Errorf("costs must be >= 0")
	}
	return nil
}

// Period is one rebalance interval: decided at AsOf, filled at FillDate,
// held until the next fill.
type Period struct {
	AsOf            time.Time          `json:"as_of"`
	FillDate        time.Time          `json:"fill_date"`
	State           State              `json:"state"`
	Degraded        bool               `json:"degraded"`
	Reason          string             `json:"reason,omitempty"`
	Holdings        map[string]float64 `json:"holdings"`
	Turnover        float64            `json:"turnover"`
	Cost            float64            `json:"cost"`
	GrossReturn     float64            `json:"gross_return"`
	NetReturn       float64            `json:"net_return"`
	BenchmarkReturn float64            `json:"benchmark_return"`
}

// Result is a finished run. Metrics are computed exactly once, after the
// last period settles.
type Result struct {
	Config     Config    `json:"config"`
	ConfigHash string    `json:"config_hash,omitempty"`
	Periods    []*Period `json:"periods"`
	Metrics    Metrics   `json:"metrics"`
}

// ErrWindowTooShort means the date range holds fewer than two rebalance
// dates, so no holding interval exists.
var ErrWindowTooShort = errors.New("backtest window holds no complete period")

// Simulator walks the rebalance schedule, asks the provider for each
// cross-section, constructs the book and accounts for fills, costs and
// returns. A date where the provider or the constructor fails keeps the
// prior book and marks the period degraded; the run never aborts over one
// bad date.
type Simulator struct {
	cfg         Config
	constructor *portfolio.Constructor
	logger      *logger.Logger
}

func NewSimulator(cfg Config, ctor *portfolio.Constructor, log *logger.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, constructor: ctor, logger: log}, nil
}

// Run executes the backtest. prices must cover every ticker the provider can
// select plus the holding window; benchmark may be nil.
func (s *Simulator) Run(ctx context.Context, provider SnapshotProvider, prices map[string]*contracts.PriceHistory, benchmark *contracts.PriceHistory) (*Result, error) {
	dates := Schedule(s.cfg.Start, s.cfg.End, s.cfg.Rebalance)
	if len(dates) < 2 {
		return nil, ErrWindowTooShort
	}

	s.logger.WithFields(map[string]interface{}{
		"start":      s.cfg.Start.Format("2006-01-02"),
		"end":        s.cfg.End.Format("2006-01-02"),
		"rebalances": len(dates),
		"frequency":  string(s.cfg.Rebalance),
	}).Info("backtest started")

	held := map[string]float64{}
	periods := make([]*Period, 0, len(dates)-1)

	for i := 0; i < len(dates)-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asOf := dates[i]
		fill := NextTradingDay(asOf)
		nextFill := NextTradingDay(dates[i+1])

		p := s.rebalance(ctx, provider, asOf, fill, held)
		s.settle(p, prices, benchmark, fill, nextFill, held)
		held = p.Holdings
		periods = append(periods, p)
	}

	res := &Result{
		Config:  s.cfg,
		Periods: periods,
		Metrics: computeMetrics(periods, s.cfg.Rebalance.PeriodsPerYear()),
	}
	s.logger.WithFields(map[string]interface{}{
		"periods":    len(periods),
		"degraded":   res.Metrics.DegradedPeriods,
		"cum_return": res.Metrics.CumulativeReturn,
		"sharpe":     res.Metrics.Sharpe,
	}).Info("backtest finalized")
	return res, nil
}

// rebalance advances one period through the state machine up to the point
// where its target book is known.
func (s *Simulator) rebalance(ctx context.Context, provider SnapshotProvider, asOf, fill time.Time, held map[string]float64) *Period {
	p := &Period{AsOf: asOf, FillDate: fill, State: StateAwaitingData}

	snap, err := provider.SnapshotAt(ctx, asOf)
	if err != nil {
		s.degrade(p, held, "snapshot failed", err)
		return p
	}
	p.State = StateFactorsReady

	heldSet := make(map[string]bool, len(held))
	for t := range held {
		heldSet[t] = true
	}
	book, err := s.constructor.Construct(asOf, snap.Scores, heldSet, snap.Sectors, snap.Meta)
	if err != nil {
		s.degrade(p, held, "construction failed", err)
		return p
	}
	p.State = StatePortfolioReady
	p.Holdings = book.Weights
	return p
}

// degrade keeps the prior book for the period. The prior weights drift
// untouched; no trade, no cost. The cause travels with the period so the
// report can say why the date degraded.
func (s *Simulator) degrade(p *Period, held map[string]float64, msg string, err error) {
	p.State = StateDegraded
	p.Degraded = true
	p.Reason = msg
	if err != nil {
		p.Reason = msg + ": " + err.Error()
	}
	p.Holdings = make(map[string]float64, len(held))
	for t, w := range held {
		p.Holdings[t] = w
	}
	s.logger.WithError(err).WithField("as_of", p.AsOf.Format("2006-01-02")).
		Warn("rebalance degraded, holding prior book: " + msg)
}

// settle fills the target book at T+1, charges costs on the traded weight
// and accrues the holding-window return.
func (s *Simulator) settle(p *Period, prices map[string]*contracts.PriceHistory, benchmark *contracts.PriceHistory, fill, nextFill time.Time, prior map[string]float64) {
	p.Turnover = turnover(prior, p.Holdings)
	p.Cost = p.Turnover * (s.cfg.TCBps + s.cfg.SlippageBps) / 10000

	gross := 0.0
	for ticker, w := range p.Holdings {
		h := prices[ticker]
		if h == nil {
			s.logger.WithField("ticker", ticker).Warn("no price series, assuming flat")
			continue
		}
		r := h.ReturnBetween(fill, nextFill)
		if contracts.IsMissing(r) {
			s.logger.WithField("ticker", ticker).Warn("holding return unavailable, assuming flat")
			continue
		}
		gross += w * r
	}
	p.GrossReturn = gross
	p.NetReturn = gross - p.Cost

	if benchmark != nil {
		if br := benchmark.ReturnBetween(fill, nextFill); !contracts.IsMissing(br) {
			p.BenchmarkReturn = br
		}
	}
	if !p.Degraded {
		p.State = StateExecuted
	}
}

// turnover is the total traded weight between two books, buys plus sells.
// Costs are charged on this two-way figure.
func turnover(prior, target map[string]float64) float64 {
	sum := 0.0
	for t, w := range target {
		sum += abs(w - prior[t])
	}
	for t, w := range prior {
		if _, ok := target[t]; !ok {
			sum += w
		}
	}
	return sum
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
