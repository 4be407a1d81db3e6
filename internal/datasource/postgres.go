package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

// PostgresSource serves fundamentals, universe metadata and prices from the
// warehouse. Each query picks the latest row filed on or before the as-of
// date, so a run at T can never see a filing from after T.
type PostgresSource struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewPostgresSource(pool *pgxpool.Pool, log *logger.Logger) *PostgresSource {
	return &PostgresSource{pool: pool, logger: log}
}

const universeQuery = `
SELECT ticker, name, sector, size_bucket, country,
       market_cap, avg_daily_value, halted
FROM securities
WHERE ticker = ANY($1)
ORDER BY ticker`

func (s *PostgresSource) FetchUniverse(ctx context.Context, tickers []string, _ time.Time) ([]*contracts.SecurityMeta, error) {
	rows, err := s.pool.Query(ctx, universeQuery, tickers)
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	var out []*contracts.SecurityMeta
	for rows.Next() {
		var m contracts.SecurityMeta
		var marketCap, adv *float64
		if err := rows.Scan(&m.Ticker, &m.Name, &m.Sector, &m.SizeBucket, &m.Country,
			&marketCap, &adv, &m.Halted); err != nil {
			return nil, fmt.Errorf("scan universe row: %w", err)
		}
		m.MarketCap = deref(marketCap)
		m.AvgDailyValue = deref(adv)
		out = append(out, &m)
	}
	return out, rows.Err()
}

const fundamentalsQuery = `
SELECT DISTINCT ON (f.ticker)
       f.ticker, f.name, f.currency, f.sector, f.size_bucket,
       f.price, f.market_cap, f.enterprise_value, f.total_debt, f.cash,
       f.total_equity, f.ebit, f.ebitda, f.gross_profit, f.revenue,
       f.operating_cash_flow, f.capex, f.pretax_income, f.tax_expense,
       f.interest_expense, f.net_income, f.total_assets, f.shares_outstanding,
       f.working_capital, f.retained_earnings, f.current_assets,
       f.current_liabilities, f.receivables, f.sga_expense, f.depreciation,
       f.audit_qualified, f.frequent_restatement, f.trading_halted,
       f.reporting_date, f.filing_date,
       p.total_assets, p.shares_outstanding, p.revenue, p.receivables,
       p.gross_profit, p.sga_expense, p.depreciation, p.total_debt,
       p.total_equity, p.current_assets, p.current_liabilities,
       p.net_income, p.operating_cash_flow
FROM fundamentals f
LEFT JOIN fundamentals p
       ON p.ticker = f.ticker
      AND p.reporting_date = f.reporting_date - INTERVAL '1 year'
WHERE f.ticker = ANY($1)
  AND f.filing_date <= $2
ORDER BY f.ticker, f.reporting_date DESC`

func (s *PostgresSource) FetchFundamentals(ctx context.Context, tickers []string, asOf time.Time) ([]*contracts.FundamentalRecord, error) {
	rows, err := s.pool.Query(ctx, fundamentalsQuery, tickers, asOf)
	if err != nil {
		return nil, fmt.Errorf("query fundamentals: %w", err)
	}
	defer rows.Close()

	var out []*contracts.FundamentalRecord
	for rows.Next() {
		rec, err := scanFundamentals(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanFundamentals(rows pgx.Rows) (*contracts.FundamentalRecord, error) {
	var rec contracts.FundamentalRecord
	cur := make([]*float64, 25)
	curDest := make([]interface{}, 0, 48)
	curDest = append(curDest,
		&rec.Ticker, &rec.Name, &rec.Currency, &rec.Sector, &rec.SizeBucket)
	for i := range cur {
		curDest = append(curDest, &cur[i])
	}
	curDest = append(curDest,
		&rec.AuditQualified, &rec.FrequentRestatement, &rec.TradingHalted,
		&rec.ReportingDate, &rec.FilingDate)
	prior := make([]*float64, 13)
	for i := range prior {
		curDest = append(curDest, &prior[i])
	}

	if err := rows.Scan(curDest...); err != nil {
		return nil, fmt.Errorf("scan fundamentals row: %w", err)
	}

	rec.Price = deref(cur[0])
	rec.MarketCap = deref(cur[1])
	rec.EnterpriseValue = deref(cur[2])
	rec.TotalDebt = deref(cur[3])
	rec.Cash = deref(cur[4])
	rec.TotalEquity = deref(cur[5])
	rec.EBIT = deref(cur[6])
	rec.EBITDA = deref(cur[7])
	rec.GrossProfit = deref(cur[8])
	rec.Revenue = deref(cur[9])
	rec.OperatingCashFlow = deref(cur[10])
	rec.CapEx = deref(cur[11])
	rec.PretaxIncome = deref(cur[12])
	rec.TaxExpense = deref(cur[13])
	rec.InterestExpense = deref(cur[14])
	rec.NetIncome = deref(cur[15])
	rec.TotalAssets = deref(cur[16])
	rec.SharesOutstanding = deref(cur[17])
	rec.WorkingCapital = deref(cur[18])
	rec.RetainedEarnings = deref(cur[19])
	rec.CurrentAssets = deref(cur[20])
	rec.CurrentLiabilities = deref(cur[21])
	rec.Receivables = deref(cur[22])
	rec.SGAExpense = deref(cur[23])
	rec.Depreciation = deref(cur[24])

	hasPrior := false
	for _, p := range prior {
		if p != nil {
			hasPrior = true
			break
		}
	}
	if hasPrior {
		rec.Prior = &contracts.PriorFundamentals{
			TotalAssets:        deref(prior[0]),
			SharesOutstanding:  deref(prior[1]),
			Revenue:            deref(prior[2]),
			Receivables:        deref(prior[3]),
			GrossProfit:        deref(prior[4]),
			SGAExpense:         deref(prior[5]),
			Depreciation:       deref(prior[6]),
			TotalDebt:          deref(prior[7]),
			TotalEquity:        deref(prior[8]),
			CurrentAssets:      deref(prior[9]),
			CurrentLiabilities: deref(prior[10]),
			NetIncome:          deref(prior[11]),
			OperatingCashFlow:  deref(prior[12]),
		}
	}
	return &rec, nil
}

const pricesQuery = `
SELECT ticker, trade_date, adj_close
FROM prices
WHERE ticker = ANY($1)
  AND trade_date BETWEEN $2 AND $3
ORDER BY ticker, trade_date`

func (s *PostgresSource) FetchPrices(ctx context.Context, tickers []string, from, to time.Time) (map[string]*contracts.PriceHistory, error) {
	rows, err := s.pool.Query(ctx, pricesQuery, tickers, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*contracts.PriceHistory)
	for rows.Next() {
		var ticker string
		var date time.Time
		var adjClose float64
		if err := rows.Scan(&ticker, &date, &adjClose); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		h := out[ticker]
		if h == nil {
			h = &contracts.PriceHistory{Ticker: ticker}
			out[ticker] = h
		}
		h.Points = append(h.Points, contracts.PricePoint{Date: date, Close: adjClose})
	}
	return out, rows.Err()
}

// NewPool builds the pgx pool from a database URL with the given limits.
func NewPool(ctx context.Context, url string, maxConns, minConns int32, maxLifetime, maxIdle time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = maxLifetime
	cfg.MaxConnIdleTime = maxIdle

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
