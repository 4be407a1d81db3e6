package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/valuescreen/internal/cache"
	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/httputil"
	"github.com/wonny/valuescreen/pkg/logger"
)

// HTTPSource pulls fundamentals, universe metadata and prices from a market
// data API, one ticker per request, with payloads cached behind the
// read-through cache. Numeric API fields are nullable; null maps to the
// missing sentinel.
type HTTPSource struct {
	client  *httputil.Client
	cache   *cache.Cache
	baseURL string
	apiKey  string
	logger  *logger.Logger
}

func NewHTTPSource(client *httputil.Client, c *cache.Cache, baseURL, apiKey string, log *logger.Logger) *HTTPSource {
	return &HTTPSource{
		client:  client,
		cache:   c,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  log,
	}
}

func (s *HTTPSource) FetchUniverse(ctx context.Context, tickers []string, asOf time.Time) ([]*contracts.SecurityMeta, error) {
	var out []*contracts.SecurityMeta
	for _, ticker := range tickers {
		body, err := s.fetch(ctx, "universe", ticker, asOf, nil)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("universe fetch failed, skipped")
			continue
		}
		var p universePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode universe for %s: %w", ticker, err)
		}
		out = append(out, p.meta(ticker))
	}
	return out, nil
}

func (s *HTTPSource) FetchFundamentals(ctx context.Context, tickers []string, asOf time.Time) ([]*contracts.FundamentalRecord, error) {
	var out []*contracts.FundamentalRecord
	for _, ticker := range tickers {
		body, err := s.fetch(ctx, "fundamentals", ticker, asOf, nil)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("fundamentals fetch failed, skipped")
			continue
		}
		var p fundamentalsPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode fundamentals for %s: %w", ticker, err)
		}
		rec, err := p.record(ticker)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("fundamentals payload invalid, skipped")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *HTTPSource) FetchPrices(ctx context.Context, tickers []string, from, to time.Time) (map[string]*contracts.PriceHistory, error) {
	out := make(map[string]*contracts.PriceHistory, len(tickers))
	extra := url.Values{
		"from": {from.Format("2006-01-02")},
		"to":   {to.Format("2006-01-02")},
	}
	for _, ticker := range tickers {
		body, err := s.fetch(ctx, "prices", ticker, to, extra)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("price fetch failed, skipped")
			continue
		}
		var h contracts.PriceHistory
		if err := json.Unmarshal(body, &h); err != nil {
			return nil, fmt.Errorf("decode prices for %s: %w", ticker, err)
		}
		h.Ticker = ticker
		h.Sort()
		out[ticker] = &h
	}
	return out, nil
}

// fetch resolves one endpoint through the cache.
func (s *HTTPSource) fetch(ctx context.Context, endpoint, ticker string, asOf time.Time, extra url.Values) ([]byte, error) {
	key := cache.Key("http/"+endpoint, ticker, asOf)
	return s.cache.GetOrFetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		q := url.Values{
			"ticker": {ticker},
			"asof":   {asOf.Format("2006-01-02")},
		}
		for k, vs := range extra {
			q[k] = vs
		}
		if s.apiKey != "" {
			q.Set("apikey", s.apiKey)
		}
		return s.client.GetBody(ctx, fmt.Sprintf("%s/v1/%s?%s", s.baseURL, endpoint, q.Encode()))
	})
}

type universePayload struct {
	Name          string   `json:"name"`
	Sector        string   `json:"sector"`
	SizeBucket    string   `json:"size_bucket"`
	Country       string   `json:"country"`
	MarketCap     *float64 `json:"market_cap"`
	AvgDailyValue *float64 `json:"avg_daily_value"`
	Halted        bool     `json:"halted"`
}

func (p *universePayload) meta(ticker string) *contracts.SecurityMeta {
	return &contracts.SecurityMeta{
		Ticker:        ticker,
		Name:          p.Name,
		Sector:        p.Sector,
		SizeBucket:    p.SizeBucket,
		Country:       p.Country,
		MarketCap:     deref(p.MarketCap),
		AvgDailyValue: deref(p.AvgDailyValue),
		Halted:        p.Halted,
	}
}

type fundamentalsPayload struct {
	Name               string         `json:"name"`
	Currency           string         `json:"currency"`
	Sector             string         `json:"sector"`
	SizeBucket         string         `json:"size_bucket"`
	Price              *float64       `json:"price"`
	MarketCap          *float64       `json:"market_cap"`
	EnterpriseValue    *float64       `json:"enterprise_value"`
	TotalDebt          *float64       `json:"total_debt"`
	Cash               *float64       `json:"cash"`
	TotalEquity        *float64       `json:"total_equity"`
	EBIT               *float64       `json:"ebit"`
	EBITDA             *float64       `json:"ebitda"`
	GrossProfit        *float64       `json:"gross_profit"`
	Revenue            *float64       `json:"revenue"`
	OperatingCashFlow  *float64       `json:"operating_cash_flow"`
	CapEx              *float64       `json:"capex"`
	PretaxIncome       *float64       `json:"pretax_income"`
	TaxExpense         *float64       `json:"tax_expense"`
	InterestExpense    *float64       `json:"interest_expense"`
	NetIncome          *float64       `json:"net_income"`
	TotalAssets        *float64       `json:"total_assets"`
	SharesOutstanding  *float64       `json:"shares_outstanding"`
	WorkingCapital     *float64       `json:"working_capital"`
	RetainedEarnings   *float64       `json:"retained_earnings"`
	CurrentAssets      *float64       `json:"current_assets"`
	CurrentLiabilities *float64       `json:"current_liabilities"`
	Receivables        *float64       `json:"receivables"`
	SGAExpense         *float64       `json:"sga_expense"`
	Depreciation       *float64       `json:"depreciation"`
	Prior              *priorPayload  `json:"prior"`
	AuditQualified     bool           `json:"audit_qualified"`
	FrequentRestatement bool          `json:"frequent_restatement"`
	TradingHalted      bool           `json:"trading_halted"`
	ReportingDate      string         `json:"reporting_date"`
	FilingDate         string         `json:"filing_date"`
}

type priorPayload struct {
	TotalAssets        *float64 `json:"total_assets"`
	SharesOutstanding  *float64 `json:"shares_outstanding"`
	Revenue            *float64 `json:"revenue"`
	Receivables        *float64 `json:"receivables"`
	GrossProfit        *float64 `json:"gross_profit"`
	SGAExpense         *float64 `json:"sga_expense"`
	Depreciation       *float64 `json:"depreciation"`
	TotalDebt          *float64 `json:"total_debt"`
	TotalEquity        *float64 `json:"total_equity"`
	CurrentAssets      *float64 `json:"current_assets"`
	CurrentLiabilities *float64 `json:"current_liabilities"`
	NetIncome          *float64 `json:"net_income"`
	OperatingCashFlow  *float64 `json:"operating_cash_flow"`
}

func (p *fundamentalsPayload) record(ticker string) (*contracts.FundamentalRecord, error) {
	reported, err := time.Parse("2006-01-02", p.ReportingDate)
	if err != nil {
		return nil, fmt.Errorf("reporting_date: %w", err)
	}
	filed, err := time.Parse("2006-01-02", p.FilingDate)
	if err != nil {
		return nil, fmt.Errorf("filing_date: %w", err)
	}

	rec := &contracts.FundamentalRecord{
		Ticker:              ticker,
		Name:                p.Name,
		Currency:            p.Currency,
		Sector:              p.Sector,
		SizeBucket:          p.SizeBucket,
		Price:               deref(p.Price),
		MarketCap:           deref(p.MarketCap),
		EnterpriseValue:     deref(p.EnterpriseValue),
		TotalDebt:           deref(p.TotalDebt),
		Cash:                deref(p.Cash),
		TotalEquity:         deref(p.TotalEquity),
		EBIT:                deref(p.EBIT),
		EBITDA:              deref(p.EBITDA),
		GrossProfit:         deref(p.GrossProfit),
		Revenue:             deref(p.Revenue),
		OperatingCashFlow:   deref(p.OperatingCashFlow),
		CapEx:               deref(p.CapEx),
		PretaxIncome:        deref(p.PretaxIncome),
		TaxExpense:          deref(p.TaxExpense),
		InterestExpense:     deref(p.InterestExpense),
		NetIncome:           deref(p.NetIncome),
		TotalAssets:         deref(p.TotalAssets),
		SharesOutstanding:   deref(p.SharesOutstanding),
		WorkingCapital:      deref(p.WorkingCapital),
		RetainedEarnings:    deref(p.RetainedEarnings),
		CurrentAssets:       deref(p.CurrentAssets),
		CurrentLiabilities:  deref(p.CurrentLiabilities),
		Receivables:         deref(p.Receivables),
		SGAExpense:          deref(p.SGAExpense),
		Depreciation:        deref(p.Depreciation),
		AuditQualified:      p.AuditQualified,
		FrequentRestatement: p.FrequentRestatement,
		TradingHalted:       p.TradingHalted,
		ReportingDate:       reported,
		FilingDate:          filed,
	}
	if pr := p.Prior; pr != nil {
		rec.Prior = &contracts.PriorFundamentals{
			TotalAssets:        deref(pr.TotalAssets),
			SharesOutstanding:  deref(pr.SharesOutstanding),
			Revenue:            deref(pr.Revenue),
			Receivables:        deref(pr.Receivables),
			GrossProfit:        deref(pr.GrossProfit),
			SGAExpense:         deref(pr.SGAExpense),
			Depreciation:       deref(pr.Depreciation),
			TotalDebt:          deref(pr.TotalDebt),
			TotalEquity:        deref(pr.TotalEquity),
			CurrentAssets:      deref(pr.CurrentAssets),
			CurrentLiabilities: deref(pr.CurrentLiabilities),
			NetIncome:          deref(pr.NetIncome),
			OperatingCashFlow:  deref(pr.OperatingCashFlow),
		}
	}
	return rec, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return contracts.Missing()
	}
	return *p
}
