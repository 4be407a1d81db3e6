package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/pkg/logger"
)

// CSVSource reads the unified fundamentals schema from a local CSV file,
// with optional per-ticker price series in a directory of date,close files.
// Columns are matched by header name; an empty cell is the missing sentinel,
// never zero. Prior-period columns carry a "prior_" prefix.
type CSVSource struct {
	path      string
	pricesDir string
	logger    *logger.Logger
}

func NewCSVSource(path, pricesDir string, log *logger.Logger) *CSVSource {
	return &CSVSource{path: path, pricesDir: pricesDir, logger: log}
}

func (s *CSVSource) FetchUniverse(_ context.Context, tickers []string, _ time.Time) ([]*contracts.SecurityMeta, error) {
	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}
	want := tickerSet(tickers)
	var out []*contracts.SecurityMeta
	for _, row := range rows {
		if !want[row.str("ticker")] {
			continue
		}
		out = append(out, &contracts.SecurityMeta{
			Ticker:        row.str("ticker"),
			Name:          row.str("name"),
			Sector:        row.str("sector"),
			SizeBucket:    row.str("size_bucket"),
			Country:       row.str("country"),
			MarketCap:     row.num("market_cap"),
			AvgDailyValue: row.num("avg_daily_value"),
			Halted:        row.flag("trading_halted"),
		})
	}
	return out, nil
}

func (s *CSVSource) FetchFundamentals(_ context.Context, tickers []string, _ time.Time) ([]*contracts.FundamentalRecord, error) {
	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}
	want := tickerSet(tickers)
	var out []*contracts.FundamentalRecord
	for _, row := range rows {
		if !want[row.str("ticker")] {
			continue
		}
		rec, err := row.record()
		if err != nil {
			s.logger.WithError(err).WithField("ticker", row.str("ticker")).Warn("csv row unparseable, skipped")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *CSVSource) FetchPrices(_ context.Context, tickers []string, from, to time.Time) (map[string]*contracts.PriceHistory, error) {
	out := make(map[string]*contracts.PriceHistory)
	if s.pricesDir == "" {
		return out, nil
	}
	for _, ticker := range tickers {
		h, err := s.readPrices(ticker, from, to)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out[ticker] = h
	}
	return out, nil
}

func (s *CSVSource) readPrices(ticker string, from, to time.Time) (*contracts.PriceHistory, error) {
	f, err := os.Open(filepath.Join(s.pricesDir, ticker+".csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read price header for %s: %w", ticker, err)
	}
	dateIdx, closeIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateIdx = i
		case "close", "adj_close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("price file for %s lacks date/close columns", ticker)
	}

	h := &contracts.PriceHistory{Ticker: ticker}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prices for %s: %w", ticker, err)
		}
		d, err := time.Parse("2006-01-02", strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil {
			continue
		}
		h.Points = append(h.Points, contracts.PricePoint{Date: d, Close: c})
	}
	h.Sort()
	return h, nil
}

// csvRow pairs one record with its header index.
type csvRow struct {
	index  map[string]int
	fields []string
}

func (s *CSVSource) readRows() ([]csvRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := index["ticker"]; !ok {
		return nil, fmt.Errorf("%s lacks a ticker column", s.path)
	}

	var rows []csvRow
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		rows = append(rows, csvRow{index: index, fields: fields})
	}
	return rows, nil
}

func (row csvRow) str(col string) string {
	i, ok := row.index[col]
	if !ok || i >= len(row.fields) {
		return ""
	}
	return strings.TrimSpace(row.fields[i])
}

// num parses a numeric cell; absence or emptiness is the missing sentinel.
func (row csvRow) num(col string) float64 {
	raw := row.str(col)
	if raw == "" {
		return contracts.Missing()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return contracts.Missing()
	}
	return v
}

func (row csvRow) flag(col string) bool {
	switch strings.ToLower(row.str(col)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func (row csvRow) date(col string) (time.Time, error) {
	raw := row.str(col)
	if raw == "" {
		return time.Time{}, fmt.Errorf("column %s is empty", col)
	}
	return time.Parse("2006-01-02", raw)
}

func (row csvRow) record() (*contracts.FundamentalRecord, error) {
	reported, err := row.date("reporting_date")
	if err != nil {
		return nil, err
	}
	filed, err := row.date("filing_date")
	if err != nil {
		return nil, err
	}

	rec := &contracts.FundamentalRecord{
		Ticker:             row.str("ticker"),
		Name:               row.str("name"),
		Currency:           row.str("currency"),
		Sector:             row.str("sector"),
		SizeBucket:         row.str("size_bucket"),
		Price:              row.num("price"),
		MarketCap:          row.num("market_cap"),
		EnterpriseValue:    row.num("enterprise_value"),
		TotalDebt:          row.num("total_debt"),
		Cash:               row.num("cash"),
		TotalEquity:        row.num("total_equity"),
		EBIT:               row.num("ebit"),
		EBITDA:             row.num("ebitda"),
		GrossProfit:        row.num("gross_profit"),
		Revenue:            row.num("revenue"),
		OperatingCashFlow:  row.num("operating_cash_flow"),
		CapEx:              row.num("capex"),
		PretaxIncome:       row.num("pretax_income"),
		TaxExpense:         row.num("tax_expense"),
		InterestExpense:    row.num("interest_expense"),
		NetIncome:          row.num("net_income"),
		TotalAssets:        row.num("total_assets"),
		SharesOutstanding:  row.num("shares_outstanding"),
		WorkingCapital:     row.num("working_capital"),
		RetainedEarnings:   row.num("retained_earnings"),
		CurrentAssets:      row.num("current_assets"),
		CurrentLiabilities: row.num("current_liabilities"),
		Receivables:        row.num("receivables"),
		SGAExpense:         row.num("sga_expense"),
		Depreciation:       row.num("depreciation"),
		AuditQualified:     row.flag("audit_qualified"),
		FrequentRestatement: row.flag("frequent_restatement"),
		TradingHalted:      row.flag("trading_halted"),
		ReportingDate:      reported,
		FilingDate:         filed,
	}
	if row.hasPrior() {
		rec.Prior = &contracts.PriorFundamentals{
			TotalAssets:        row.num("prior_total_assets"),
			SharesOutstanding:  row.num("prior_shares_outstanding"),
			Revenue:            row.num("prior_revenue"),
			Receivables:        row.num("prior_receivables"),
			GrossProfit:        row.num("prior_gross_profit"),
			SGAExpense:         row.num("prior_sga_expense"),
			Depreciation:       row.num("prior_depreciation"),
			TotalDebt:          row.num("prior_total_debt"),
			TotalEquity:        row.num("prior_total_equity"),
			CurrentAssets:      row.num("prior_current_assets"),
			CurrentLiabilities: row.num("prior_current_liabilities"),
			NetIncome:          row.num("prior_net_income"),
			OperatingCashFlow:  row.num("prior_operating_cash_flow"),
		}
	}
	return rec, nil
}

// hasPrior reports whether any prior-period cell carries a value.
func (row csvRow) hasPrior() bool {
	for col := range row.index {
		if strings.HasPrefix(col, "prior_") && row.str(col) != "" {
			return true
		}
	}
	return false
}

func tickerSet(tickers []string) map[string]bool {
	out := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		out[t] = true
	}
	return out
}
