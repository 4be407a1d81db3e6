package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Missing is the explicit sentinel for a value that could not be computed or
// was not supplied. It is NaN so that it can live in plain float64 fields and
// never masquerades as zero.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v carries the missing sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// FundamentalRecord is one ticker's unified fundamental snapshot at one
// reporting period. Float fields use the missing sentinel when a source could
// not supply them. Records are immutable once they enter the pipeline.
type FundamentalRecord struct {
	Ticker     string
	Name       string
	Currency   string
	Sector     string
	SizeBucket string

	Price             float64
	MarketCap         float64
	EnterpriseValue   float64
	TotalDebt         float64
	Cash              float64
	TotalEquity       float64
	EBIT              float64
	EBITDA            float64
	GrossProfit       float64
	Revenue           float64
	OperatingCashFlow float64
	CapEx             float64
	PretaxIncome      float64
	TaxExpense        float64
	InterestExpense   float64
	NetIncome         float64
	TotalAssets       float64
	SharesOutstanding float64
	WorkingCapital    float64
	RetainedEarnings  float64
	CurrentAssets     float64
	CurrentLiabilities float64
	Receivables       float64
	SGAExpense        float64
	Depreciation      float64

	// Prior-period values, used by investment factors, the Piotroski score
	// and the Beneish indices. Nil when the source has no history.
	Prior *PriorFundamentals

	// Accounting-quality flags supplied by the data layer.
	AuditQualified      bool
	FrequentRestatement bool
	TradingHalted       bool

	ReportingDate time.Time
	FilingDate    time.Time
}

// PriorFundamentals carries the previous period's values needed for
// period-over-period factors. Missing fields are the sentinel.
type PriorFundamentals struct {
	TotalAssets        float64
	SharesOutstanding  float64
	Revenue            float64
	Receivables        float64
	GrossProfit        float64
	SGAExpense         float64
	Depreciation       float64
	TotalDebt          float64
	TotalEquity        float64
	CurrentAssets      float64
	CurrentLiabilities float64
	NetIncome          float64
	OperatingCashFlow  float64
}

// SchemaError reports a record that failed required-field validation. The
// record is excluded from the run; the run continues.
type SchemaError struct {
	Ticker     string
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("record %s failed schema validation: %s",
		e.Ticker, strings.Join(e.Violations, "; "))
}

// Validate enforces the required-field contract. A nil return means the
// record may enter the pipeline.
func (r *FundamentalRecord) Validate() error {
	var violations []string

	if r.Ticker == "" {
		violations = append(violations, "ticker is empty")
	}
	if IsMissing(r.Price) || r.Price <= 0 {
		violations = append(violations, "price must be > 0")
	}
	if IsMissing(r.MarketCap) || r.MarketCap <= 0 {
		violations = append(violations, "market_cap must be > 0")
	}
	if IsMissing(r.TotalAssets) || r.TotalAssets <= 0 {
		violations = append(violations, "total_assets must be > 0")
	}
	if IsMissing(r.SharesOutstanding) || r.SharesOutstanding <= 0 {
		violations = append(violations, "shares_outstanding must be > 0")
	}
	if r.ReportingDate.IsZero() {
		violations = append(violations, "reporting_date is unset")
	}
	if r.FilingDate.IsZero() {
		violations = append(violations, "filing_date is unset")
	}
	if !r.FilingDate.IsZero() && !r.ReportingDate.IsZero() && r.FilingDate.Before(r.ReportingDate) {
		violations = append(violations, "filing_date precedes reporting_date")
	}

	if len(violations) > 0 {
		return &SchemaError{Ticker: r.Ticker, Violations: violations}
	}
	return nil
}

// DerivedEnterpriseValue returns the record's enterprise value, computing
// MarketCap + TotalDebt - Cash when the source did not supply one.
func (r *FundamentalRecord) DerivedEnterpriseValue() float64 {
	if !IsMissing(r.EnterpriseValue) {
		return r.EnterpriseValue
	}
	if IsMissing(r.MarketCap) || IsMissing(r.TotalDebt) || IsMissing(r.Cash) {
		return Missing()
	}
	return r.MarketCap + r.TotalDebt - r.Cash
}

// DerivedNetIncome returns net income, falling back to
// PretaxIncome - TaxExpense when the source did not supply one.
func (r *FundamentalRecord) DerivedNetIncome() float64 {
	if !IsMissing(r.NetIncome) {
		return r.NetIncome
	}
	if IsMissing(r.PretaxIncome) || IsMissing(r.TaxExpense) {
		return Missing()
	}
	return r.PretaxIncome - r.TaxExpense
}

// VisibleAt reports whether the record may be used at the as-of date under
// the reporting-lag rule: filing_date + lag must not be after asOf.
func (r *FundamentalRecord) VisibleAt(asOf time.Time, lagDays int) bool {
	return !r.FilingDate.AddDate(0, 0, lagDays).After(asOf)
}
