package contracts

import (
	"context"
	"time"
)

// SecurityMeta is per-ticker universe metadata used for liquidity checks and
// normalization grouping.
type SecurityMeta struct {
	Ticker        string
	Name          string
	Sector        string
	SizeBucket    string
	Country       string
	MarketCap     float64
	AvgDailyValue float64 // average daily traded value
	Halted        bool
}

// DataSource is the capability set every data backend implements. New
// sources register under a name in the datasource registry; the pipeline
// never depends on a concrete backend.
//
// Unknown or unavailable numeric fields must be the missing sentinel, never
// an omitted column.
type DataSource interface {
	// FetchUniverse returns metadata for the ticker list as of a date.
	FetchUniverse(ctx context.Context, tickers []string, asOf time.Time) ([]*SecurityMeta, error)

	// FetchFundamentals returns the unified fundamental records for the
	// ticker list as of a date. Records not yet filed by asOf may still be
	// returned; visibility under the reporting lag is the pipeline's job.
	FetchFundamentals(ctx context.Context, tickers []string, asOf time.Time) ([]*FundamentalRecord, error)

	// FetchPrices returns adjusted close series per ticker over a range.
	FetchPrices(ctx context.Context, tickers []string, from, to time.Time) (map[string]*PriceHistory, error)
}
