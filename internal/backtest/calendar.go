package backtest

import (
	"fmt"
	"time"
)

// Rebalance is the schedule frequency.
type Rebalance string

const (
	RebalanceMonthly   Rebalance = "monthly"
	RebalanceQuarterly Rebalance = "quarterly"
)

// PeriodsPerYear returns the annualization factor for the frequency.
func (r Rebalance) PeriodsPerYear() float64 {
	if r == RebalanceQuarterly {
		return 4
	}
	return 12
}

func (r Rebalance) Validate() error {
	switch r {
	case RebalanceMonthly, RebalanceQuarterly:
		return nil
	default:
		return fmt.Errorf("unknown rebalance frequency: %q", r)
	}
}

// Schedule returns the rebalance dates in [start, end]: the last weekday of
// each month, or of each quarter-ending month. Exchange holidays are not
// modeled; a fill on a holiday resolves through the next available close in
// the price series.
func Schedule(start, end time.Time, freq Rebalance) []time.Time {
	var out []time.Time
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		if freq == RebalanceMonthly || isQuarterEnd(cursor.Month()) {
			d := lastWeekday(cursor.Year(), cursor.Month())
			if !d.Before(start) && !d.After(end) {
				out = append(out, d)
			}
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out
}

func isQuarterEnd(m time.Month) bool {
	return m == time.March || m == time.June || m == time.September || m == time.December
}

func lastWeekday(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay returns the first weekday strictly after d. Fills happen
// here, never on the decision date itself.
func NextTradingDay(d time.Time) time.Time {
	n := d.AddDate(0, 0, 1)
	for n.Weekday() == time.Saturday || n.Weekday() == time.Sunday {
		n = n.AddDate(0, 0, 1)
	}
	return n
}
