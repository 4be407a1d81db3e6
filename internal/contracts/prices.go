package contracts

import (
	"sort"
	"time"
)

// PricePoint is one (date, adjusted close) observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceHistory is an ordered, append-only series of adjusted closes for one
// ticker. Dates ascend.
type PriceHistory struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Sort orders the series by date ascending. Sources call this once after
// loading; the pipeline assumes sorted input.
func (h *PriceHistory) Sort() {
	sort.Slice(h.Points, func(i, j int) bool {
		return h.Points[i].Date.Before(h.Points[j].Date)
	})
}

// CloseOnOrBefore returns the last close at or before date.
func (h *PriceHistory) CloseOnOrBefore(date time.Time) (float64, bool) {
	idx := sort.Search(len(h.Points), func(i int) bool {
		return h.Points[i].Date.After(date)
	})
	if idx == 0 {
		return 0, false
	}
	return h.Points[idx-1].Close, true
}

// CloseOnOrAfter returns the first close at or after date.
func (h *PriceHistory) CloseOnOrAfter(date time.Time) (float64, bool) {
	idx := sort.Search(len(h.Points), func(i int) bool {
		return !h.Points[i].Date.Before(date)
	})
	if idx == len(h.Points) {
		return 0, false
	}
	return h.Points[idx].Close, true
}

// ReturnBetween computes the simple return from the last close at or before
// `from` to the last close at or before `to`. Returns the missing sentinel
// when either endpoint is unavailable or the start price is not positive.
func (h *PriceHistory) ReturnBetween(from, to time.Time) float64 {
	start, ok := h.CloseOnOrBefore(from)
	if !ok || start <= 0 {
		return Missing()
	}
	end, ok := h.CloseOnOrBefore(to)
	if !ok || end <= 0 {
		return Missing()
	}
	return end/start - 1
}
