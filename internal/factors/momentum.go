package factors

import (
	"time"

	"github.com/wonny/valuescreen/internal/contracts"
)

// momentum12M1M is the classic 12-minus-1 momentum: the return from twelve
// months before asOf to one month before asOf, skipping the most recent
// month to avoid short-term reversal.
func momentum12M1M(prices *contracts.PriceHistory, asOf time.Time) float64 {
	if prices == nil || len(prices.Points) == 0 {
		return contracts.Missing()
	}
	from := asOf.AddDate(0, -12, 0)
	to := asOf.AddDate(0, -1, 0)
	return prices.ReturnBetween(from, to)
}
