package contracts

import "time"

// Category groups sub-factors for composite weighting.
type Category string

const (
	CategoryValue      Category = "value"
	CategoryQuality    Category = "quality"
	CategoryAccounting Category = "accounting"
	CategoryInvestment Category = "investment"
	CategoryMomentum   Category = "momentum"
)

// AllCategories lists categories in stable output order.
var AllCategories = []Category{
	CategoryValue,
	CategoryQuality,
	CategoryAccounting,
	CategoryInvestment,
	CategoryMomentum,
}

// CompositeScore is one ticker's final ranking score plus the per-category
// sub-scores that produced it.
type CompositeScore struct {
	Ticker     string
	Score      float64
	Categories map[Category]float64
	Rank       int // 1-based, assigned after sorting
}

// PortfolioWeight is the constructed weight vector for one rebalance date.
type PortfolioWeight struct {
	AsOf       time.Time
	Weights    map[string]float64
	Satisfied  bool     // all hard constraints met
	Violations []string // populated when Satisfied is false
}

// TotalWeight returns the sum of all weights.
func (p *PortfolioWeight) TotalWeight() float64 {
	total := 0.0
	for _, w := range p.Weights {
		total += w
	}
	return total
}
