package contracts

// Factor identifies one raw factor column.
type Factor string

const (
	FactorEarningsYield      Factor = "earnings_yield"
	FactorFCFYield           Factor = "fcf_yield"
	FactorBookToMarket       Factor = "book_to_market"
	FactorGrossProfitability Factor = "gross_profitability"
	FactorROIC               Factor = "roic"
	FactorFScore             Factor = "fscore"
	FactorInterestCoverage   Factor = "interest_coverage"
	FactorNetDebtEBITDA      Factor = "net_debt_ebitda"
	FactorAccruals           Factor = "accruals"
	FactorNOARatio           Factor = "noa_ratio"
	FactorRiskFlags          Factor = "risk_flags"
	FactorAssetGrowth        Factor = "asset_growth"
	FactorNetIssuance        Factor = "net_issuance"
	FactorMomentum12M1M      Factor = "momentum_12m_1m"
	FactorBeneishM           Factor = "beneish_m"
	FactorAltmanZ            Factor = "altman_z"
)

// AllFactors lists every factor in stable output order. The engine writes
// every one of these keys for every ticker; a value may be the missing
// sentinel but is never absent.
var AllFactors = []Factor{
	FactorEarningsYield,
	FactorFCFYield,
	FactorBookToMarket,
	FactorGrossProfitability,
	FactorROIC,
	FactorFScore,
	FactorInterestCoverage,
	FactorNetDebtEBITDA,
	FactorAccruals,
	FactorNOARatio,
	FactorRiskFlags,
	FactorAssetGrowth,
	FactorNetIssuance,
	FactorMomentum12M1M,
	FactorBeneishM,
	FactorAltmanZ,
}

// smallerIsBetter marks factors whose economic direction is inverted: a
// lower raw value is the better one. The Normalizer flips these so that
// post-transform, higher always means better.
var smallerIsBetter = map[Factor]bool{
	FactorNetDebtEBITDA: true,
	FactorAccruals:      true,
	FactorNOARatio:      true,
	FactorRiskFlags:     true,
	FactorAssetGrowth:   true,
	FactorNetIssuance:   true,
}

// SmallerIsBetter reports whether a lower raw value of f is better.
func SmallerIsBetter(f Factor) bool { return smallerIsBetter[f] }

// FactorVector holds every raw factor for one ticker at one as-of date.
type FactorVector struct {
	Ticker string
	Values map[Factor]float64
}

// NewFactorVector returns a vector with every factor keyed and set to the
// missing sentinel.
func NewFactorVector(ticker string) *FactorVector {
	values := make(map[Factor]float64, len(AllFactors))
	for _, f := range AllFactors {
		values[f] = Missing()
	}
	return &FactorVector{Ticker: ticker, Values: values}
}

// Get returns the raw value for f. Vectors are fully keyed, so a zero-value
// lookup means a programming error upstream; treat it as missing.
func (v *FactorVector) Get(f Factor) float64 {
	val, ok := v.Values[f]
	if !ok {
		return Missing()
	}
	return val
}

// GroupKey identifies a normalization group.
type GroupKey struct {
	Sector     string
	SizeBucket string
}

func (k GroupKey) String() string {
	return k.Sector + "/" + k.SizeBucket
}

// GroupStats carries the pre-transform summary of one factor within one
// group, kept for audit.
type GroupStats struct {
	Median   float64
	Mean     float64
	Std      float64
	IQR      float64
	Lo       float64 // lower winsorization bound
	Hi       float64 // upper winsorization bound
	Size     int
	Fallback bool // group was too small; full-universe stats used
}

// NormalizedFactorVector is a FactorVector transformed into sign-corrected
// z-scores within its group.
type NormalizedFactorVector struct {
	Ticker string
	Group  GroupKey
	ZScores map[Factor]float64
	Stats   map[Factor]GroupStats
}
