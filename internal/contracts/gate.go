package contracts

// GateReason identifies a hard exclusion. Values are ordered by severity;
// the most severe triggered reason is reported first.
type GateReason string

const (
	GateBeneishExceeded GateReason = "beneish_exceeded"
	GateAltmanBelow     GateReason = "altman_below"
	GateAuditOpinion    GateReason = "audit_opinion"
	GateRestatement     GateReason = "restatement"
	GateTradingHalt     GateReason = "trading_halt"
)

// RiskFlag is a soft annotation that never excludes a ticker on its own.
type RiskFlag string

const (
	FlagHighNetIssuance     RiskFlag = "high_net_issuance"
	FlagHighAssetGrowth     RiskFlag = "high_asset_growth"
	FlagMarginDeterioration RiskFlag = "margin_deterioration"
	FlagLowLiquidity        RiskFlag = "low_liquidity"
)

// GateResult is the per-ticker exclusion verdict. Immutable after creation.
type GateResult struct {
	Ticker  string
	Passed  bool
	Reasons []GateReason // ordered by severity, empty when passed
	Flags   []RiskFlag   // soft annotations, may be non-empty either way
}

// Reason returns the most severe triggered reason, or "" when passed.
func (g *GateResult) Reason() string {
	if len(g.Reasons) == 0 {
		return ""
	}
	return string(g.Reasons[0])
}
