package entity

// RiskBand is the coarse risk tier that drives APR
type RiskBand string

const (
	RiskBandLow    RiskBand = "Low"
	RiskBandMedium RiskBand = "Medium"
	RiskBandHigh   RiskBand = "High"
)

// CashflowSummary aggregates a wallet's transfers over the scoring window.
// Amounts are in native token units.
type CashflowSummary struct {
	TotalInflow        float64   `json:"total_inflow"`
	TotalOutflow       float64   `json:"total_outflow"`
	NetCashflow        float64   `json:"net_cashflow"`
	TransactionCount   int       `json:"transaction_count"`
	AvgTransactionSize float64   `json:"avg_transaction_size"`
	MonthlyInflows     []float64 `json:"monthly_inflows"`
}

// CreditScoreResult is the outcome of scoring a wallet's history
type CreditScoreResult struct {
	Score    int      `json:"score"`
	Limit    float64  `json:"limit"`
	RiskBand RiskBand `json:"risk_band"`
	APR      float64  `json:"apr"`
	// Fallback is set when the result is the conservative default rather
	// than a computation over history.
	Fallback bool `json:"fallback"`
}

// IncomeCreditResult is the credit line derived from a verified income figure
type IncomeCreditResult struct {
	VerifiedIncome float64  `json:"verified_income"`
	USDEquivalent  float64  `json:"usd_equivalent"`
	CreditLine     float64  `json:"credit_line"`
	RiskBand       RiskBand `json:"risk_band"`
	APR            float64  `json:"apr"`
}

// CreditLineSnapshot is the zero-usage view returned right after a
// verification result has been accepted
type CreditLineSnapshot struct {
	WalletAddress string   `json:"wallet_address"`
	Limit         float64  `json:"limit"`
	Used          float64  `json:"used"`
	Available     float64  `json:"available"`
	RiskBand      RiskBand `json:"risk_band"`
	APR           float64  `json:"apr"`
}
