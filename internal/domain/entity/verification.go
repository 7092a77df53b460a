package entity

import (
	"time"
)

// VerificationEvent is emitted once a third-party identity/income check
// completes. VerifiedIncome is monthly income in the provider's currency.
type VerificationEvent struct {
	WalletAddress  string    `json:"wallet_address"`
	VerifiedIncome float64   `json:"verified_income"`
	Currency       string    `json:"currency"`
	Provider       string    `json:"provider"`
	VerifiedAt     time.Time `json:"verified_at"`
}
