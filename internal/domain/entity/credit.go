package entity

import (
	"time"
)

// CreditStateSchemaVersion is the version written with every persisted CreditState
const CreditStateSchemaVersion = 1

// CreditState is the persisted ledger record for a single wallet.
// JSON field names follow the stored document format.
type CreditState struct {
	SchemaVersion      int         `json:"schemaVersion"`
	WalletAddress      string      `json:"walletAddress"`
	TotalBorrowed      float64     `json:"totalBorrowed"`
	TotalRepaid        float64     `json:"totalRepaid"`
	OutstandingBalance float64     `json:"outstandingBalance"`
	LastBorrowDate     *time.Time  `json:"lastBorrowDate"`
	LastRepayDate      *time.Time  `json:"lastRepayDate"`
	CreditLimit        float64     `json:"creditLimit"`
	APR                float64     `json:"apr"`
	Draws              []Draw      `json:"draws"`
	Repayments         []Repayment `json:"repayments"`
	AutoRepayEnabled   bool        `json:"autoRepayEnabled"`
	DelinquentDays     int         `json:"delinquentDays"`
}

// NewCreditState returns the zeroed state used for wallets with no record
func NewCreditState(walletAddress string) *CreditState {
	return &CreditState{
		SchemaVersion: CreditStateSchemaVersion,
		WalletAddress: walletAddress,
		Draws:         []Draw{},
		Repayments:    []Repayment{},
	}
}

// Draw is a single borrow against the credit line
type Draw struct {
	ID           string    `json:"id"`
	Amount       float64   `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
	TxHash       string    `json:"txHash"`
	InterestRate float64   `json:"interestRate"`
}

// Repayment is a single payment; AppliedToInterest + AppliedToPrincipal == Amount
type Repayment struct {
	ID                 string    `json:"id"`
	Amount             float64   `json:"amount"`
	Timestamp          time.Time `json:"timestamp"`
	TxHash             string    `json:"txHash"`
	AppliedToInterest  float64   `json:"appliedToInterest"`
	AppliedToPrincipal float64   `json:"appliedToPrincipal"`
}

// HasRepayment reports whether a repayment with the given tx hash was recorded
func (s *CreditState) HasRepayment(txHash string) bool {
	if txHash == "" {
		return false
	}
	for _, r := range s.Repayments {
		if r.TxHash == txHash {
			return true
		}
	}
	return false
}

// Balance is the point-in-time amount owed
type Balance struct {
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Total     float64 `json:"total"`
}

// AutoRepayDecision is a recommendation to withhold part of an inflow.
// WithholdRate is a fraction in [0,1].
type AutoRepayDecision struct {
	ShouldRepay  bool    `json:"should_repay"`
	RepayAmount  float64 `json:"repay_amount"`
	WithholdRate float64 `json:"withhold_rate"`
}

// CreditSummary is the read-only projection shown on the credit screen
type CreditSummary struct {
	WalletAddress    string     `json:"wallet_address"`
	CreditLimit      float64    `json:"credit_limit"`
	APR              float64    `json:"apr"`
	Principal        float64    `json:"principal"`
	AccruedInterest  float64    `json:"accrued_interest"`
	TotalOwed        float64    `json:"total_owed"`
	Available        float64    `json:"available"`
	Utilization      int        `json:"utilization"`
	TotalBorrowed    float64    `json:"total_borrowed"`
	TotalRepaid      float64    `json:"total_repaid"`
	DrawCount        int        `json:"draw_count"`
	RepaymentCount   int        `json:"repayment_count"`
	LastBorrowDate   *time.Time `json:"last_borrow_date"`
	LastRepayDate    *time.Time `json:"last_repay_date"`
	AutoRepayEnabled bool       `json:"auto_repay_enabled"`
	DelinquentDays   int        `json:"delinquent_days"`
}

// HistoryEntryType distinguishes draws from repayments in the merged history
type HistoryEntryType string

const (
	HistoryEntryBorrow HistoryEntryType = "borrow"
	HistoryEntryRepay  HistoryEntryType = "repay"
)

// HistoryEntry is one line of the merged, reverse-chronological ledger history
type HistoryEntry struct {
	ID                 string           `json:"id"`
	Type               HistoryEntryType `json:"type"`
	Amount             float64          `json:"amount"`
	TxHash             string           `json:"tx_hash"`
	Timestamp          time.Time        `json:"timestamp"`
	Label              string           `json:"label"`
	InterestRate       float64          `json:"interest_rate,omitempty"`
	AppliedToInterest  float64          `json:"applied_to_interest,omitempty"`
	AppliedToPrincipal float64          `json:"applied_to_principal,omitempty"`
}
