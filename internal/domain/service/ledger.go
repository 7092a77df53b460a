package service

import (
	"context"
	"errors"
	"time"

	"cred-credit-engine/internal/domain/entity"
)

var (
	// ErrInvalidAmount is returned for non-positive or non-finite amounts
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrInvalidWalletAddress is returned for malformed wallet addresses
	ErrInvalidWalletAddress = errors.New("invalid wallet address")

	// ErrInsufficientCredit is returned when a borrow exceeds available credit
	ErrInsufficientCredit = errors.New("insufficient available credit")

	// ErrDuplicateRepayment is returned when a repayment for the tx hash is already recorded
	ErrDuplicateRepayment = errors.New("repayment already recorded for transaction")
)

// CreditLedger defines the per-wallet credit bookkeeping operations
type CreditLedger interface {
	// GetState returns the persisted state or a zeroed one that is not persisted
	GetState(ctx context.Context, walletAddress string) (*entity.CreditState, error)

	// RecordBorrow appends a draw at the given APR and increases principal.
	// It does not check the credit limit.
	RecordBorrow(ctx context.Context, walletAddress string, amount float64, txHash string, apr float64) (*entity.CreditState, error)

	// BorrowWithinLimit records a draw at the line APR only if amount fits the
	// available credit; the check and the write happen under one wallet lock
	BorrowWithinLimit(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error)

	// RecordRepayment applies amount to accrued interest, then principal
	RecordRepayment(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error)

	// RecordRepaymentOnce is RecordRepayment that returns ErrDuplicateRepayment
	// when a repayment with txHash already exists
	RecordRepaymentOnce(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error)

	// CalculateAccruedInterest returns interest accrued on state as of now
	CalculateAccruedInterest(state *entity.CreditState) float64

	// GetCurrentBalance returns principal, interest and total owed
	GetCurrentBalance(ctx context.Context, walletAddress string) (*entity.Balance, error)

	// GetCreditUtilization returns total owed as an integer percentage of the limit
	GetCreditUtilization(ctx context.Context, walletAddress string) (int, error)

	// UpdateCreditLimit overwrites limit and APR only
	UpdateCreditLimit(ctx context.Context, walletAddress string, newLimit, apr float64) (*entity.CreditState, error)

	// ShouldAutoRepay recommends how much of an inflow to withhold
	ShouldAutoRepay(ctx context.Context, walletAddress string, incomingAmount float64) (*entity.AutoRepayDecision, error)

	// SetAutoRepay toggles automatic repayment from inflows
	SetAutoRepay(ctx context.Context, walletAddress string, enabled bool) (*entity.CreditState, error)

	// MarkDelinquencyDay adds one day of delinquency if the wallet is still
	// past due for grace at the time the lock is held. The bool reports whether it did.
	MarkDelinquencyDay(ctx context.Context, walletAddress string, grace time.Duration) (*entity.CreditState, bool, error)

	// GetCreditSummary returns the read-only summary projection
	GetCreditSummary(ctx context.Context, walletAddress string) (*entity.CreditSummary, error)

	// GetTransactionHistory merges draws and repayments newest first with labels
	GetTransactionHistory(ctx context.Context, walletAddress string) ([]*entity.HistoryEntry, error)

	// ListWallets returns every wallet with a persisted state
	ListWallets(ctx context.Context) ([]string, error)

	// ResetState deletes a wallet's state; intended for tests and support tooling
	ResetState(ctx context.Context, walletAddress string) error
}
