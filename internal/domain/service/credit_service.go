package service

import (
	"context"

	"cred-credit-engine/internal/domain/entity"
)

// CreditService defines the orchestration between history, scoring,
// verification and the ledger
type CreditService interface {
	// AssessWallet scores the wallet's recent history and writes the limit
	// and APR into the ledger. History failures fall back to the default result.
	AssessWallet(ctx context.Context, walletAddress string) (*entity.CreditScoreResult, error)

	// ApplyVerifiedIncome sets the credit line from a verification result and
	// returns a zero-usage snapshot
	ApplyVerifiedIncome(ctx context.Context, event *entity.VerificationEvent) (*entity.CreditLineSnapshot, error)

	// Borrow checks available credit and records a draw at the line APR
	Borrow(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error)

	// Repay records a repayment
	Repay(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error)

	// ProcessTransactionBatch indexes transfers and applies auto-repay on inflows
	ProcessTransactionBatch(ctx context.Context, transactions []*entity.Transaction) error
}
