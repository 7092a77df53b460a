package repository

import (
	"context"
	"cred-credit-engine/internal/domain/entity"
)

// TransactionRepository defines the interface for transaction history operations
type TransactionRepository interface {
	// IndexTransactions stores wallets and SENT_TO edges for a batch of transactions
	IndexTransactions(ctx context.Context, transactions []*entity.Transaction) error

	// GetTransactionsByWallet retrieves the most recent inbound and outbound
	// transactions for a wallet, newest first
	GetTransactionsByWallet(ctx context.Context, address string, limit int) ([]*entity.Transaction, error)
}
