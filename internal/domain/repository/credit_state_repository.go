package repository

import (
	"context"
	"errors"

	"cred-credit-engine/internal/domain/entity"
)

// ErrCreditStateNotFound is returned when a wallet has no persisted credit state
var ErrCreditStateNotFound = errors.New("credit state not found")

// CreditStateRepository persists one CreditState per lower-cased wallet address
type CreditStateRepository interface {
	// Load retrieves the state for a wallet or ErrCreditStateNotFound
	Load(ctx context.Context, walletAddress string) (*entity.CreditState, error)

	// Save writes the full state, replacing any previous record
	Save(ctx context.Context, state *entity.CreditState) error

	// Delete removes the state for a wallet
	Delete(ctx context.Context, walletAddress string) error

	// ListWallets returns every wallet address with a persisted state
	ListWallets(ctx context.Context) ([]string, error)
}
