package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cred-credit-engine/internal/domain/entity"
	"cred-credit-engine/internal/domain/repository"
	"cred-credit-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// DefaultNamespace prefixes every credit state key
const DefaultNamespace = "cred_credit_state"

// CreditStateStore implements CreditStateRepository as JSON documents in a
// KeyValueStore, keyed by "<namespace>_<lowercase wallet>"
type CreditStateStore struct {
	kv        repository.KeyValueStore
	namespace string
	logger    *logger.Logger
}

// NewCreditStateStore creates a credit state repository over kv
func NewCreditStateStore(kv repository.KeyValueStore, namespace string, logger *logger.Logger) repository.CreditStateRepository {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CreditStateStore{
		kv:        kv,
		namespace: namespace,
		logger:    logger.WithComponent("credit-state-store"),
	}
}

// Key returns the storage key for a wallet
func (s *CreditStateStore) Key(walletAddress string) string {
	return s.namespace + "_" + strings.ToLower(walletAddress)
}

// Load retrieves and decodes the state for a wallet
func (s *CreditStateStore) Load(ctx context.Context, walletAddress string) (*entity.CreditState, error) {
	raw, err := s.kv.Get(ctx, s.Key(walletAddress))
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, repository.ErrCreditStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credit state: %w", err)
	}

	var state entity.CreditState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode credit state for %s: %w", walletAddress, err)
	}

	switch {
	case state.SchemaVersion == 0:
		// Records written before versioning carry the same fields
		state.SchemaVersion = entity.CreditStateSchemaVersion
	case state.SchemaVersion > entity.CreditStateSchemaVersion:
		s.logger.Warn("Credit state written by a newer schema version",
			zap.String("wallet", walletAddress),
			zap.Int("schema_version", state.SchemaVersion))
	}
	if state.WalletAddress == "" {
		state.WalletAddress = strings.ToLower(walletAddress)
	}
	if state.Draws == nil {
		state.Draws = []entity.Draw{}
	}
	if state.Repayments == nil {
		state.Repayments = []entity.Repayment{}
	}

	return &state, nil
}

// Save encodes and writes the state
func (s *CreditStateStore) Save(ctx context.Context, state *entity.CreditState) error {
	state.WalletAddress = strings.ToLower(state.WalletAddress)
	if state.SchemaVersion == 0 {
		state.SchemaVersion = entity.CreditStateSchemaVersion
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode credit state: %w", err)
	}
	if err := s.kv.Set(ctx, s.Key(state.WalletAddress), string(raw)); err != nil {
		return fmt.Errorf("failed to save credit state: %w", err)
	}
	return nil
}

// Delete removes the state for a wallet
func (s *CreditStateStore) Delete(ctx context.Context, walletAddress string) error {
	if err := s.kv.Delete(ctx, s.Key(walletAddress)); err != nil {
		return fmt.Errorf("failed to delete credit state: %w", err)
	}
	return nil
}

// ListWallets returns wallet addresses for every stored state
func (s *CreditStateStore) ListWallets(ctx context.Context) ([]string, error) {
	prefix := s.namespace + "_"
	keys, err := s.kv.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit states: %w", err)
	}

	wallets := make([]string, 0, len(keys))
	for _, key := range keys {
		wallets = append(wallets, strings.TrimPrefix(key, prefix))
	}
	return wallets, nil
}
