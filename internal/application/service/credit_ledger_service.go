package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cred-credit-engine/internal/domain/entity"
	"cred-credit-engine/internal/domain/repository"
	"cred-credit-engine/internal/domain/service"
	"cred-credit-engine/internal/infrastructure/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errUnchanged lets an apply func skip the save and hand back the loaded state
var errUnchanged = errors.New("credit state unchanged")

// CreditLedgerService implements the CreditLedger interface on top of a
// CreditStateRepository. Every mutation is a locked read-modify-write that
// persists before returning.
type CreditLedgerService struct {
	repo   repository.CreditStateRepository
	locks  *walletLocks
	now    func() time.Time
	logger *logger.Logger
}

// NewCreditLedgerService creates a new credit ledger service
func NewCreditLedgerService(repo repository.CreditStateRepository, logger *logger.Logger) service.CreditLedger {
	return NewCreditLedgerServiceWithClock(repo, logger, time.Now)
}

// NewCreditLedgerServiceWithClock creates a ledger that reads time from now
func NewCreditLedgerServiceWithClock(repo repository.CreditStateRepository, logger *logger.Logger, now func() time.Time) *CreditLedgerService {
	return &CreditLedgerService{
		repo:   repo,
		locks:  newWalletLocks(),
		now:    now,
		logger: logger.WithComponent("credit-ledger"),
	}
}

// GetState returns the persisted state or a zeroed state that is not persisted
func (s *CreditLedgerService) GetState(ctx context.Context, walletAddress string) (*entity.CreditState, error) {
	wallet, err := normalizeWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, wallet)
}

// RecordBorrow appends a draw locked at apr and increases principal
func (s *CreditLedgerService) RecordBorrow(ctx context.Context, walletAddress string, amount float64, txHash string, apr float64) (*entity.CreditState, error) {
	if !validAmount(amount) {
		return nil, service.ErrInvalidAmount
	}

	state, err := s.mutate(ctx, walletAddress, func(state *entity.CreditState, now time.Time) error {
		appendDraw(state, amount, txHash, apr, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logBorrow(state, amount, apr, txHash)
	return state, nil
}

// BorrowWithinLimit records a draw at the wallet's current APR only if
// amount fits the available credit. The check and the write share one lock.
func (s *CreditLedgerService) BorrowWithinLimit(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error) {
	if !validAmount(amount) {
		return nil, service.ErrInvalidAmount
	}

	var apr float64
	state, err := s.mutate(ctx, walletAddress, func(state *entity.CreditState, now time.Time) error {
		owed := state.OutstandingBalance + service.AccruedInterest(state, now)
		available := math.Max(0, state.CreditLimit-owed)
		if amount > available {
			return fmt.Errorf("%w: requested %.2f, available %.2f", service.ErrInsufficientCredit, amount, available)
		}
		apr = state.APR
		appendDraw(state, amount, txHash, apr, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logBorrow(state, amount, apr, txHash)
	return state, nil
}

// RecordRepayment applies amount to accrued interest first, then principal.
// Principal never drops below zero; any excess is absorbed.
func (s *CreditLedgerService) RecordRepayment(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error) {
	return s.recordRepayment(ctx, walletAddress, amount, txHash, false)
}

// RecordRepaymentOnce is RecordRepayment keyed by txHash. A hash already on
// the wallet's repayment list yields ErrDuplicateRepayment and no write.
// An empty hash cannot be deduplicated and is recorded as is.
func (s *CreditLedgerService) RecordRepaymentOnce(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error) {
	return s.recordRepayment(ctx, walletAddress, amount, txHash, strings.TrimSpace(txHash) != "")
}

func (s *CreditLedgerService) recordRepayment(ctx context.Context, walletAddress string, amount float64, txHash string, once bool) (*entity.CreditState, error) {
	if !validAmount(amount) {
		return nil, service.ErrInvalidAmount
	}

	var repayment entity.Repayment
	state, err := s.mutate(ctx, walletAddress, func(state *entity.CreditState, now time.Time) error {
		if once && state.HasRepayment(txHash) {
			return service.ErrDuplicateRepayment
		}

		interest := service.AccruedInterest(state, now)
		toInterest, toPrincipal := service.SplitRepayment(amount, interest)

		repayment = entity.Repayment{
			ID:                 uuid.NewString(),
			Amount:             amount,
			Timestamp:          now,
			TxHash:             txHash,
			AppliedToInterest:  toInterest,
			AppliedToPrincipal: toPrincipal,
		}
		state.Repayments = append(state.Repayments, repayment)
		state.TotalRepaid += amount
		state.OutstandingBalance = math.Max(0, state.OutstandingBalance-toPrincipal)
		state.LastRepayDate = &now
		state.DelinquentDays = 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recorded repayment",
		zap.String("wallet", state.WalletAddress),
		zap.Float64("amount", amount),
		zap.Float64("applied_to_interest", repayment.AppliedToInterest),
		zap.Float64("applied_to_principal", repayment.AppliedToPrincipal),
		zap.String("tx_hash", txHash),
		zap.Float64("outstanding", state.OutstandingBalance))
	return state, nil
}

// CalculateAccruedInterest returns interest accrued on state as of now
func (s *CreditLedgerService) CalculateAccruedInterest(state *entity.CreditState) float64 {
	return service.AccruedInterest(state, s.now())
}

// GetCurrentBalance returns principal, accrued interest and their total
func (s *CreditLedgerService) GetCurrentBalance(ctx context.Context, walletAddress string) (*entity.Balance, error) {
	state, err := s.GetState(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	return s.balance(state), nil
}

// GetCreditUtilization returns total owed as a rounded percentage of the limit
func (s *CreditLedgerService) GetCreditUtilization(ctx context.Context, walletAddress string) (int, error) {
	state, err := s.GetState(ctx, walletAddress)
	if err != nil {
		return 0, err
	}
	return service.Utilization(s.balance(state).Total, state.CreditLimit), nil
}

// UpdateCreditLimit overwrites limit and APR; last writer wins
func (s *CreditLedgerService) UpdateCreditLimit(ctx context.Context, walletAddress string, newLimit, apr float64) (*entity.CreditState, error) {
	state, err := s.mutate(ctx, walletAddress, func(state *entity.CreditState, _ time.Time) error {
		state.CreditLimit = newLimit
		state.APR = apr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Updated credit limit",
		zap.String("wallet", state.WalletAddress),
		zap.Float64("credit_limit", newLimit),
		zap.Float64("apr", apr))
	return state, nil
}

// ShouldAutoRepay recommends how much of an incoming amount to withhold
func (s *CreditLedgerService) ShouldAutoRepay(ctx context.Context, walletAddress string, incomingAmount float64) (*entity.AutoRepayDecision, error) {
	state, err := s.GetState(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	return service.AutoRepayPolicy(state, incomingAmount, s.balance(state)), nil
}

// SetAutoRepay toggles automatic repayment from inflows
func (s *CreditLedgerService) SetAutoRepay(ctx context.Context, walletAddress string, enabled bool) (*entity.CreditState, error) {
	return s.mutate(ctx, walletAddress, func(state *entity.CreditState, _ time.Time) error {
		state.AutoRepayEnabled = enabled
		return nil
	})
}

// MarkDelinquencyDay adds one day of delinquency if the wallet is past due
// at the time of the write. The bool reports whether a day was added.
func (s *CreditLedgerService) MarkDelinquencyDay(ctx context.Context, walletAddress string, grace time.Duration) (*entity.CreditState, bool, error) {
	state, err := s.mutate(ctx, walletAddress, func(state *entity.CreditState, now time.Time) error {
		if !service.IsPastDue(state, now, grace) {
			return errUnchanged
		}
		state.DelinquentDays++
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return state, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// GetCreditSummary returns the read-only summary projection
func (s *CreditLedgerService) GetCreditSummary(ctx context.Context, walletAddress string) (*entity.CreditSummary, error) {
	state, err := s.GetState(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	balance := s.balance(state)

	return &entity.CreditSummary{
		WalletAddress:    state.WalletAddress,
		CreditLimit:      state.CreditLimit,
		APR:              state.APR,
		Principal:        balance.Principal,
		AccruedInterest:  balance.Interest,
		TotalOwed:        balance.Total,
		Available:        math.Max(0, state.CreditLimit-balance.Total),
		Utilization:      service.Utilization(balance.Total, state.CreditLimit),
		TotalBorrowed:    state.TotalBorrowed,
		TotalRepaid:      state.TotalRepaid,
		DrawCount:        len(state.Draws),
		RepaymentCount:   len(state.Repayments),
		LastBorrowDate:   state.LastBorrowDate,
		LastRepayDate:    state.LastRepayDate,
		AutoRepayEnabled: state.AutoRepayEnabled,
		DelinquentDays:   state.DelinquentDays,
	}, nil
}

// GetTransactionHistory merges draws and repayments newest first
func (s *CreditLedgerService) GetTransactionHistory(ctx context.Context, walletAddress string) ([]*entity.HistoryEntry, error) {
	state, err := s.GetState(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	now := s.now()

	entries := make([]*entity.HistoryEntry, 0, len(state.Draws)+len(state.Repayments))
	for _, d := range state.Draws {
		entries = append(entries, &entity.HistoryEntry{
			ID:           d.ID,
			Type:         entity.HistoryEntryBorrow,
			Amount:       d.Amount,
			TxHash:       d.TxHash,
			Timestamp:    d.Timestamp,
			Label:        service.FormatRelativeTime(d.Timestamp, now),
			InterestRate: d.InterestRate,
		})
	}
	for _, r := range state.Repayments {
		entries = append(entries, &entity.HistoryEntry{
			ID:                 r.ID,
			Type:               entity.HistoryEntryRepay,
			Amount:             r.Amount,
			TxHash:             r.TxHash,
			Timestamp:          r.Timestamp,
			Label:              service.FormatRelativeTime(r.Timestamp, now),
			AppliedToInterest:  r.AppliedToInterest,
			AppliedToPrincipal: r.AppliedToPrincipal,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// ListWallets returns every wallet with a persisted state
func (s *CreditLedgerService) ListWallets(ctx context.Context) ([]string, error) {
	return s.repo.ListWallets(ctx)
}

// ResetState deletes a wallet's state
func (s *CreditLedgerService) ResetState(ctx context.Context, walletAddress string) error {
	wallet, err := normalizeWallet(walletAddress)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(wallet)
	defer unlock()

	if err := s.repo.Delete(ctx, wallet); err != nil {
		return err
	}
	s.logger.WithWallet(wallet).Warn("Credit state reset")
	return nil
}

func (s *CreditLedgerService) load(ctx context.Context, wallet string) (*entity.CreditState, error) {
	state, err := s.repo.Load(ctx, wallet)
	if errors.Is(err, repository.ErrCreditStateNotFound) {
		return entity.NewCreditState(wallet), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit state: %w", err)
	}
	return state, nil
}

func (s *CreditLedgerService) mutate(ctx context.Context, walletAddress string, apply func(*entity.CreditState, time.Time) error) (*entity.CreditState, error) {
	wallet, err := normalizeWallet(walletAddress)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(wallet)
	defer unlock()

	state, err := s.load(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if err := apply(state, s.now().UTC()); err != nil {
		if errors.Is(err, errUnchanged) {
			return state, err
		}
		return nil, err
	}
	if err := s.repo.Save(ctx, state); err != nil {
		s.logger.WithWallet(wallet).Error("Failed to persist credit state", zap.Error(err))
		return nil, err
	}
	return state, nil
}

func (s *CreditLedgerService) logBorrow(state *entity.CreditState, amount, apr float64, txHash string) {
	s.logger.Info("Recorded borrow",
		zap.String("wallet", state.WalletAddress),
		zap.Float64("amount", amount),
		zap.Float64("apr", apr),
		zap.String("tx_hash", txHash),
		zap.Float64("outstanding", state.OutstandingBalance))
}

func appendDraw(state *entity.CreditState, amount float64, txHash string, apr float64, now time.Time) {
	state.Draws = append(state.Draws, entity.Draw{
		ID:           uuid.NewString(),
		Amount:       amount,
		Timestamp:    now,
		TxHash:       txHash,
		InterestRate: apr,
	})
	state.TotalBorrowed += amount
	state.OutstandingBalance += amount
	state.LastBorrowDate = &now
}

func (s *CreditLedgerService) balance(state *entity.CreditState) *entity.Balance {
	interest := service.AccruedInterest(state, s.now())
	return &entity.Balance{
		Principal: state.OutstandingBalance,
		Interest:  interest,
		Total:     state.OutstandingBalance + interest,
	}
}

func normalizeWallet(walletAddress string) (string, error) {
	wallet := strings.ToLower(strings.TrimSpace(walletAddress))
	if wallet == "" {
		return "", service.ErrInvalidWalletAddress
	}
	return wallet, nil
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}
