package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cred-credit-engine/internal/domain/entity"
	"cred-credit-engine/internal/domain/repository"
	"cred-credit-engine/internal/domain/service"
	"cred-credit-engine/internal/infrastructure/blockchain"
	"cred-credit-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// CreditServiceOptions tunes the credit application service
type CreditServiceOptions struct {
	// HistoryLimit is how many recent transactions are fetched for scoring
	HistoryLimit int
	// AutoRepayExecute records recommended auto-repayments instead of only logging them
	AutoRepayExecute bool
}

// CreditApplicationService implements CreditService interface
type CreditApplicationService struct {
	transactionRepo repository.TransactionRepository
	ledger          service.CreditLedger
	scorer          *service.CreditScorer
	options         CreditServiceOptions
	now             func() time.Time
	logger          *logger.Logger
}

// NewCreditApplicationService creates a new credit application service
func NewCreditApplicationService(
	transactionRepo repository.TransactionRepository,
	ledger service.CreditLedger,
	scorer *service.CreditScorer,
	options CreditServiceOptions,
	logger *logger.Logger,
) service.CreditService {
	return newCreditApplicationService(transactionRepo, ledger, scorer, options, logger, time.Now)
}

func newCreditApplicationService(
	transactionRepo repository.TransactionRepository,
	ledger service.CreditLedger,
	scorer *service.CreditScorer,
	options CreditServiceOptions,
	logger *logger.Logger,
	now func() time.Time,
) *CreditApplicationService {
	if options.HistoryLimit <= 0 {
		options.HistoryLimit = scorer.HistoryLimit()
	}
	return &CreditApplicationService{
		transactionRepo: transactionRepo,
		ledger:          ledger,
		scorer:          scorer,
		options:         options,
		now:             now,
		logger:          logger.WithComponent("credit-service"),
	}
}

// AssessWallet scores recent history and writes the resulting limit and APR
func (s *CreditApplicationService) AssessWallet(ctx context.Context, walletAddress string) (*entity.CreditScoreResult, error) {
	wallet, ok := blockchain.NormalizeAddress(walletAddress)
	if !ok {
		return nil, service.ErrInvalidWalletAddress
	}

	var result *entity.CreditScoreResult
	history, err := s.transactionRepo.GetTransactionsByWallet(ctx, wallet, s.options.HistoryLimit)
	if err != nil {
		// Scoring must never block the credit flow
		s.logger.Warn("Failed to fetch transaction history, using default score",
			zap.String("wallet", wallet),
			zap.Error(err))
		result = service.DefaultScoreResult()
	} else {
		result = s.scorer.Score(wallet, history, s.now())
	}

	if _, err := s.ledger.UpdateCreditLimit(ctx, wallet, result.Limit, result.APR); err != nil {
		return nil, fmt.Errorf("failed to apply credit assessment: %w", err)
	}

	s.logger.Info("Assessed wallet",
		zap.String("wallet", wallet),
		zap.Int("history_size", len(history)),
		zap.Int("score", result.Score),
		zap.Float64("limit", result.Limit),
		zap.String("risk_band", string(result.RiskBand)),
		zap.Float64("apr", result.APR),
		zap.Bool("fallback", result.Fallback))
	return result, nil
}

// ApplyVerifiedIncome sets the credit line from a verified income figure.
// The returned snapshot shows zero usage regardless of prior ledger history.
func (s *CreditApplicationService) ApplyVerifiedIncome(ctx context.Context, event *entity.VerificationEvent) (*entity.CreditLineSnapshot, error) {
	if event == nil {
		return nil, fmt.Errorf("verification event is required")
	}
	wallet, ok := blockchain.NormalizeAddress(event.WalletAddress)
	if !ok {
		return nil, service.ErrInvalidWalletAddress
	}

	result := service.IncomeCreditLine(event.VerifiedIncome)
	if _, err := s.ledger.UpdateCreditLimit(ctx, wallet, result.CreditLine, result.APR); err != nil {
		return nil, fmt.Errorf("failed to apply verified income: %w", err)
	}

	s.logger.Info("Applied verified income",
		zap.String("wallet", wallet),
		zap.String("provider", event.Provider),
		zap.Float64("usd_equivalent", result.USDEquivalent),
		zap.Float64("credit_line", result.CreditLine),
		zap.String("risk_band", string(result.RiskBand)))

	return &entity.CreditLineSnapshot{
		WalletAddress: wallet,
		Limit:         result.CreditLine,
		Used:          0,
		Available:     result.CreditLine,
		RiskBand:      result.RiskBand,
		APR:           result.APR,
	}, nil
}

// Borrow records a draw at the line APR if it fits available credit
func (s *CreditApplicationService) Borrow(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error) {
	wallet, ok := blockchain.NormalizeAddress(walletAddress)
	if !ok {
		return nil, service.ErrInvalidWalletAddress
	}

	state, err := s.ledger.BorrowWithinLimit(ctx, wallet, amount, txHash)
	if errors.Is(err, service.ErrInsufficientCredit) {
		s.logger.Info("Borrow rejected",
			zap.String("wallet", wallet),
			zap.Float64("amount", amount),
			zap.Error(err))
	}
	return state, err
}

// Repay records a repayment
func (s *CreditApplicationService) Repay(ctx context.Context, walletAddress string, amount float64, txHash string) (*entity.CreditState, error) {
	wallet, ok := blockchain.NormalizeAddress(walletAddress)
	if !ok {
		return nil, service.ErrInvalidWalletAddress
	}
	return s.ledger.RecordRepayment(ctx, wallet, amount, txHash)
}

// ProcessTransactionBatch indexes a batch of transfers and runs the
// auto-repay policy for each inflow
func (s *CreditApplicationService) ProcessTransactionBatch(ctx context.Context, transactions []*entity.Transaction) error {
	s.logger.Info("Processing transaction batch", zap.Int("count", len(transactions)))

	valid := make([]*entity.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		normalized, ok := normalizeTransaction(tx, s.now)
		if !ok {
			s.logger.Debug("Skipping malformed transaction", zap.Any("transaction", tx))
			continue
		}
		valid = append(valid, normalized)
	}
	if len(valid) == 0 {
		return nil
	}

	if err := s.transactionRepo.IndexTransactions(ctx, valid); err != nil {
		return fmt.Errorf("failed to index transactions: %w", err)
	}

	repaid := 0
	for _, tx := range valid {
		applied, err := s.applyAutoRepay(ctx, tx)
		if err != nil {
			s.logger.Error("Failed to apply auto-repay",
				zap.String("tx_hash", tx.Hash),
				zap.String("wallet", tx.To),
				zap.Error(err))
			// Don't fail the batch for one wallet
			continue
		}
		if applied {
			repaid++
		}
	}

	s.logger.Info("Successfully processed transaction batch",
		zap.Int("count", len(transactions)),
		zap.Int("indexed", len(valid)),
		zap.Int("auto_repayments", repaid))
	return nil
}

// applyAutoRepay withholds part of an inflow toward the recipient's balance
func (s *CreditApplicationService) applyAutoRepay(ctx context.Context, tx *entity.Transaction) (bool, error) {
	incoming := service.WeiToNative(tx.Value) * service.NativeToUSDRate
	if incoming <= 0 {
		return false, nil
	}

	decision, err := s.ledger.ShouldAutoRepay(ctx, tx.To, incoming)
	if err != nil {
		return false, err
	}
	if !decision.ShouldRepay || decision.RepayAmount <= 0 {
		return false, nil
	}

	if !s.options.AutoRepayExecute {
		s.logger.Info("Auto-repay recommended",
			zap.String("wallet", tx.To),
			zap.String("tx_hash", tx.Hash),
			zap.Float64("incoming", incoming),
			zap.Float64("repay_amount", decision.RepayAmount),
			zap.Float64("withhold_rate", decision.WithholdRate))
		return false, nil
	}

	_, err = s.ledger.RecordRepaymentOnce(ctx, tx.To, decision.RepayAmount, tx.Hash)
	if errors.Is(err, service.ErrDuplicateRepayment) {
		s.logger.Debug("Auto-repay already recorded", zap.String("tx_hash", tx.Hash))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func normalizeTransaction(tx *entity.Transaction, now func() time.Time) (*entity.Transaction, bool) {
	if tx == nil || tx.Hash == "" {
		return nil, false
	}
	from, ok := blockchain.NormalizeAddress(tx.From)
	if !ok {
		return nil, false
	}
	to, ok := blockchain.NormalizeAddress(tx.To)
	if !ok {
		return nil, false
	}

	normalized := *tx
	normalized.From = from
	normalized.To = to
	if normalized.Timestamp.IsZero() {
		normalized.Timestamp = now().UTC()
	}
	return &normalized, true
}
