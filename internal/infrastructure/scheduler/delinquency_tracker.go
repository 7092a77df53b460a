package scheduler

import (
	"context"
	"fmt"
	"time"

	"cred-credit-engine/internal/domain/service"
	"cred-credit-engine/internal/infrastructure/config"
	"cred-credit-engine/internal/infrastructure/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultDelinquencyGrace = 30 * 24 * time.Hour

// DelinquencyTracker marks one delinquent day per tick for wallets whose
// outstanding balance has gone unpaid past the grace period
type DelinquencyTracker struct {
	ledger   service.CreditLedger
	cron     *cron.Cron
	schedule string
	grace    time.Duration
	logger   *logger.Logger
}

// NewDelinquencyTracker creates a tracker driven by cfg.DelinquencyCron
func NewDelinquencyTracker(ledger service.CreditLedger, cfg *config.LedgerConfig, logger *logger.Logger) *DelinquencyTracker {
	grace := cfg.DelinquencyGrace
	if grace <= 0 {
		grace = defaultDelinquencyGrace
	}
	schedule := cfg.DelinquencyCron
	if schedule == "" {
		schedule = "@daily"
	}
	return &DelinquencyTracker{
		ledger:   ledger,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		schedule: schedule,
		grace:    grace,
		logger:   logger.WithComponent("delinquency-tracker"),
	}
}

// Start registers the tick and starts the scheduler
func (t *DelinquencyTracker) Start() error {
	_, err := t.cron.AddFunc(t.schedule, func() {
		if _, err := t.Tick(context.Background()); err != nil {
			t.logger.Error("Delinquency tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid delinquency schedule %q: %w", t.schedule, err)
	}

	t.cron.Start()
	t.logger.Info("Delinquency tracker started",
		zap.String("schedule", t.schedule),
		zap.Duration("grace", t.grace))
	return nil
}

// Stop stops the scheduler and waits for a running tick
func (t *DelinquencyTracker) Stop(ctx context.Context) error {
	done := t.cron.Stop()
	select {
	case <-done.Done():
		t.logger.Info("Delinquency tracker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick scans every wallet and returns how many were marked delinquent.
// The past-due check runs inside the ledger write so a repayment that lands
// mid-scan is never followed by a stale mark.
func (t *DelinquencyTracker) Tick(ctx context.Context) (int, error) {
	wallets, err := t.ledger.ListWallets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list wallets: %w", err)
	}

	marked := 0
	for _, wallet := range wallets {
		state, ok, err := t.ledger.MarkDelinquencyDay(ctx, wallet, t.grace)
		if err != nil {
			t.logger.Error("Failed to mark delinquency day", zap.String("wallet", wallet), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		t.logger.Debug("Marked delinquency day",
			zap.String("wallet", wallet),
			zap.Int("delinquent_days", state.DelinquentDays))
		marked++
	}

	t.logger.Info("Delinquency tick complete",
		zap.Int("wallets", len(wallets)),
		zap.Int("marked", marked))
	return marked, nil
}
