package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cred-credit-engine/internal/domain/entity"
	domain_service "cred-credit-engine/internal/domain/service"
	"cred-credit-engine/internal/infrastructure/config"
	"cred-credit-engine/internal/infrastructure/logger"
	"cred-credit-engine/internal/infrastructure/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreditService struct {
	domain_service.CreditService

	mu          sync.Mutex
	batchErr    error
	verifyErr   error
	processed   [][]*entity.Transaction
	verifiedFor []string
}

func (f *fakeCreditService) ProcessTransactionBatch(ctx context.Context, transactions []*entity.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, transactions)
	return f.batchErr
}

func (f *fakeCreditService) ApplyVerifiedIncome(ctx context.Context, event *entity.VerificationEvent) (*entity.CreditLineSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifiedFor = append(f.verifiedFor, event.WalletAddress)
	return &entity.CreditLineSnapshot{WalletAddress: event.WalletAddress}, f.verifyErr
}

// settleCounter records how each delivery was settled
type settleCounter struct {
	mu   sync.Mutex
	acks int
	naks int
}

func (c *settleCounter) ack() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acks++
	return nil
}

func (c *settleCounter) nak() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.naks++
	return nil
}

func txDeliveries(counter *settleCounter, hashes ...string) []*messaging.Delivery[*entity.Transaction] {
	deliveries := make([]*messaging.Delivery[*entity.Transaction], 0, len(hashes))
	for _, hash := range hashes {
		deliveries = append(deliveries, messaging.NewDelivery(&entity.Transaction{Hash: hash}, counter.ack, counter.nak))
	}
	return deliveries
}

func TestSettleBatchAcksAfterProcessing(t *testing.T) {
	svc := &fakeCreditService{}
	counter := &settleCounter{}

	require.NoError(t, settleBatch(context.Background(), svc, txDeliveries(counter, "0x1", "0x2"), logger.NewNop()))

	require.Len(t, svc.processed, 1)
	assert.Equal(t, "0x2", svc.processed[0][1].Hash)
	assert.Equal(t, 2, counter.acks)
	assert.Equal(t, 0, counter.naks)
}

func TestSettleBatchNaksFailedBatch(t *testing.T) {
	svc := &fakeCreditService{batchErr: errors.New("neo4j down")}
	counter := &settleCounter{}

	err := settleBatch(context.Background(), svc, txDeliveries(counter, "0x1", "0x2", "0x3"), logger.NewNop())
	assert.ErrorIs(t, err, svc.batchErr)
	assert.Equal(t, 0, counter.acks)
	assert.Equal(t, 3, counter.naks)
}

func TestProcessTransactionsFlushesOnClose(t *testing.T) {
	svc := &fakeCreditService{}
	counter := &settleCounter{}
	cfg := &config.Config{App: config.AppConfig{BatchSize: 2, WorkerPoolSize: 2}}

	msgChan := make(chan *messaging.Delivery[*entity.Transaction], 3)
	for _, d := range txDeliveries(counter, "0x1", "0x2", "0x3") {
		msgChan <- d
	}
	close(msgChan)

	processTransactions(context.Background(), msgChan, svc, logger.NewNop(), cfg)

	total := 0
	for _, batch := range svc.processed {
		total += len(batch)
	}
	assert.Len(t, svc.processed, 2)
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, counter.acks)
}

func TestSettleVerification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantAcks int
		wantNaks int
	}{
		{name: "applied", wantAcks: 1},
		{name: "invalid wallet is dropped", err: domain_service.ErrInvalidWalletAddress, wantAcks: 1},
		{name: "storage failure is redelivered", err: errors.New("redis down"), wantNaks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCreditService{verifyErr: tt.err}
			counter := &settleCounter{}
			delivery := messaging.NewDelivery(&entity.VerificationEvent{WalletAddress: "0xabc"}, counter.ack, counter.nak)

			settleVerification(context.Background(), svc, delivery, logger.NewNop())

			assert.Equal(t, []string{"0xabc"}, svc.verifiedFor)
			assert.Equal(t, tt.wantAcks, counter.acks)
			assert.Equal(t, tt.wantNaks, counter.naks)
		})
	}
}
