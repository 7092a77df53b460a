package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cred-credit-engine/internal/domain/entity"
	"cred-credit-engine/internal/infrastructure/config"
	"cred-credit-engine/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	fetchBatchSize   = 10
	defaultFetchWait = 5 * time.Second
)

// NATSConsumer handles NATS JetStream consumption of transfer and
// income-verification events
type NATSConsumer struct {
	conn             *nats.Conn
	js               nats.JetStreamContext
	subs             []*nats.Subscription
	config           *config.NATSConfig
	logger           *logger.Logger
	txChan           chan *Delivery[*entity.Transaction]
	verificationChan chan *Delivery[*entity.VerificationEvent]
	isRunning        atomic.Bool
	wg               sync.WaitGroup

	// chanMu guards channel sends against the close in Disconnect
	chanMu sync.RWMutex
	closed bool
}

// NewNATSConsumer creates a new NATS consumer
func NewNATSConsumer(cfg *config.NATSConfig, logger *logger.Logger) *NATSConsumer {
	buffer := cfg.MaxPendingMessages
	if buffer <= 0 {
		buffer = 1
	}
	return &NATSConsumer{
		config:           cfg,
		logger:           logger.WithComponent("nats-consumer"),
		txChan:           make(chan *Delivery[*entity.Transaction], buffer),
		verificationChan: make(chan *Delivery[*entity.VerificationEvent], buffer),
	}
}

// TransactionSubject is the subject transfers are published on
func (n *NATSConsumer) TransactionSubject() string {
	return fmt.Sprintf("%s.events", n.config.SubjectPrefix)
}

// Connect connects to NATS server and sets up both subscriptions
func (n *NATSConsumer) Connect(ctx context.Context) error {
	if !n.config.Enabled {
		n.logger.Info("NATS is disabled, skipping connection")
		return nil
	}

	n.logger.Info("Connecting to NATS server", zap.String("url", n.config.URL))

	opts := []nats.Option{
		nats.Name("cred-credit-engine"),
		nats.Timeout(n.config.ConnectTimeout),
		nats.ReconnectWait(n.config.ReconnectDelay),
		nats.MaxReconnects(n.config.ReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			n.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		n.logger.Error("Failed to connect to NATS", zap.Error(err))
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	n.conn = conn

	// Try JetStream first, if not available fall back to core NATS
	js, err := conn.JetStream()
	if err != nil {
		n.logger.Warn("JetStream not available, using core NATS", zap.Error(err))
	} else {
		n.js = js
	}

	n.isRunning.Store(true)

	if err := n.subscribe(n.TransactionSubject(), "transactions", n.handleTransaction); err != nil {
		return err
	}
	if n.config.VerificationSubject != "" {
		if err := n.subscribe(n.config.VerificationSubject, "verification", n.handleVerification); err != nil {
			return err
		}
	}
	return nil
}

// subscribe binds subject to handler, preferring a durable JetStream pull consumer
func (n *NATSConsumer) subscribe(subject, name string, handler nats.MsgHandler) error {
	if n.js != nil {
		durable := fmt.Sprintf("%s-%s", n.config.DurableName, name)
		n.logger.Info("Setting up JetStream subscription",
			zap.String("subject", subject),
			zap.String("durable", durable),
			zap.String("stream", n.config.StreamName))

		sub, err := n.js.PullSubscribe(subject, durable, nats.BindStream(n.config.StreamName))
		if err == nil {
			n.subs = append(n.subs, sub)
			n.wg.Add(1)
			go n.processJetStreamMessages(sub, subject, handler)
			return nil
		}
		n.logger.Warn("Failed to create JetStream pull consumer, falling back to core NATS",
			zap.String("subject", subject),
			zap.Error(err))
	}

	return n.setupCoreNATSSubscription(subject, handler)
}

// processJetStreamMessages processes messages from a JetStream pull subscription
func (n *NATSConsumer) processJetStreamMessages(sub *nats.Subscription, subject string, handler nats.MsgHandler) {
	defer n.wg.Done()
	n.logger.Info("Starting JetStream message processing", zap.String("subject", subject))

	wait := n.config.FetchWait
	if wait <= 0 {
		wait = defaultFetchWait
	}

	for n.isRunning.Load() {
		msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
				break
			}
			n.logger.Error("Failed to fetch messages", zap.String("subject", subject), zap.Error(err))
			continue
		}

		n.logger.Debug("Fetched messages from JetStream",
			zap.String("subject", subject),
			zap.Int("count", len(msgs)))

		for _, msg := range msgs {
			handler(msg)
		}
	}

	n.logger.Info("Stopped JetStream message processing", zap.String("subject", subject))
}

// setupCoreNATSSubscription sets up a core NATS queue subscription
func (n *NATSConsumer) setupCoreNATSSubscription(subject string, handler nats.MsgHandler) error {
	queueGroup := n.config.ConsumerGroup

	n.logger.Info("Setting up core NATS subscription",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))

	sub, err := n.conn.QueueSubscribe(subject, queueGroup, handler)
	if err != nil {
		n.logger.Error("Failed to subscribe to subject", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	n.subs = append(n.subs, sub)
	return nil
}

func (n *NATSConsumer) handleTransaction(msg *nats.Msg) {
	tx, err := DecodeTransaction(msg.Data)
	if err != nil {
		n.logger.Error("Failed to decode transaction", zap.Error(err))
		terminate(msg)
		return
	}

	n.chanMu.RLock()
	defer n.chanMu.RUnlock()
	if n.closed {
		nak(msg)
		return
	}

	// Acked by the receiver once the batch holding it is processed
	select {
	case n.txChan <- deliveryFor(tx, msg):
	default:
		n.logger.Warn("Transaction channel is full, dropping message", zap.String("hash", tx.Hash))
		nak(msg)
	}
}

func (n *NATSConsumer) handleVerification(msg *nats.Msg) {
	event, err := DecodeVerification(msg.Data)
	if err != nil {
		n.logger.Error("Failed to decode verification event", zap.Error(err))
		terminate(msg)
		return
	}

	n.chanMu.RLock()
	defer n.chanMu.RUnlock()
	if n.closed {
		nak(msg)
		return
	}

	select {
	case n.verificationChan <- deliveryFor(event, msg):
	default:
		n.logger.Warn("Verification channel is full, dropping message",
			zap.String("wallet", event.WalletAddress))
		nak(msg)
	}
}

// DecodeTransaction parses a transfer event
func DecodeTransaction(data []byte) (*entity.Transaction, error) {
	var tx entity.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	if tx.Hash == "" {
		return nil, fmt.Errorf("transaction hash is required")
	}
	if tx.From == "" || tx.To == "" {
		return nil, fmt.Errorf("transaction %s is missing an endpoint", tx.Hash)
	}
	return &tx, nil
}

// DecodeVerification parses an income-verification event
func DecodeVerification(data []byte) (*entity.VerificationEvent, error) {
	var event entity.VerificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification event: %w", err)
	}
	if strings.TrimSpace(event.WalletAddress) == "" {
		return nil, fmt.Errorf("verification event wallet address is required")
	}
	return &event, nil
}

func nak(msg *nats.Msg) {
	if msg.Reply != "" {
		msg.Nak()
	}
}

// terminate stops redelivery of a message that will never decode
func terminate(msg *nats.Msg) {
	if msg.Reply != "" {
		msg.Term()
	}
}

// Disconnect disconnects from NATS server and closes both channels
func (n *NATSConsumer) Disconnect() error {
	n.isRunning.Store(false)

	for _, sub := range n.subs {
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Warn("Failed to unsubscribe", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	n.subs = nil

	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	n.wg.Wait()

	n.chanMu.Lock()
	if !n.closed {
		n.closed = true
		close(n.txChan)
		close(n.verificationChan)
	}
	n.chanMu.Unlock()
	n.logger.Info("Disconnected from NATS")
	return nil
}

// IsConnected checks if connected to NATS
func (n *NATSConsumer) IsConnected() bool {
	return n.isRunning.Load() && n.conn != nil && n.conn.IsConnected()
}

// GetTransactionChannel returns the transfer channel. Receivers must Ack or
// Nak every delivery.
func (n *NATSConsumer) GetTransactionChannel() <-chan *Delivery[*entity.Transaction] {
	return n.txChan
}

// GetVerificationChannel returns the verification event channel
func (n *NATSConsumer) GetVerificationChannel() <-chan *Delivery[*entity.VerificationEvent] {
	return n.verificationChan
}
