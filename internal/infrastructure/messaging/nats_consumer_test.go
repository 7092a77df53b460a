package messaging

import (
	"testing"
	"time"

	"cred-credit-engine/internal/infrastructure/config"
	"cred-credit-engine/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransaction(t *testing.T) {
	data := []byte(`{
		"hash": "0xabc",
		"from": "0x1111111111111111111111111111111111111111",
		"to": "0x2222222222222222222222222222222222222222",
		"value": "1000000000000000000",
		"block_number": "19000000",
		"timestamp": "2026-10-01T12:00:00Z",
		"network": "ethereum"
	}`)

	tx, err := DecodeTransaction(data)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", tx.Hash)
	assert.Equal(t, "1000000000000000000", tx.Value)
	assert.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), tx.Timestamp.UTC())
}

func TestDecodeTransactionRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: `{"hash":`},
		{name: "missing hash", data: `{"from":"0x1","to":"0x2"}`},
		{name: "missing recipient", data: `{"hash":"0xabc","from":"0x1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTransaction([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeVerification(t *testing.T) {
	event, err := DecodeVerification([]byte(`{"wallet_address":"0xAbC","verified_income":8300,"currency":"INR","provider":"reclaim"}`))
	require.NoError(t, err)
	assert.Equal(t, "0xAbC", event.WalletAddress)
	assert.Equal(t, 8300.0, event.VerifiedIncome)

	_, err = DecodeVerification([]byte(`{"verified_income":8300}`))
	assert.Error(t, err)
}

func newTestConsumer(buffer int) *NATSConsumer {
	return NewNATSConsumer(&config.NATSConfig{
		SubjectPrefix:      "transactions",
		MaxPendingMessages: buffer,
	}, logger.NewNop())
}

func TestHandleTransactionQueuesDecodedMessage(t *testing.T) {
	consumer := newTestConsumer(1)
	assert.Equal(t, "transactions.events", consumer.TransactionSubject())

	consumer.handleTransaction(&nats.Msg{Data: []byte(`{"hash":"0x1","from":"0xa","to":"0xb"}`)})
	// Full channel drops the second message
	consumer.handleTransaction(&nats.Msg{Data: []byte(`{"hash":"0x2","from":"0xa","to":"0xb"}`)})

	delivery := <-consumer.GetTransactionChannel()
	assert.Equal(t, "0x1", delivery.Payload.Hash)
	// Core NATS messages carry no reply subject and settle as no-ops
	assert.NoError(t, delivery.Ack())
	assert.Len(t, consumer.GetTransactionChannel(), 0)
}

func TestHandleVerificationQueuesDecodedMessage(t *testing.T) {
	consumer := newTestConsumer(4)

	consumer.handleVerification(&nats.Msg{Data: []byte(`not json`)})
	consumer.handleVerification(&nats.Msg{Data: []byte(`{"wallet_address":"0xabc","verified_income":100}`)})

	delivery := <-consumer.GetVerificationChannel()
	assert.Equal(t, "0xabc", delivery.Payload.WalletAddress)
	assert.Len(t, consumer.GetVerificationChannel(), 0)
}

func TestDisconnectClosesChannels(t *testing.T) {
	consumer := newTestConsumer(4)
	require.NoError(t, consumer.Disconnect())
	require.NoError(t, consumer.Disconnect())

	_, ok := <-consumer.GetTransactionChannel()
	assert.False(t, ok)
	_, ok = <-consumer.GetVerificationChannel()
	assert.False(t, ok)

	// Late deliveries after shutdown are dropped rather than panicking
	consumer.handleTransaction(&nats.Msg{Data: []byte(`{"hash":"0x1","from":"0xa","to":"0xb"}`)})
	assert.False(t, consumer.IsConnected())
}

func TestHandleTransactionLeavesAckToReceiver(t *testing.T) {
	consumer := newTestConsumer(1)

	// An unbound JetStream-style message fails to settle; queuing it must not try
	msg := &nats.Msg{Reply: "$JS.ACK.stream.consumer.1.1.1.0.0", Data: []byte(`{"hash":"0x1","from":"0xa","to":"0xb"}`)}
	consumer.handleTransaction(msg)

	delivery := <-consumer.GetTransactionChannel()
	assert.Equal(t, "0x1", delivery.Payload.Hash)
	assert.Error(t, delivery.Ack())
	assert.Error(t, delivery.Nak())
}

func TestDeliverySettle(t *testing.T) {
	var acks, naks int
	delivery := NewDelivery("payload",
		func() error { acks++; return nil },
		func() error { naks++; return nil })

	require.NoError(t, delivery.Ack())
	require.NoError(t, delivery.Nak())
	assert.Equal(t, 1, acks)
	assert.Equal(t, 1, naks)
	assert.Equal(t, "payload", delivery.Payload)

	bare := NewDelivery(42, nil, nil)
	assert.NoError(t, bare.Ack())
	assert.NoError(t, bare.Nak())
}
