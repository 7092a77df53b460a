package entity

import (
	"time"
)

// Transaction represents an onchain transfer event, either delivered over NATS
// or read back from the history index. Value is denominated in wei.
type Transaction struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	BlockNumber string    `json:"block_number"`
	BlockHash   string    `json:"block_hash"`
	Timestamp   time.Time `json:"timestamp"`
	Network     string    `json:"network"`
}

// TransactionRelationship represents a SENT_TO edge between two wallets
type TransactionRelationship struct {
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	Value       string    `json:"value"`
	BlockNumber string    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
	TxHash      string    `json:"tx_hash"`
	Network     string    `json:"network"`
}

// NewTransactionRelationship builds the wallet edge for a transaction
func NewTransactionRelationship(tx *Transaction) *TransactionRelationship {
	return &TransactionRelationship{
		FromAddress: tx.From,
		ToAddress:   tx.To,
		Value:       tx.Value,
		BlockNumber: tx.BlockNumber,
		Timestamp:   tx.Timestamp,
		TxHash:      tx.Hash,
		Network:     tx.Network,
	}
}
