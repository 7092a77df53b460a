package database

import (
	"context"
	"fmt"
	"time"

	"cred-credit-engine/internal/domain/entity"
	"cred-credit-engine/internal/domain/repository"
	"cred-credit-engine/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4JTransactionRepository implements TransactionRepository interface.
// Wallets are (:Wallet) nodes and every transfer is a SENT_TO edge keyed by tx hash.
type Neo4JTransactionRepository struct {
	client *Neo4JClient
	logger *logger.Logger
}

// NewNeo4JTransactionRepository creates a new Neo4J transaction repository
func NewNeo4JTransactionRepository(client *Neo4JClient, logger *logger.Logger) repository.TransactionRepository {
	return &Neo4JTransactionRepository{
		client: client,
		logger: logger.WithComponent("neo4j-transaction-repo"),
	}
}

// IndexTransactions merges wallets and SENT_TO edges for a batch in one write
func (r *Neo4JTransactionRepository) IndexTransactions(ctx context.Context, transactions []*entity.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	session, err := r.client.NewSession(ctx, neo4j.AccessModeWrite)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	query := `
		UNWIND $relationships AS rel
		MERGE (from:Wallet {address: rel.from_address})
		ON CREATE SET from.first_seen = rel.timestamp, from.network = rel.network
		SET from.last_seen = rel.timestamp
		MERGE (to:Wallet {address: rel.to_address})
		ON CREATE SET to.first_seen = rel.timestamp, to.network = rel.network
		SET to.last_seen = rel.timestamp
		MERGE (from)-[r:SENT_TO {tx_hash: rel.tx_hash}]->(to)
		SET r.value = rel.value,
			r.block_number = rel.block_number,
			r.timestamp = rel.timestamp,
			r.network = rel.network
	`

	relationships := make([]map[string]any, 0, len(transactions))
	for _, tx := range transactions {
		rel := entity.NewTransactionRelationship(tx)
		relationships = append(relationships, map[string]any{
			"from_address": rel.FromAddress,
			"to_address":   rel.ToAddress,
			"tx_hash":      rel.TxHash,
			"value":        rel.Value,
			"block_number": rel.BlockNumber,
			"timestamp":    rel.Timestamp.UTC(),
			"network":      rel.Network,
		})
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"relationships": relationships})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to index transactions: %w", err)
	}

	r.logger.Debug("Indexed transactions", zap.Int("count", len(transactions)))
	return nil
}

// GetTransactionsByWallet retrieves inbound and outbound transfers for a wallet, newest first
func (r *Neo4JTransactionRepository) GetTransactionsByWallet(ctx context.Context, address string, limit int) ([]*entity.Transaction, error) {
	session, err := r.client.NewSession(ctx, neo4j.AccessModeRead)
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	query := `
		MATCH (from:Wallet)-[r:SENT_TO]->(to:Wallet)
		WHERE from.address = $address OR to.address = $address
		RETURN r.tx_hash, from.address, to.address, r.value, r.block_number, r.timestamp, r.network
		ORDER BY r.timestamp DESC
		LIMIT $limit
	`

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"address": address,
			"limit":   limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions by wallet: %w", err)
	}

	records := result.([]*neo4j.Record)
	transactions := make([]*entity.Transaction, 0, len(records))
	for _, record := range records {
		values := record.Values
		transactions = append(transactions, &entity.Transaction{
			Hash:        asString(values[0]),
			From:        asString(values[1]),
			To:          asString(values[2]),
			Value:       asString(values[3]),
			BlockNumber: asString(values[4]),
			Timestamp:   asTime(values[5]),
			Network:     asString(values[6]),
		})
	}

	return transactions, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case neo4j.LocalDateTime:
		return t.Time()
	default:
		return time.Time{}
	}
}
