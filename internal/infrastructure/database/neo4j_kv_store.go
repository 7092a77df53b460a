package database

import (
	"context"
	"fmt"
	"time"

	"cred-credit-engine/internal/domain/repository"
	"cred-credit-engine/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4JKeyValueStore implements KeyValueStore as (:CreditStateRecord {key, value}) nodes
type Neo4JKeyValueStore struct {
	client *Neo4JClient
	logger *logger.Logger
}

// NewNeo4JKeyValueStore creates a new Neo4J backed key-value store
func NewNeo4JKeyValueStore(client *Neo4JClient, logger *logger.Logger) *Neo4JKeyValueStore {
	return &Neo4JKeyValueStore{
		client: client,
		logger: logger.WithComponent("neo4j-kv-store"),
	}
}

// Get returns the value stored at key
func (s *Neo4JKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	records, err := s.read(ctx, `
		MATCH (c:CreditStateRecord {key: $key})
		RETURN c.value
	`, map[string]any{"key": key})
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if len(records) == 0 {
		return "", repository.ErrKeyNotFound
	}
	return asString(records[0].Values[0]), nil
}

// Set stores value at key
func (s *Neo4JKeyValueStore) Set(ctx context.Context, key, value string) error {
	err := s.write(ctx, `
		MERGE (c:CreditStateRecord {key: $key})
		SET c.value = $value, c.updated_at = $updated_at
	`, map[string]any{
		"key":        key,
		"value":      value,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *Neo4JKeyValueStore) Delete(ctx context.Context, key string) error {
	err := s.write(ctx, `
		MATCH (c:CreditStateRecord {key: $key})
		DELETE c
	`, map[string]any{"key": key})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Keys lists keys with the given prefix
func (s *Neo4JKeyValueStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	records, err := s.read(ctx, `
		MATCH (c:CreditStateRecord)
		WHERE c.key STARTS WITH $prefix
		RETURN c.key
		ORDER BY c.key
	`, map[string]any{"prefix": prefix})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	keys := make([]string, 0, len(records))
	for _, record := range records {
		keys = append(keys, asString(record.Values[0]))
	}
	return keys, nil
}

func (s *Neo4JKeyValueStore) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session, err := s.client.NewSession(ctx, neo4j.AccessModeRead)
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

func (s *Neo4JKeyValueStore) write(ctx context.Context, query string, params map[string]any) error {
	session, err := s.client.NewSession(ctx, neo4j.AccessModeWrite)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}
