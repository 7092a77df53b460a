package repository

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by KeyValueStore.Get for missing keys
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the minimal persistence surface the credit ledger needs
type KeyValueStore interface {
	// Get returns the value stored at key or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key, overwriting any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
}
