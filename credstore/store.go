// Package credstore persists the session credentials (bearer token and user
// id) that the realtime client and the REST client read on every call.
//
// Backends: an in-process map (NewMemory), SQL databases (OpenSQLite,
// OpenPostgres) and Redis (NewRedis, DialRedis). Open picks one from Config.
package credstore

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeyToken  = "token"
	KeyUserID = "userId"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("credential not found")

// Store is a small string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
