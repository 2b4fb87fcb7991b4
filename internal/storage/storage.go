// Package storage provides the durable key/value abstraction the client uses
// to remember the session and the resolved API base URL across restarts.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set or was deleted.
var ErrNotFound = errors.New("key not found")

// Well-known keys.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyCurrentUser  = "currentUser"
	KeyAPIBaseURL   = "apiBaseUrl"
)

// Store is a durable string key/value store. Implementations must be safe
// for concurrent use. Deleting a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetOptional returns the value for key, or "" when it is not set.
func GetOptional(ctx context.Context, s Store, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
