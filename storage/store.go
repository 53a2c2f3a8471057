// Package storage provides the local key-value store the API client keeps
// session credentials in. It plays the role browser local storage plays for
// a web dashboard: small string values under well-known keys.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("storage: store is closed")

// Store is a string key-value store. Implementations must be safe for
// concurrent use. Get reports found=false for missing keys without an error,
// and Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
