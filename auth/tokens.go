package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/gaborage/dashclient/storage"
)

// TokenStore reads and persists session credentials through an ordered list
// of lookups. Reads return the first non-empty value; writes go to every lookup.
type TokenStore struct {
	store   storage.Store
	lookups []Lookup
	mu      sync.Mutex
}

// NewTokenStore creates a TokenStore over s. Without lookups DefaultLookups is used.
func NewTokenStore(s storage.Store, lookups ...Lookup) *TokenStore {
	if len(lookups) == 0 {
		lookups = DefaultLookups()
	}
	return &TokenStore{store: s, lookups: lookups}
}

// AccessToken returns the current access token, or "" when unauthenticated
func (t *TokenStore) AccessToken(ctx context.Context) (string, error) {
	return t.read(ctx, FieldAccessToken)
}

// RefreshToken returns the current refresh token, or "" when absent
func (t *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	return t.read(ctx, FieldRefreshToken)
}

// Credentials returns both tokens
func (t *TokenStore) Credentials(ctx context.Context) (Credentials, error) {
	access, err := t.AccessToken(ctx)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := t.RefreshToken(ctx)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// SetAccessToken persists token in every storage format
func (t *TokenStore) SetAccessToken(ctx context.Context, token string) error {
	return t.write(ctx, FieldAccessToken, token)
}

// SetRefreshToken persists token in every storage format
func (t *TokenStore) SetRefreshToken(ctx context.Context, token string) error {
	return t.write(ctx, FieldRefreshToken, token)
}

// SetCredentials persists both tokens. An empty refresh token leaves the
// stored one untouched.
func (t *TokenStore) SetCredentials(ctx context.Context, c Credentials) error {
	if err := t.SetAccessToken(ctx, c.AccessToken); err != nil {
		return err
	}
	if c.RefreshToken == "" {
		return nil
	}
	return t.SetRefreshToken(ctx, c.RefreshToken)
}

// ClearAccessToken removes the access token from every storage format
func (t *TokenStore) ClearAccessToken(ctx context.Context) error {
	return t.write(ctx, FieldAccessToken, "")
}

// Purge deletes every key the lookups own plus cached user data
func (t *TokenStore) Purge(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := []string{KeyUserData}
	for _, l := range t.lookups {
		keys = append(keys, l.Keys()...)
	}
	if err := t.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to purge credentials: %w", err)
	}
	return nil
}

func (t *TokenStore) read(ctx context.Context, f Field) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range t.lookups {
		v, err := l.Read(ctx, t.store, f)
		if err != nil {
			return "", fmt.Errorf("%s lookup failed: %w", l.Name(), err)
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

func (t *TokenStore) write(ctx context.Context, f Field, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range t.lookups {
		if err := l.Write(ctx, t.store, f, value); err != nil {
			return fmt.Errorf("%s lookup write failed: %w", l.Name(), err)
		}
	}
	return nil
}
