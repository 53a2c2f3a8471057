package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/dashclient/internal/testutil"
	"github.com/gaborage/dashclient/storage"
)

type failingStore struct {
	storage.Store
	err error
}

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error         { return f.err }
func (f failingStore) Delete(context.Context, ...string) error           { return f.err }

func TestTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenStore(storage.NewMemory())

	require.NoError(t, tokens.SetAccessToken(ctx, "abc"))

	got, err := tokens.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.NoError(t, tokens.ClearAccessToken(ctx))
	got, err = tokens.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenStoreWritesEveryFormat(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	tokens := NewTokenStore(store)

	require.NoError(t, tokens.SetCredentials(ctx, Credentials{
		AccessToken:  testutil.TestAccessToken,
		RefreshToken: testutil.TestRefreshToken,
	}))

	legacy, found, err := store.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, testutil.TestAccessToken, legacy)

	legacyRefresh, _, err := store.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestRefreshToken, legacyRefresh)

	raw, found, err := store.Get(ctx, KeyAuthStorage)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"state":{"token":"access-abc","refreshToken":"refresh-xyz"}}`, raw)
}

func TestTokenStoreLookupOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("structured entry wins", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, KeyAuthStorage, `{"state":{"token":"structured"}}`))
		require.NoError(t, store.Set(ctx, KeyAuthToken, "legacy"))

		got, err := NewTokenStore(store).AccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "structured", got)
	})

	t.Run("legacy key is the fallback", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, KeyRefreshToken, "legacy-refresh"))

		got, err := NewTokenStore(store).RefreshToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "legacy-refresh", got)
	})

	t.Run("corrupt structured entry falls through", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, KeyAuthStorage, `{not json`))
		require.NoError(t, store.Set(ctx, KeyAuthToken, "legacy"))

		got, err := NewTokenStore(store).AccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "legacy", got)
	})

	t.Run("custom lookup list", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, KeyAuthStorage, `{"state":{"token":"structured"}}`))

		got, err := NewTokenStore(store, LegacyLookup{}).AccessToken(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestStructuredLookupPreservesOtherFields(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, KeyAuthStorage, `{"state":{"user":{"id":7}},"version":0}`))

	require.NoError(t, StructuredLookup{}.Write(ctx, store, FieldAccessToken, "tok"))

	raw, _, err := store.Get(ctx, KeyAuthStorage)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, float64(0), doc["version"])
	state := doc["state"].(map[string]any)
	assert.Equal(t, "tok", state["token"])
	assert.NotNil(t, state["user"])
}

func TestTokenStoreSetCredentialsKeepsRefreshToken(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenStore(storage.NewMemory())
	require.NoError(t, tokens.SetRefreshToken(ctx, "old-refresh"))

	require.NoError(t, tokens.SetCredentials(ctx, Credentials{AccessToken: "new-access"}))

	creds, err := tokens.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{AccessToken: "new-access", RefreshToken: "old-refresh"}, creds)
	assert.True(t, creds.Authenticated())
}

func TestTokenStorePurge(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	tokens := NewTokenStore(store)
	require.NoError(t, tokens.SetCredentials(ctx, Credentials{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, store.Set(ctx, KeyUserData, `{"id":1}`))
	require.NoError(t, store.Set(ctx, "theme", "dark"))

	require.NoError(t, tokens.Purge(ctx))

	for _, key := range []string{KeyAuthToken, KeyRefreshToken, KeyUserData, KeyAuthStorage} {
		_, found, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, key)
	}
	theme, found, _ := store.Get(ctx, "theme")
	assert.True(t, found)
	assert.Equal(t, "dark", theme)
}

func TestTokenStorePropagatesStorageErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	tokens := NewTokenStore(failingStore{err: boom})

	_, err := tokens.AccessToken(ctx)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, tokens.SetAccessToken(ctx, "x"), boom)
	assert.ErrorIs(t, tokens.Purge(ctx), boom)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	assert.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)
}
