package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gaborage/dashclient/storage"
)

// Field names one credential slot
type Field int

const (
	FieldAccessToken Field = iota
	FieldRefreshToken
)

// Lookup is one storage format credentials may live in. TokenStore tries its
// lookups in order for reads and writes every one of them.
type Lookup interface {
	Name() string
	Read(ctx context.Context, s storage.Store, f Field) (string, error)
	// Write stores value for f; an empty value removes it.
	Write(ctx context.Context, s storage.Store, f Field, value string) error
	// Keys lists every storage key the lookup owns
	Keys() []string
}

// DefaultLookups reads the structured entry first and the legacy flat keys second
func DefaultLookups() []Lookup {
	return []Lookup{StructuredLookup{}, LegacyLookup{}}
}

// LegacyLookup stores each credential under its own flat key
type LegacyLookup struct{}

func (LegacyLookup) Name() string { return "legacy" }

func (LegacyLookup) Keys() []string { return []string{KeyAuthToken, KeyRefreshToken} }

func (LegacyLookup) key(f Field) string {
	if f == FieldRefreshToken {
		return KeyRefreshToken
	}
	return KeyAuthToken
}

func (l LegacyLookup) Read(ctx context.Context, s storage.Store, f Field) (string, error) {
	v, _, err := s.Get(ctx, l.key(f))
	return v, err
}

func (l LegacyLookup) Write(ctx context.Context, s storage.Store, f Field, value string) error {
	if value == "" {
		return s.Delete(ctx, l.key(f))
	}
	return s.Set(ctx, l.key(f), value)
}

// StructuredLookup reads and writes the persisted auth state document
// {"state":{"token":..., "refreshToken":...}}. Unrelated fields of the
// document are preserved on write.
type StructuredLookup struct{}

func (StructuredLookup) Name() string { return "structured" }

func (StructuredLookup) Keys() []string { return []string{KeyAuthStorage} }

func (StructuredLookup) field(f Field) string {
	if f == FieldRefreshToken {
		return "refreshToken"
	}
	return "token"
}

func (l StructuredLookup) Read(ctx context.Context, s storage.Store, f Field) (string, error) {
	doc, err := l.load(ctx, s)
	if err != nil || doc == nil {
		return "", err
	}
	state, _ := doc["state"].(map[string]any)
	v, _ := state[l.field(f)].(string)
	return v, nil
}

func (l StructuredLookup) Write(ctx context.Context, s storage.Store, f Field, value string) error {
	doc, err := l.load(ctx, s)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	state, _ := doc["state"].(map[string]any)
	if state == nil {
		state = map[string]any{}
	}
	if value == "" {
		delete(state, l.field(f))
	} else {
		state[l.field(f)] = value
	}
	doc["state"] = state

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode auth state: %w", err)
	}
	return s.Set(ctx, KeyAuthStorage, string(raw))
}

func (StructuredLookup) load(ctx context.Context, s storage.Store) (map[string]any, error) {
	raw, found, err := s.Get(ctx, KeyAuthStorage)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		// A corrupt document reads as absent so the next lookup is tried,
		// and the next write replaces it.
		return nil, nil
	}
	return doc, nil
}
