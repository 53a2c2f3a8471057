// Package auth owns the session credential lifecycle of the API client:
// reading and persisting tokens, refreshing the access token, mirroring it
// into the auth cookie, and purging everything when a refresh fails.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Storage keys and cookie attributes shared with the dashboard frontend
const (
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"
	// KeyAuthStorage holds the structured {"state":{"token","refreshToken"}} entry
	KeyAuthStorage = "auth-storage"

	CookieName          = "auth-token"
	CookiePath          = "/"
	DefaultCookieMaxAge = 7 * 24 * time.Hour
)

// Credentials is the session a client authenticates with
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Authenticated reports whether an access token is present
func (c Credentials) Authenticated() bool {
	return c.AccessToken != ""
}

// TokenExpiry decodes the exp claim of a JWT access token without verifying
// its signature. ok is false for opaque tokens or tokens without exp.
func TokenExpiry(token string) (expiresAt time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
