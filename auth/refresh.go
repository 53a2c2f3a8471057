package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/dashclient/logger"
)

var (
	// ErrNoRefreshToken is returned when a refresh is attempted without a stored refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshFailed wraps every failure of the refresh call itself
	ErrRefreshFailed = errors.New("failed to refresh token")
)

// RefreshPath is appended to the API base URL
const RefreshPath = "/auth/refresh"

const maxRefreshBody = 1 << 20

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
}

// Refresher exchanges the stored refresh token for a new access token.
// It talks to the transport directly so a refresh can never trigger
// credential injection, retries or another refresh.
type Refresher struct {
	httpClient *http.Client
	refreshURL string
	tokens     *TokenStore
	cookies    CookieSink
	log        logger.Logger
	sfg        singleflight.Group
}

// NewRefresher creates a Refresher posting to baseURL + RefreshPath
func NewRefresher(httpClient *http.Client, baseURL string, tokens *TokenStore, cookies CookieSink, log logger.Logger) *Refresher {
	if cookies == nil {
		cookies = NopCookieSink{}
	}
	return &Refresher{
		httpClient: httpClient,
		refreshURL: strings.TrimRight(baseURL, "/") + RefreshPath,
		tokens:     tokens,
		cookies:    cookies,
		log:        log,
	}
}

// Refresh obtains and persists new credentials. Concurrent callers share one
// in-flight refresh call. Errors match ErrNoRefreshToken or ErrRefreshFailed.
func (r *Refresher) Refresh(ctx context.Context) (Credentials, error) {
	v, err, shared := r.sfg.Do("refresh", func() (any, error) {
		return r.refresh(ctx)
	})
	if shared {
		r.log.Debug().Msg("joined in-flight token refresh")
	}
	if err != nil {
		return Credentials{}, err
	}
	return v.(Credentials), nil
}

func (r *Refresher) refresh(ctx context.Context) (Credentials, error) {
	refreshToken, err := r.tokens.RefreshToken(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if refreshToken == "" {
		return Credentials{}, ErrNoRefreshToken
	}

	creds, err := r.exchange(ctx, refreshToken)
	if err != nil {
		r.log.Warn().Err(err).Str("url", r.refreshURL).Msg("token refresh failed")
		return Credentials{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}

	r.cookies.SetAuthCookie(creds.AccessToken)
	if err := r.tokens.SetCredentials(ctx, creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	r.log.Info().Msg("access token refreshed")
	return creds, nil
}

func (r *Refresher) exchange(ctx context.Context, refreshToken string) (Credentials, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return Credentials{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.refreshURL, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Credentials{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credentials{}, fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBody))
	if err != nil {
		return Credentials{}, err
	}
	var decoded refreshResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Credentials{}, fmt.Errorf("malformed refresh response: %w", err)
	}
	if decoded.Data.AccessToken == "" {
		return Credentials{}, errors.New("malformed refresh response: missing access token")
	}

	return Credentials{
		AccessToken:  decoded.Data.AccessToken,
		RefreshToken: decoded.Data.RefreshToken,
	}, nil
}
