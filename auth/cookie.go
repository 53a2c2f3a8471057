package auth

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// CookieSink mirrors the access token into the auth cookie read by
// server-side middleware.
type CookieSink interface {
	SetAuthCookie(token string)
	ExpireAuthCookie()
}

// NewCookieJar creates the jar shared by the client transport and the CSRF
// endpoint so cookies set by the API travel with later requests.
func NewCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// JarCookieSink writes the auth cookie into a cookie jar for the API origin
type JarCookieSink struct {
	jar    http.CookieJar
	origin *url.URL
	maxAge time.Duration
}

var _ CookieSink = (*JarCookieSink)(nil)

// NewJarCookieSink creates a sink for origin. maxAge <= 0 uses DefaultCookieMaxAge.
func NewJarCookieSink(jar http.CookieJar, origin string, maxAge time.Duration) (*JarCookieSink, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie origin %q: %w", origin, err)
	}
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &JarCookieSink{jar: jar, origin: u, maxAge: maxAge}, nil
}

// SetAuthCookie stores token with path /, the configured max-age, Secure and SameSite=Strict
func (s *JarCookieSink) SetAuthCookie(token string) {
	s.jar.SetCookies(s.origin, []*http.Cookie{{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   int(s.maxAge / time.Second),
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}})
}

// ExpireAuthCookie removes the auth cookie from the jar
func (s *JarCookieSink) ExpireAuthCookie() {
	s.jar.SetCookies(s.origin, []*http.Cookie{{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}})
}

// NopCookieSink discards cookie writes
type NopCookieSink struct{}

func (NopCookieSink) SetAuthCookie(string) {}
func (NopCookieSink) ExpireAuthCookie()    {}
