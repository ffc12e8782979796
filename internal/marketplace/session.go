package marketplace

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	accessTokenCookie = "access_token_web"
	defaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Session is the reusable request profile for one invocation. Built fresh
// from stored credentials at the start of every run, never persisted and
// never shared across concurrent runs.
type Session struct {
	AuthToken    string
	CookieHeader string
	UserAgent    string
}

// BuildSession turns a raw cookie string into a Session. The cookie string
// is whatever the browser sent, semicolon-separated; the access-token cookie
// must be among them or ErrMissingCredential is returned. Deterministic,
// no side effects.
func BuildSession(cookieHeader, userAgent string) (Session, error) {
	cookieHeader = strings.TrimSpace(cookieHeader)
	if cookieHeader == "" {
		return Session{}, ErrMissingCredential
	}

	var token string
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		if name == accessTokenCookie {
			token = strings.TrimSpace(value)
			break
		}
	}
	if token == "" {
		return Session{}, ErrMissingCredential
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return Session{
		AuthToken:    token,
		CookieHeader: cookieHeader,
		UserAgent:    userAgent,
	}, nil
}

// SessionSource produces a fresh Session per run.
type SessionSource interface {
	Session(ctx context.Context) (Session, error)
}

// CredentialSource builds sessions from a configured cookie string, read
// either inline or from a file so the credential can be rotated without a
// restart.
type CredentialSource struct {
	Cookie     string
	CookieFile string
	UserAgent  string
}

// Session implements SessionSource.
func (c CredentialSource) Session(ctx context.Context) (Session, error) {
	cookie := c.Cookie
	if c.CookieFile != "" {
		raw, err := os.ReadFile(c.CookieFile)
		if err != nil {
			return Session{}, fmt.Errorf("read cookie file: %w", err)
		}
		cookie = strings.TrimSpace(string(raw))
	}
	return BuildSession(cookie, c.UserAgent)
}
