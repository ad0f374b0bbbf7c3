// Package authorize captures the one-time authorization code issued after the user
// approves access on the consent page.
package authorize

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"webclip/internal/apperr"
	"webclip/internal/config"
)

// Bridge opens the consent page and waits for the redirect carrying the code.
// Implementations report every failure to obtain a code as AuthorizationAbandoned.
type Bridge interface {
	Authorize(ctx context.Context, authURL string) (string, error)
}

// New selects the strategy named by cfg.Strategy. in and out are only used by the
// delegated strategy.
func New(cfg config.AuthConfig, in io.Reader, out io.Writer, log zerolog.Logger) (Bridge, error) {
	switch cfg.Strategy {
	case config.StrategyLoopback:
		return NewLoopback(cfg, log), nil
	case config.StrategyDelegated:
		return NewDelegated(cfg, in, out, log), nil
	default:
		return nil, fmt.Errorf("authorize: unknown strategy %q", cfg.Strategy)
	}
}

// ParseRedirect extracts the code from the URL the consent page redirected to. The URL
// must point at redirectURI and carry the expected state.
func ParseRedirect(raw, redirectURI, state string) (string, error) {
	got, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.AuthorizationAbandoned("malformed redirect url", err)
	}
	want, err := url.Parse(redirectURI)
	if err != nil {
		return "", apperr.AuthorizationAbandoned("malformed redirect_uri", err)
	}
	if !sameTarget(got, want) {
		return "", apperr.AuthorizationAbandoned(fmt.Sprintf("redirect went to %s, expected %s", stripQuery(got), stripQuery(want)), nil)
	}
	return codeFromQuery(got.Query(), state)
}

func codeFromQuery(q url.Values, state string) (string, error) {
	if e := q.Get("error"); e != "" {
		reason := "provider returned error " + e
		if d := q.Get("error_description"); d != "" {
			reason += ": " + d
		}
		return "", apperr.AuthorizationAbandoned(reason, nil)
	}
	if state != "" && subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
		return "", apperr.AuthorizationAbandoned("state mismatch", nil)
	}
	code := q.Get("code")
	if code == "" {
		return "", apperr.AuthorizationAbandoned("redirect carried no code", nil)
	}
	return code, nil
}

func sameTarget(got, want *url.URL) bool {
	return strings.EqualFold(got.Scheme, want.Scheme) &&
		strings.EqualFold(got.Host, want.Host) &&
		normPath(got.Path) == normPath(want.Path)
}

func normPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

func stripQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}
