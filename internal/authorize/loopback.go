package authorize

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"webclip/internal/apperr"
	"webclip/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Loopback listens on the redirect address for exactly one callback.
type Loopback struct {
	redirectURI string
	state       string
	timeout     time.Duration
	log         zerolog.Logger

	// Open shows authURL to the user. It defaults to the system browser.
	Open func(authURL string) error
}

func NewLoopback(cfg config.AuthConfig, log zerolog.Logger) *Loopback {
	return &Loopback{
		redirectURI: cfg.RedirectURI,
		state:       cfg.State,
		timeout:     cfg.Timeout,
		log:         log,
		Open:        browser.OpenURL,
	}
}

type callbackResult struct {
	code string
	err  error
}

func (l *Loopback) Authorize(ctx context.Context, authURL string) (string, error) {
	target, err := url.Parse(l.redirectURI)
	if err != nil {
		return "", apperr.AuthorizationAbandoned("malformed redirect_uri", err)
	}

	ln, err := net.Listen("tcp", target.Host)
	if err != nil {
		return "", apperr.AuthorizationAbandoned("listen on "+target.Host, err)
	}

	results := make(chan callbackResult, 1)
	var once sync.Once
	complete := func(r callbackResult) {
		once.Do(func() { results <- r })
	}

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Get(normPath(target.Path), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		// Reloads and prefetches carry neither; keep waiting for the real redirect.
		if q.Get("code") == "" && q.Get("error") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "<html><body><p>Waiting for authorization.</p></body></html>")
			return
		}
		code, err := codeFromQuery(q, l.state)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "<html><body><p>Authorization failed: %s</p></body></html>", html.EscapeString(err.Error()))
		} else {
			fmt.Fprint(w, "<html><body><p>Authorization complete. You can close this tab.</p></body></html>")
		}
		complete(callbackResult{code: code, err: err})
	})

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			complete(callbackResult{err: apperr.AuthorizationAbandoned("callback listener stopped", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.log.Warn().Err(err).Msg("callback listener shutdown")
		}
	}()

	l.log.Info().Str("listen", target.Host).Str("url", authURL).Msg("waiting for authorization")
	if l.Open != nil {
		if err := l.Open(authURL); err != nil {
			l.log.Warn().Err(err).Msg("could not open a browser, open the url manually")
		}
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.code, res.err
	case <-timer.C:
		return "", apperr.AuthorizationAbandoned(fmt.Sprintf("no callback within %s", l.timeout), nil)
	case <-ctx.Done():
		return "", apperr.AuthorizationAbandoned("cancelled", ctx.Err())
	}
}
