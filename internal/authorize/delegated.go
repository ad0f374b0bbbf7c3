package authorize

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"webclip/internal/apperr"
	"webclip/internal/config"
)

// Delegated prints the consent URL and reads back the redirect URL the user pastes.
// It suits hosts where no local listener is reachable from the browser.
//
// One goroutine owns the input for the lifetime of the Delegated, so an abandoned
// attempt never leaves a second reader behind.
type Delegated struct {
	redirectURI string
	state       string
	timeout     time.Duration
	in          io.Reader
	out         io.Writer
	log         zerolog.Logger

	mu       sync.Mutex
	start    sync.Once
	attempts int
	lines    chan string
	readErr  error
}

func NewDelegated(cfg config.AuthConfig, in io.Reader, out io.Writer, log zerolog.Logger) *Delegated {
	return &Delegated{
		redirectURI: cfg.RedirectURI,
		state:       cfg.State,
		timeout:     cfg.Timeout,
		in:          in,
		out:         out,
		log:         log,
		lines:       make(chan string),
	}
}

// readLines feeds non-blank input lines to d.lines and closes it when input ends.
// readErr is set before the close.
func (d *Delegated) readLines() {
	defer close(d.lines)
	r := bufio.NewReader(d.in)
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			d.lines <- line
		}
		if err != nil {
			d.readErr = err
			return
		}
	}
}

// drain drops lines pasted after an earlier attempt gave up waiting for them.
func (d *Delegated) drain() {
	for {
		select {
		case line, ok := <-d.lines:
			if !ok {
				return
			}
			d.log.Debug().Int("length", len(line)).Msg("discarding stale input line")
		default:
			return
		}
	}
}

func (d *Delegated) Authorize(ctx context.Context, authURL string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.start.Do(func() { go d.readLines() })
	if d.attempts > 0 {
		d.drain()
	}
	d.attempts++

	fmt.Fprintf(d.out, "Open this URL in a browser and approve access:\n\n  %s\n\nThen paste the full URL you were redirected to:\n> ", authURL)

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case line, ok := <-d.lines:
		if !ok {
			if d.readErr == nil || errors.Is(d.readErr, io.EOF) {
				return "", apperr.AuthorizationAbandoned("input closed before a redirect url was pasted", nil)
			}
			return "", apperr.AuthorizationAbandoned("read redirect url", d.readErr)
		}
		d.log.Debug().Msg("redirect url received")
		return ParseRedirect(line, d.redirectURI, d.state)
	case <-timer.C:
		return "", apperr.AuthorizationAbandoned(fmt.Sprintf("no redirect url within %s", d.timeout), nil)
	case <-ctx.Done():
		return "", apperr.AuthorizationAbandoned("cancelled", ctx.Err())
	}
}
