package app

import (
	"io"

	"github.com/rs/zerolog"

	"webclip/internal/authorize"
	"webclip/internal/transport"
)

// Option is a functional option for configuring the application.
type Option func(*options)

type options struct {
	client transport.HTTPDoer
	bridge authorize.Bridge
	logger *zerolog.Logger
	stdin  io.Reader
	stdout io.Writer
}

// WithHTTPClient replaces the client used for outbound calls and page fetches.
func WithHTTPClient(c transport.HTTPDoer) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithBridge replaces the authorization bridge selected from configuration.
func WithBridge(b authorize.Bridge) Option {
	return func(o *options) {
		o.bridge = b
	}
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithConsole sets the terminal used by the delegated authorization strategy.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.stdin = in
		o.stdout = out
	}
}
