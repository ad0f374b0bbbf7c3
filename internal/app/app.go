// Package app wires configuration, transports and services into a runnable application.
package app

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"webclip/internal/authorize"
	"webclip/internal/config"
	"webclip/internal/handlers"
	"webclip/internal/logger"
	"webclip/internal/middleware"
	"webclip/internal/services"
	"webclip/internal/transport"
)

const slowRequest = 5 * time.Second

// App holds the long-lived components. The publisher keeps no tokens between calls.
type App struct {
	Config      *config.Config
	Log         zerolog.Logger
	Credentials *services.CredentialService
	Publisher   *services.Publisher
	Extractor   *services.Extractor
	Converter   *services.Converter
	Handler     *handlers.Handler
}

// New builds the application from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{stdin: os.Stdin, stdout: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	log := logger.New(logger.Options{
		Level:   cfg.App.LogLevel,
		Format:  cfg.App.LogFormat,
		Service: "webclip",
	})
	if o.logger != nil {
		log = *o.logger
	}

	client := o.client
	if client == nil {
		client = &http.Client{Timeout: cfg.Transport.Timeout}
	}

	// Token responses must be read, so credential calls never use the opaque mode.
	tokens, err := transport.New(transport.ModeStandard, client)
	if err != nil {
		return nil, err
	}
	uploads, err := transport.New(transport.Mode(cfg.Transport.Mode), client)
	if err != nil {
		return nil, err
	}

	bridge := o.bridge
	if bridge == nil {
		bridge, err = authorize.New(cfg.Auth, o.stdin, o.stdout, logger.Named(log, "authorize"))
		if err != nil {
			return nil, fmt.Errorf("authorization bridge: %w", err)
		}
	}

	a := &App{Config: cfg, Log: log}
	a.Credentials = services.NewCredentialService(tokens, cfg, logger.Named(log, "credentials"))
	a.Publisher = services.NewPublisher(a.Credentials, bridge, uploads, cfg, logger.Named(log, "publisher"))
	a.Extractor = services.NewExtractor(client, logger.Named(log, "extractor"))
	a.Converter = services.NewConverter()
	a.Handler = handlers.New(a.Extractor, a.Converter, a.Publisher, logger.Named(log, "handlers"))

	log.Debug().
		Str("strategy", cfg.Auth.Strategy).
		Str("transport", cfg.Transport.Mode).
		Str("base_url", cfg.Feishu.BaseURL).
		Msg("application wired")
	return a, nil
}

// Router returns the action API with its middleware stack.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger.Named(a.Log, "http"), slowRequest))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(a.Config.CORS.AllowedOrigins))
	a.Handler.Routes(r)
	return r
}
