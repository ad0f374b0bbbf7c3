package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"webclip/internal/models"
)

// Authorization strategies.
const (
	StrategyLoopback  = "loopback"
	StrategyDelegated = "delegated"
)

// Transport modes.
const (
	TransportStandard = "standard"
	TransportOpaque   = "opaque"
)

// Document service paths. These are a fixed contract; only the base URL varies.
const (
	PathAppAccessToken   = "/open-apis/auth/v3/app_access_token/internal"
	PathAuthorize        = "/open-apis/authen/v1/index"
	PathUserAccessToken  = "/open-apis/authen/v1/access_token"
	PathRefreshToken     = "/open-apis/authen/v1/refresh_access_token"
	PathUploadAll        = "/open-apis/drive/v1/files/upload_all"
	defaultFeishuBaseURL = "https://open.feishu.cn"
)

const defaultHTTPHost = "127.0.0.1"

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `yaml:"app"`
	Feishu    FeishuConfig    `yaml:"feishu"`
	Auth      AuthConfig      `yaml:"auth"`
	Transport TransportConfig `yaml:"transport"`
	CORS      CORSConfig      `yaml:"cors"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Feishu.Validate(); err != nil {
		return fmt.Errorf("feishu: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	return nil
}

// Endpoint returns the OAuth endpoints of the configured document service.
func (c *Config) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  c.Feishu.URL(PathAuthorize),
		TokenURL: c.Feishu.URL(PathUserAccessToken),
	}
}

// ApplyEnv overrides credentials from FEISHU_APP_ID, FEISHU_APP_SECRET and FEISHU_PARENT_NODE when set.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("FEISHU_APP_ID")); v != "" {
		c.Feishu.AppID = v
	}
	if v := strings.TrimSpace(os.Getenv("FEISHU_APP_SECRET")); v != "" {
		c.Feishu.AppSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("FEISHU_PARENT_NODE")); v != "" {
		c.Feishu.ParentNode = v
	}
}

// AppConfig holds process-level settings.
type AppConfig struct {
	LogLevel  string     `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

func (c *AppConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In("console", "json")),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds the action API listener settings. Host defaults to the loopback
// interface; an empty host listens on every interface.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// FeishuConfig identifies the application and the upload target.
type FeishuConfig struct {
	BaseURL    string `yaml:"base_url"`
	AppID      string `yaml:"app_id"`
	AppSecret  string `yaml:"app_secret"`
	ParentNode string `yaml:"parent_node"`
}

func (c *FeishuConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.AppID, validation.Required),
		validation.Field(&c.AppSecret, validation.Required),
	)
}

// URL joins path onto the base URL.
func (c *FeishuConfig) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// Credential returns the application credential.
func (c *FeishuConfig) Credential() models.AppCredential {
	return models.AppCredential{AppID: c.AppID, AppSecret: c.AppSecret}
}

// AuthConfig holds the interactive authorization settings.
//
// Strategy selects how the authorization code is captured:
//   - "loopback": a one-shot local listener on RedirectURI receives the browser redirect.
//   - "delegated": the user completes the flow and pastes the final redirect URL.
type AuthConfig struct {
	Strategy    string        `yaml:"strategy"`
	RedirectURI string        `yaml:"redirect_uri"`
	Scope       string        `yaml:"scope"`
	State       string        `yaml:"state"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c *AuthConfig) Validate() error {
	// An empty state would disable the CSRF check, so one is generated per process.
	if strings.TrimSpace(c.State) == "" {
		c.State = uuid.NewString()
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Strategy, validation.Required, validation.In(StrategyLoopback, StrategyDelegated)),
		validation.Field(&c.RedirectURI, validation.Required, is.URL),
		validation.Field(&c.Scope, validation.Required),
	); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Strategy == StrategyLoopback {
		return checkLoopbackRedirect(c.RedirectURI)
	}
	return nil
}

func checkLoopbackRedirect(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("redirect_uri: %w", err)
	}
	if u.Scheme != "http" {
		return fmt.Errorf("redirect_uri: loopback strategy needs an http URL, got %q", u.Scheme)
	}
	if u.Port() == "" {
		return fmt.Errorf("redirect_uri: loopback strategy needs an explicit port, got %q", raw)
	}
	host := u.Hostname()
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("redirect_uri: loopback strategy needs a loopback host, got %q", host)
	}
	return nil
}

// TransportConfig selects the response handling mode of outbound calls.
type TransportConfig struct {
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *TransportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(TransportStandard, TransportOpaque)),
	)
}

// CORSConfig lists browser origins allowed to call the action API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:  "info",
			LogFormat: "console",
			HTTP:      HTTPConfig{Host: defaultHTTPHost, Port: 8080},
		},
		Feishu: FeishuConfig{
			BaseURL: defaultFeishuBaseURL,
		},
		Auth: AuthConfig{
			Strategy:    StrategyLoopback,
			RedirectURI: "http://127.0.0.1:8765/callback",
			Scope:       "drive:file:upload offline_access",
			Timeout:     3 * time.Minute,
		},
		Transport: TransportConfig{
			Mode:    TransportStandard,
			Timeout: 60 * time.Second,
		},
	}
}
