package circl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

// CredentialTokenKey is the credential store key holding the bearer token.
const CredentialTokenKey = "token"

const (
	defaultReconnectDelay   = 3 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultPongWait         = 60 * time.Second
)

// CredentialStore supplies the bearer token used to authenticate the socket.
// credstore.Store satisfies it.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// Config holds the configuration for a realtime client.
type Config struct {
	// BaseURL is the HTTP(S) API base URL. The socket URL is derived from it
	// by swapping the scheme to ws/wss.
	// Fallback: CIRCL_API_URL environment variable.
	BaseURL string

	// ReconnectDelay is the wait before a reconnect attempt after the server
	// drops the connection. Default 3s.
	// Fallback: CIRCL_RECONNECT_DELAY.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the doubling backoff. When it equals
	// ReconnectDelay (the default) every attempt waits ReconnectDelay.
	// Fallback: CIRCL_MAX_RECONNECT_DELAY.
	MaxReconnectDelay time.Duration

	// MaxReconnectAttempts bounds consecutive failed reconnects. 0 means unlimited.
	// Fallback: CIRCL_MAX_RECONNECT_ATTEMPTS.
	MaxReconnectAttempts int

	// HandshakeTimeout bounds the WebSocket handshake. Default 10s.
	// Fallback: CIRCL_HANDSHAKE_TIMEOUT.
	HandshakeTimeout time.Duration

	// WriteTimeout is the write deadline used when the caller's context has none.
	// Fallback: CIRCL_WRITE_TIMEOUT.
	WriteTimeout time.Duration

	// PingInterval is the keepalive ping period. Negative disables pings.
	// Fallback: CIRCL_PING_INTERVAL.
	PingInterval time.Duration

	// PongWait is how long the socket may stay silent before it is considered
	// dead. It only applies while pings are enabled and is raised to twice
	// PingInterval when set lower. Fallback: CIRCL_PONG_WAIT.
	PongWait time.Duration

	// Credentials is read on every connect for the "token" key. Required.
	Credentials CredentialStore

	// Logger receives connection lifecycle logs. Nil disables logging.
	Logger *zap.Logger
}

// envConfig mirrors the serializable Config fields for env parsing.
type envConfig struct {
	BaseURL              string        `env:"CIRCL_API_URL"`
	ReconnectDelay       time.Duration `env:"CIRCL_RECONNECT_DELAY"`
	MaxReconnectDelay    time.Duration `env:"CIRCL_MAX_RECONNECT_DELAY"`
	MaxReconnectAttempts int           `env:"CIRCL_MAX_RECONNECT_ATTEMPTS"`
	HandshakeTimeout     time.Duration `env:"CIRCL_HANDSHAKE_TIMEOUT"`
	WriteTimeout         time.Duration `env:"CIRCL_WRITE_TIMEOUT"`
	PingInterval         time.Duration `env:"CIRCL_PING_INTERVAL"`
	PongWait             time.Duration `env:"CIRCL_PONG_WAIT"`
}

// resolveConfig fills empty fields from environment variables, applies
// defaults and validates required fields.
func resolveConfig(cfg Config) (Config, error) {
	var fromEnv envConfig
	if err := env.Parse(&fromEnv); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fromEnv.BaseURL
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = fromEnv.ReconnectDelay
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = fromEnv.MaxReconnectDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = fromEnv.MaxReconnectAttempts
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = fromEnv.HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = fromEnv.WriteTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = fromEnv.PingInterval
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = fromEnv.PongWait
	}

	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.PingInterval > 0 && cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.BaseURL == "" {
		return cfg, fmt.Errorf("BaseURL is required (set in Config or CIRCL_API_URL env)")
	}
	if _, err := socketURL(cfg.BaseURL, ""); err != nil {
		return cfg, err
	}
	if cfg.Credentials == nil {
		return cfg, fmt.Errorf("Credentials is required")
	}

	return cfg, nil
}

// socketURL derives the realtime endpoint from the API base URL and appends
// the bearer token as the "token" query parameter.
func socketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse BaseURL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("BaseURL scheme %q not supported (want http, https, ws or wss)", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("BaseURL %q has no host", baseURL)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redactURL hides the token query parameter for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
