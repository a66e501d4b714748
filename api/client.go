// Package api is a typed client for the Circl REST endpoints used alongside
// the realtime connection: the authenticated user and the follow graph.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// ErrUnauthenticated is returned when no bearer token is stored.
var ErrUnauthenticated = errors.New("no authentication token stored")

// TokenSource supplies the bearer token. credstore.Store satisfies it.
type TokenSource interface {
	Get(ctx context.Context, key string) (string, error)
}

// Config holds the REST client configuration.
type Config struct {
	// BaseURL of the API. Fallback: CIRCL_API_URL.
	BaseURL string
	// ImageToken is appended to private image URLs by SecureImageURL.
	// Fallback: CIRCL_IMAGE_TOKEN.
	ImageToken string
	// Timeout for each request. Default 15s. Fallback: CIRCL_API_TIMEOUT.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

type envConfig struct {
	BaseURL    string        `env:"CIRCL_API_URL"`
	ImageToken string        `env:"CIRCL_IMAGE_TOKEN"`
	Timeout    time.Duration `env:"CIRCL_API_TIMEOUT"`
}

// Client calls the REST API with the stored bearer token.
type Client struct {
	baseURL    string
	imageToken string
	tokens     TokenSource
	http       *http.Client
	log        *zap.Logger
}

// New creates a client. Empty Config fields are read from the environment.
func New(cfg Config, tokens TokenSource) (*Client, error) {
	var fromEnv envConfig
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fromEnv.BaseURL
	}
	if cfg.ImageToken == "" {
		cfg.ImageToken = fromEnv.ImageToken
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = fromEnv.Timeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required (set in Config or CIRCL_API_URL env)")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("BaseURL %q must be an absolute http(s) URL", cfg.BaseURL)
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		imageToken: cfg.ImageToken,
		tokens:     tokens,
		http:       cfg.HTTPClient,
		log:        cfg.Logger,
	}, nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) token(ctx context.Context) (string, error) {
	tok, err := c.tokens.Get(ctx, "token")
	if err != nil || tok == "" {
		return "", ErrUnauthenticated
	}
	return tok, nil
}

// do sends an authenticated request and decodes the envelope. body, when
// non-nil, is sent as JSON.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*envelope, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	return decodeEnvelope(resp)
}
