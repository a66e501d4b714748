package circl

import "github.com/gorilla/websocket"

// Option configures client behavior that does not belong in Config.
type Option func(*clientOptions)

type clientOptions struct {
	onError ErrorHandler
	dialer  *websocket.Dialer
}

func clientDefaults(cfg Config) clientOptions {
	return clientOptions{
		onError: LogErrors(cfg.Logger),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// WithErrorHandler routes SDK-level errors (parse failures, listener panics,
// failed reconnects) to fn instead of the client's logger.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *clientOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithDialer replaces the WebSocket dialer, e.g. to set a proxy or TLS config.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *clientOptions) {
		if d != nil {
			o.dialer = d
		}
	}
}
