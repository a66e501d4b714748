package circl

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClientDefaults(t *testing.T) {
	opts := clientDefaults(Config{HandshakeTimeout: 7 * time.Second})
	if opts.onError == nil {
		t.Error("default error handler should log, not be nil")
	}
	if opts.dialer == nil {
		t.Fatal("default dialer should be set")
	}
	if opts.dialer.HandshakeTimeout != 7*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 7s", opts.dialer.HandshakeTimeout)
	}
}

func TestWithErrorHandler(t *testing.T) {
	opts := clientDefaults(Config{})
	var called bool
	WithErrorHandler(func(SDKError) { called = true })(&opts)
	opts.onError(SDKError{})
	if !called {
		t.Error("WithErrorHandler should replace the error handler")
	}
}

func TestWithErrorHandler_NilIgnored(t *testing.T) {
	opts := clientDefaults(Config{})
	WithErrorHandler(nil)(&opts)
	if opts.onError == nil {
		t.Error("WithErrorHandler(nil) should keep the default handler")
	}
}

func TestWithDialer(t *testing.T) {
	opts := clientDefaults(Config{})
	d := &websocket.Dialer{EnableCompression: true}
	WithDialer(d)(&opts)
	if opts.dialer != d {
		t.Error("WithDialer should replace the dialer")
	}
	WithDialer(nil)(&opts)
	if opts.dialer != d {
		t.Error("WithDialer(nil) should be ignored")
	}
}
