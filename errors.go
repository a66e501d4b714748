package circl

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sentinel errors for client state.
var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrClientClosed     = errors.New("client is closed")
	ErrNoCredential     = errors.New("no credential available")
	ErrConnectAborted   = errors.New("connect aborted by disconnect")
)

// ConnectionError represents a failure to open the realtime socket.
type ConnectionError struct {
	URL    string
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error [%s]: %s", e.URL, e.Reason)
}

// ErrorKind classifies SDK-level errors that cannot be returned to a caller.
type ErrorKind int

const (
	ErrParseFailure       ErrorKind = iota // inbound frame couldn't be parsed
	ErrListenerPanic                       // listener panicked during dispatch
	ErrTransportWrite                      // failed to write to connection
	ErrReconnectFailed                     // a scheduled reconnect attempt failed
	ErrReconnectExhausted                  // MaxReconnectAttempts reached, reconnection stopped
)

var errorKindNames = [...]string{
	ErrParseFailure:       "ErrParseFailure",
	ErrListenerPanic:      "ErrListenerPanic",
	ErrTransportWrite:     "ErrTransportWrite",
	ErrReconnectFailed:    "ErrReconnectFailed",
	ErrReconnectExhausted: "ErrReconnectExhausted",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// SDKError represents an error that the SDK could not deliver to a direct caller.
// These errors are routed to the ErrorHandler set with WithErrorHandler.
type SDKError struct {
	Kind      ErrorKind
	Type      string // frame type, if known
	Cause     error
	Raw       []byte // raw frame (for parse failures)
	Timestamp time.Time
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v (type=%s)", e.Kind, e.Cause, e.Type)
	}
	return fmt.Sprintf("%s (type=%s)", e.Kind, e.Type)
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ErrorHandler is called for every SDK-level error that cannot be returned
// to a direct caller.
type ErrorHandler func(SDKError)

// LogErrors returns an ErrorHandler that logs all SDK errors to the given logger.
func LogErrors(logger *zap.Logger) ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(e SDKError) {
		fields := []zap.Field{
			zap.Stringer("kind", e.Kind),
			zap.String("type", e.Type),
		}
		if e.Cause != nil {
			fields = append(fields, zap.Error(e.Cause))
		}
		if len(e.Raw) > 0 {
			fields = append(fields, zap.ByteString("raw", e.Raw))
		}
		logger.Warn("realtime error", fields...)
	}
}
