package circl

import "context"

// transport is the internal interface for one live connection to the backend.
// The current implementation is a gorilla WebSocket (socket.go).
type transport interface {
	// start launches the read loop. onFrame is called for every inbound frame
	// on the read goroutine, in transport order. onClose is called once when
	// the connection ends for any reason other than a local close.
	start(onFrame func(data []byte), onClose func(code int, err error))

	// write sends one text frame.
	write(ctx context.Context, data []byte) error

	// close sends a close frame with the given code and releases the connection.
	close(code int) error
}
