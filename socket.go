package circl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

type socketOptions struct {
	pingInterval time.Duration
	pongWait     time.Duration
	writeTimeout time.Duration
}

// socket implements the transport interface over a gorilla WebSocket.
type socket struct {
	conn *websocket.Conn
	opts socketOptions

	writeMu sync.Mutex // gorilla allows one concurrent writer

	done      chan struct{}
	closeOnce sync.Once
}

func dialSocket(ctx context.Context, dialer *websocket.Dialer, rawURL string, opts socketOptions) (*socket, error) {
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return &socket{
		conn: conn,
		opts: opts,
		done: make(chan struct{}),
	}, nil
}

func (s *socket) start(onFrame func(data []byte), onClose func(code int, err error)) {
	go s.readLoop(onFrame, onClose)
	if s.opts.pingInterval > 0 {
		go s.pingLoop()
	}
}

// keepalive reports whether the read deadline is armed. Without pings a quiet
// peer is indistinguishable from a dead one, so no deadline is set.
func (s *socket) keepalive() bool {
	return s.opts.pingInterval > 0 && s.opts.pongWait > 0
}

func (s *socket) readLoop(onFrame func(data []byte), onClose func(code int, err error)) {
	if s.keepalive() {
		s.conn.SetReadDeadline(time.Now().Add(s.opts.pongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.opts.pongWait))
		})
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return // closed locally
			default:
			}
			s.release()
			onClose(closeCode(err), err)
			return
		}
		if s.keepalive() {
			s.conn.SetReadDeadline(time.Now().Add(s.opts.pongWait))
		}
		onFrame(data)
	}
}

func (s *socket) pingLoop() {
	ticker := time.NewTicker(s.opts.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.opts.writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *socket) write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.opts.writeTimeout)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *socket) close(code int) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(code, "")
		s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		err = s.conn.Close()
	})
	return err
}

// release tears the connection down after the peer or the network ended it.
func (s *socket) release() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// closeCode extracts the WebSocket close code from a read error. Errors without
// a close frame count as abnormal closure (1006).
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
