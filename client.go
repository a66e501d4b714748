package circl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Status is the connection state of a Client.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Client is the realtime connection to the Circl backend.
type Client struct {
	cfg      Config
	dialer   *websocket.Dialer
	registry *listenerRegistry
	onError  ErrorHandler
	log      *zap.Logger

	mu     sync.Mutex
	status Status
	conn   transport
	closed bool

	// manual is set by Disconnect and cleared by Connect; while set no
	// automatic reconnect is scheduled.
	manual bool
	// gen changes on every Disconnect so an in-flight connect can tell it
	// was overtaken. A Connect issued while an overtaken dial is still in
	// flight dials alongside it; the overtaken socket is closed as soon as
	// its dial returns and is never installed, so at most one socket is
	// ever live for dispatch.
	gen uint64

	policy         *reconnectPolicy
	reconnectTimer *time.Timer
	timerSeq       uint64

	disconnectFn func(error)
	reconnectFn  func()
}

// NewClient creates a realtime client. It does not dial; call Connect.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	o := clientDefaults(resolved)
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		cfg:      resolved,
		dialer:   o.dialer,
		registry: newListenerRegistry(),
		onError:  o.onError,
		log:      resolved.Logger,
		policy:   newReconnectPolicy(resolved.ReconnectDelay, resolved.MaxReconnectDelay, resolved.MaxReconnectAttempts),
	}, nil
}

// Connect reads the session token, opens the socket and starts dispatching
// inbound frames. It returns ErrAlreadyConnected while a socket is open or
// being opened, ErrNoCredential when no token is stored, and a
// *ConnectionError when the dial fails. A failed Connect schedules no retry.
func (c *Client) Connect(ctx context.Context) error {
	return c.connect(ctx, false)
}

func (c *Client) connect(ctx context.Context, reconnecting bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	if reconnecting && c.manual {
		c.mu.Unlock()
		return ErrConnectAborted
	}
	c.manual = false
	c.status = StatusConnecting
	gen := c.gen
	c.mu.Unlock()

	token, err := c.cfg.Credentials.Get(ctx, CredentialTokenKey)
	if err != nil || token == "" {
		c.abortConnect(gen)
		c.log.Warn("realtime connect aborted: no credential", zap.Error(err))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoCredential, err)
		}
		return ErrNoCredential
	}

	rawURL, err := socketURL(c.cfg.BaseURL, token)
	if err != nil {
		c.abortConnect(gen)
		return err
	}

	c.log.Debug("realtime connecting", zap.String("url", redactURL(rawURL)), zap.Bool("reconnect", reconnecting))

	sock, err := dialSocket(ctx, c.dialer, rawURL, socketOptions{
		pingInterval: c.cfg.PingInterval,
		pongWait:     c.cfg.PongWait,
		writeTimeout: c.cfg.WriteTimeout,
	})
	if err != nil {
		c.abortConnect(gen)
		c.log.Warn("realtime connect failed", zap.String("url", redactURL(rawURL)), zap.Error(err))
		return &ConnectionError{URL: redactURL(rawURL), Reason: err.Error()}
	}

	c.mu.Lock()
	if c.closed || c.gen != gen {
		closed := c.closed
		c.mu.Unlock()
		sock.close(websocket.CloseNormalClosure)
		if closed {
			return ErrClientClosed
		}
		return ErrConnectAborted
	}
	c.conn = sock
	c.status = StatusConnected
	c.cancelReconnectLocked()
	c.policy.reset()
	var onReconnect func()
	if reconnecting {
		onReconnect = c.reconnectFn
	}
	c.mu.Unlock()

	sock.start(c.handleFrame, func(code int, err error) {
		c.handleClose(sock, code, err)
	})

	c.log.Info("realtime connected", zap.String("url", redactURL(rawURL)))
	if onReconnect != nil {
		onReconnect()
	}
	return nil
}

// abortConnect returns a connecting client to disconnected unless a
// Disconnect already did.
func (c *Client) abortConnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.status == StatusConnecting {
		c.status = StatusDisconnected
	}
}

// handleClose runs on the read goroutine when the server or network ends sock.
func (c *Client) handleClose(sock transport, code int, err error) {
	c.mu.Lock()
	if c.conn != sock {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.status = StatusDisconnected

	var scheduleErr error
	willRetry := false
	if code != websocket.CloseNormalClosure && !c.manual && !c.closed {
		willRetry, scheduleErr = c.scheduleReconnectLocked()
	}
	onDisconnect := c.disconnectFn
	c.mu.Unlock()

	c.log.Info("realtime disconnected", zap.Int("code", code), zap.Bool("reconnect", willRetry), zap.Error(err))
	if scheduleErr != nil {
		c.reportError(SDKError{Kind: ErrReconnectExhausted, Cause: scheduleErr, Timestamp: time.Now()})
	}
	if onDisconnect != nil {
		onDisconnect(err)
	}
}

// scheduleReconnectLocked arms the reconnect timer unless one is already
// pending. It returns an error when the attempt budget is spent.
func (c *Client) scheduleReconnectLocked() (bool, error) {
	if c.reconnectTimer != nil {
		return true, nil
	}
	delay, ok := c.policy.next()
	if !ok {
		return false, fmt.Errorf("gave up after %d reconnect attempts", c.policy.maxAttempts)
	}

	c.timerSeq++
	seq := c.timerSeq
	c.reconnectTimer = time.AfterFunc(delay, func() { c.reconnect(seq) })
	c.log.Debug("realtime reconnect scheduled", zap.Duration("delay", delay))
	return true, nil
}

// cancelReconnectLocked stops the pending timer. Bumping timerSeq also
// neutralizes a timer that already fired and is waiting for the lock.
func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.timerSeq++
}

func (c *Client) reconnect(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	if c.closed || c.manual || c.status != StatusDisconnected {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.log.Info("realtime reconnecting")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	defer cancel()

	err := c.connect(ctx, true)
	if err == nil {
		return
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		// No credential, closed, or overtaken by Disconnect/Connect: the
		// close-triggered path owns any further retry.
		c.log.Debug("realtime reconnect stopped", zap.Error(err))
		return
	}

	c.reportError(SDKError{Kind: ErrReconnectFailed, Cause: err, Timestamp: time.Now()})

	c.mu.Lock()
	var scheduleErr error
	if !c.closed && !c.manual && c.status == StatusDisconnected {
		_, scheduleErr = c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	if scheduleErr != nil {
		c.reportError(SDKError{Kind: ErrReconnectExhausted, Cause: scheduleErr, Timestamp: time.Now()})
	}
}

// Disconnect closes the socket with a normal-closure code and cancels any
// pending reconnect. No automatic reconnect happens until the next Connect.
// It is safe to call repeatedly.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.manual = true
	c.gen++
	c.cancelReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.status = StatusDisconnected
	onDisconnect := c.disconnectFn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.close(websocket.CloseNormalClosure)
	c.log.Info("realtime disconnected", zap.Int("code", websocket.CloseNormalClosure))
	if onDisconnect != nil {
		onDisconnect(nil)
	}
	return err
}

// Close disconnects and tears the client down: all listeners are removed and
// later Connect calls return ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Disconnect()
	c.registry.clear()
	return err
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsConnected reports whether frames can be sent right now.
func (c *Client) IsConnected() bool {
	return c.Status() == StatusConnected
}

// OnDisconnect registers a callback invoked when the connection drops or is
// closed with Disconnect (err is nil then).
func (c *Client) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectFn = fn
}

// OnReconnect registers a callback invoked when an automatic reconnect succeeds.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectFn = fn
}

// OnMessage registers fn for every inbound frame.
func (c *Client) OnMessage(fn func(Message)) Subscription {
	return subscribe(c.registry, kindMessage, &c.registry.messages, fn)
}

// OnTypingUpdate registers fn for "typing_update" frames.
func (c *Client) OnTypingUpdate(fn func(TypingUpdate)) Subscription {
	return subscribe(c.registry, kindTyping, &c.registry.typing, fn)
}

// OnNewMessage registers fn for "new_message" frames.
func (c *Client) OnNewMessage(fn func(NewMessage)) Subscription {
	return subscribe(c.registry, kindNewMessage, &c.registry.newMessages, fn)
}

// OnConversationUpdate registers fn for "conversation_update" frames.
func (c *Client) OnConversationUpdate(fn func(ConversationUpdate)) Subscription {
	return subscribe(c.registry, kindConversationUpdate, &c.registry.conversationUpdates, fn)
}

// Unsubscribe removes the registration with the given id.
func (c *Client) Unsubscribe(id uuid.UUID) bool {
	return c.registry.remove(id)
}

// handleFrame is called by the transport for each inbound frame.
func (c *Client) handleFrame(data []byte) {
	msg, err := parseMessage(data)
	if err != nil {
		c.reportError(SDKError{
			Kind:      ErrParseFailure,
			Raw:       data,
			Cause:     err,
			Timestamp: time.Now(),
		})
		return
	}

	fanOut(c, msg.Type, snapshot(c.registry, &c.registry.messages), *msg)

	switch msg.Type {
	case TypeTypingUpdate:
		fanOut(c, msg.Type, snapshot(c.registry, &c.registry.typing), msg.typingUpdate())
	case TypeNewMessage:
		fanOut(c, msg.Type, snapshot(c.registry, &c.registry.newMessages), msg.newMessage())
	case TypeConversationUpdate:
		fanOut(c, msg.Type, snapshot(c.registry, &c.registry.conversationUpdates), msg.conversationUpdate())
	}
}

// fanOut calls every listener in order. A panicking listener is reported and
// does not stop the others.
func fanOut[T any](c *Client, msgType string, listeners []func(T), v T) {
	for _, fn := range listeners {
		c.invoke(msgType, func() { fn(v) })
	}
}

func (c *Client) invoke(msgType string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.reportError(SDKError{
				Kind:      ErrListenerPanic,
				Type:      msgType,
				Cause:     fmt.Errorf("listener panic: %v", r),
				Timestamp: time.Now(),
			})
		}
	}()
	fn()
}

func (c *Client) reportError(e SDKError) {
	if c.onError != nil {
		c.onError(e)
	}
}

// Send marshals record to JSON and writes it as one frame. When the client is
// not connected the frame is dropped, a warning is logged and ErrNotConnected
// is returned; nothing is queued for later delivery.
func (c *Client) Send(ctx context.Context, record any) error {
	c.mu.Lock()
	conn := c.conn
	status := c.status
	c.mu.Unlock()

	if conn == nil || status != StatusConnected {
		c.log.Warn("realtime send dropped: not connected", zap.Stringer("status", status))
		return ErrNotConnected
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if err := conn.write(ctx, data); err != nil {
		c.reportError(SDKError{Kind: ErrTransportWrite, Cause: err, Timestamp: time.Now()})
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// JoinConversation asks the server to start routing a conversation's events.
func (c *Client) JoinConversation(ctx context.Context, conversationID string) error {
	return c.Send(ctx, conversationFrame{Type: TypeJoinConversation, ConversationID: conversationID})
}

// LeaveConversation stops a conversation's events.
func (c *Client) LeaveConversation(ctx context.Context, conversationID string) error {
	return c.Send(ctx, conversationFrame{Type: TypeLeaveConversation, ConversationID: conversationID})
}

// StartTyping announces that the current user is typing.
func (c *Client) StartTyping(ctx context.Context, conversationID string) error {
	return c.Send(ctx, conversationFrame{Type: TypeTypingStart, ConversationID: conversationID})
}

// StopTyping announces that the current user stopped typing.
func (c *Client) StopTyping(ctx context.Context, conversationID string) error {
	return c.Send(ctx, conversationFrame{Type: TypeTypingStop, ConversationID: conversationID})
}
