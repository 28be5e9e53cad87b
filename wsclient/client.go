// Package wsclient owns the persistent duplex connection to the kernel
// gateway: typed send/receive over one websocket, subscription dispatch, and
// reconnect with exponential backoff.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DannyMang/more-compute-sub000/schema"
	"pkt.systems/pslog"
)

// Handler receives one inbound message. Handlers for a type run in
// registration order on the read goroutine, so inbound messages are applied
// in transport order.
type Handler func(msg schema.Message)

// StateHandler receives connection state transitions.
type StateHandler func(event schema.ConnEvent)

// Config controls the client's endpoint and retry policy.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	MaxAttempts      int
	Logger           pslog.Logger
}

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultInitialBackoff   = time.Second
	defaultMaxBackoff       = 30 * time.Second
	defaultMaxAttempts      = 5
)

// Client is the connection manager. It is the sole writer on the socket; all
// other components enqueue through Send.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	log    pslog.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	state         schema.ConnState
	gen           int
	closed        bool
	handlers      map[schema.MessageType][]Handler
	stateHandlers []StateHandler
}

// New constructs a client. Connect must be called before Send.
func New(cfg Config) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log:      logger.With("gateway", cfg.URL),
		state:    schema.ConnStateClosed,
		handlers: make(map[schema.MessageType][]Handler),
	}
}

// Subscribe registers a handler for an inbound message type. Multiple
// handlers per type are supported and evaluated in registration order.
func (c *Client) Subscribe(msgType schema.MessageType, handler func(msg schema.Message)) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.handlers[msgType] = append(c.handlers[msgType], handler)
	c.mu.Unlock()
}

// SubscribeState registers a handler for connection state transitions.
func (c *Client) SubscribeState(handler func(event schema.ConnEvent)) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.stateHandlers = append(c.stateHandlers, handler)
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() schema.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the gateway and resolves once the websocket handshake
// completes. It also serves as the manual reconnect after the retry budget is
// exhausted.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("client closed")
	}
	if c.state == schema.ConnStateOpen {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(schema.ConnStateConnecting, 0, nil)
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.log.Warn("gateway dial failed", "err", err)
		c.setState(schema.ConnStateClosed, 0, err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.New("client closed")
	}
	c.conn = conn
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.setState(schema.ConnStateOpen, 0, nil)
	c.log.Info("gateway connected")
	go c.readLoop(conn, gen)
	return nil
}

// Send marshals and writes one message. It fails with ErrNotConnected (and a
// logged diagnostic) when the connection is not open; nothing is silently
// dropped.
func (c *Client) Send(ctx context.Context, msgType schema.MessageType, payload any) error {
	msg, err := schema.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != schema.ConnStateOpen || c.conn == nil {
		c.log.Warn("send rejected", "type", msgType, "state", c.state)
		return schema.ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warn("send failed", "type", msgType, "err", err)
		return err
	}
	c.log.Trace("sent", "type", msgType, "bytes", len(data))
	return nil
}

// Close performs a clean shutdown. No reconnect is attempted afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"),
			time.Now().Add(time.Second))
		err = conn.Close()
	}
	c.setState(schema.ConnStateDisconnected, 0, nil)
	c.log.Info("gateway connection closed")
	return err
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.closed || gen != c.gen
			c.mu.Unlock()
			if stale {
				return
			}
			c.log.Warn("gateway read failed", "err", err)
			c.reconnect()
			return
		}
		var msg schema.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// Protocol error: log and drop, session continues.
			c.log.Warn("malformed message dropped", "err", err, "bytes", len(data))
			continue
		}
		if msg.Type == "" {
			c.log.Warn("message without type dropped", "bytes", len(data))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg schema.Message) {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[msg.Type]...)
	c.mu.Unlock()
	if len(handlers) == 0 {
		c.log.Debug("unhandled message dropped", "type", msg.Type)
		return
	}
	c.log.Trace("received", "type", msg.Type, "handlers", len(handlers))
	for _, handler := range handlers {
		handler(msg)
	}
}

// reconnect runs the backoff loop after an unexpected close. It gives up
// after MaxAttempts and leaves the client in the terminal Disconnected state;
// Connect must be called to recover.
func (c *Client) reconnect() {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.setState(schema.ConnStateClosed, attempt-1, nil)
		delay := nextBackoff(attempt, c.cfg.InitialBackoff, c.cfg.MaxBackoff)
		c.log.Info("gateway reconnect scheduled", "attempt", attempt, "delay_ms", delay.Milliseconds())
		time.Sleep(delay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.setState(schema.ConnStateConnecting, attempt, nil)
		conn, _, err := c.dialer.Dial(c.cfg.URL, nil)
		if err != nil {
			c.log.Warn("gateway reconnect failed", "attempt", attempt, "err", err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.gen++
		gen := c.gen
		c.mu.Unlock()

		c.setState(schema.ConnStateOpen, attempt, nil)
		c.log.Info("gateway reconnected", "attempt", attempt)
		c.readLoop(conn, gen)
		return
	}
	c.log.Error("gateway reconnect exhausted", "attempts", c.cfg.MaxAttempts)
	c.setState(schema.ConnStateDisconnected, c.cfg.MaxAttempts, nil)
}

func (c *Client) setState(state schema.ConnState, attempt int, cause error) {
	c.mu.Lock()
	c.state = state
	handlers := append([]StateHandler(nil), c.stateHandlers...)
	c.mu.Unlock()

	event := schema.ConnEvent{State: state, Attempt: attempt}
	if cause != nil {
		event.Err = cause.Error()
	}
	for _, handler := range handlers {
		handler(event)
	}
}
