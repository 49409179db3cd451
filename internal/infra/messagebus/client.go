package messagebus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"homeassistant-skill/internal/application"
	"homeassistant-skill/internal/domain"
	"homeassistant-skill/internal/infra"
)

var ErrNotConnected = errors.New("messagebus not connected")

const (
	readLimit          = 8 << 20
	defaultDialTimeout = 10 * time.Second
)

// Client is a websocket client for the host messagebus. It reconnects until
// its context is cancelled and replays OnConnect callbacks every time.
type Client struct {
	url         string
	source      string
	retry       infra.RetryConfig
	dialTimeout time.Duration
	logger      *slog.Logger
	queue       chan domain.Message

	mu        sync.RWMutex
	conn      *websocket.Conn
	handlers  map[string][]application.MessageHandler
	waiters   map[string][]chan domain.Message
	onConnect []func(context.Context)
	connected atomic.Bool
}

func NewClient(url, source string, retry infra.RetryConfig, logger *slog.Logger) *Client {
	c := &Client{
		url:         url,
		source:      source,
		retry:       retry,
		dialTimeout: defaultDialTimeout,
		logger:      logger.With("component", "messagebus"),
		queue:       make(chan domain.Message, 256),
		handlers:    make(map[string][]application.MessageHandler),
		waiters:     make(map[string][]chan domain.Message),
	}
	c.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("messagebus connect failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}
	return c
}

func (c *Client) On(msgType string, handler application.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = append(c.handlers[msgType], handler)
}

// Remove drops every handler registered for msgType.
func (c *Client) Remove(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, msgType)
}

func (c *Client) OnConnect(fn func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) Emit(ctx context.Context, msg domain.Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	// msg.Context belongs to the caller; add the source on a copy.
	if _, ok := msg.Context["source"]; !ok && c.source != "" {
		msgCtx := make(map[string]any, len(msg.Context)+1)
		maps.Copy(msgCtx, msg.Context)
		msgCtx["source"] = c.source
		msg.Context = msgCtx
	}

	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", msg.Type, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing %s: %w", msg.Type, err)
	}
	return nil
}

// WaitForResponse emits msg and blocks until a message of replyType arrives
// or ctx is done.
func (c *Client) WaitForResponse(ctx context.Context, msg domain.Message, replyType string) (domain.Message, error) {
	ch := make(chan domain.Message, 1)

	c.mu.Lock()
	c.waiters[replyType] = append(c.waiters[replyType], ch)
	c.mu.Unlock()
	defer c.removeWaiter(replyType, ch)

	if err := c.Emit(ctx, msg); err != nil {
		return domain.Message{}, err
	}

	select {
	case <-ctx.Done():
		return domain.Message{}, fmt.Errorf("waiting for %s: %w", replyType, ctx.Err())
	case reply := <-ch:
		return reply, nil
	}
}

func (c *Client) Run(ctx context.Context) error {
	go c.dispatch(ctx)

	for {
		var conn *websocket.Conn
		err := infra.WithRetry(ctx, c.retry, func() error {
			var dialErr error
			conn, dialErr = c.dial(ctx)
			return dialErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		c.setConn(conn)
		c.logger.Info("connected to messagebus", "url", c.url)
		go c.fireOnConnect(ctx)

		err = c.serve(ctx, conn)
		c.setConn(nil)
		conn.CloseNow()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("messagebus connection lost, reconnecting", "error", err)
	}
}

// Close closes the current connection; Run will reconnect unless its
// context is done.
func (c *Client) Close() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "shutting down")
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial messagebus: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(conn != nil)
}

// serve reads until the connection drops. Reply waiters are resolved here so
// a handler running on the dispatcher can itself wait for a reply.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("reading: %w", err)
		}

		msg, err := domain.UnmarshalMessage(data)
		if err != nil {
			c.logger.Debug("skipping undecodable message", "error", err)
			continue
		}

		c.resolveWaiters(msg)

		if !c.hasHandlers(msg.Type) {
			continue
		}
		select {
		case c.queue <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.queue:
			c.mu.RLock()
			handlers := append([]application.MessageHandler(nil), c.handlers[msg.Type]...)
			c.mu.RUnlock()
			for _, h := range handlers {
				c.invoke(h, msg)
			}
		}
	}
}

func (c *Client) invoke(h application.MessageHandler, msg domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked", "type", msg.Type, "panic", r)
		}
	}()
	h(msg)
}

func (c *Client) hasHandlers(msgType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers[msgType]) > 0
}

func (c *Client) resolveWaiters(msg domain.Message) {
	c.mu.Lock()
	waiters := c.waiters[msg.Type]
	delete(c.waiters, msg.Type)
	c.mu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (c *Client) removeWaiter(replyType string, ch chan domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.waiters[replyType]
	for i, w := range waiters {
		if w == ch {
			c.waiters[replyType] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(c.waiters[replyType]) == 0 {
		delete(c.waiters, replyType)
	}
}

func (c *Client) fireOnConnect(ctx context.Context) {
	c.mu.RLock()
	callbacks := append([]func(context.Context){}, c.onConnect...)
	c.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ctx)
	}
}
