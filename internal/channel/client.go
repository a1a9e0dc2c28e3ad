// Package channel is the participant end of the signaling message channel:
// a websocket to the signaling server carrying protocol frames.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpcall/internal/dns"
	"github.com/BioHazard786/Warpcall/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// DefaultTimeout bounds opening the channel when no timeout is given.
	DefaultTimeout = 5 * time.Second
)

var (
	// ErrChannelNotOpen is returned when sending on a channel that has not
	// opened or has already closed.
	ErrChannelNotOpen = errors.New("message channel not open")

	// ErrChannelTimeout is returned when the channel does not open in time.
	// The caller may retry.
	ErrChannelTimeout = errors.New("message channel connect timeout")
)

// Client manages the websocket connection to the signaling server.
type Client struct {
	conn     *websocket.Conn
	incoming chan *protocol.Message
	outgoing chan *protocol.Message

	// done is closed once the channel starts shutting down.
	done      chan struct{}
	closeOnce sync.Once
	open      atomic.Bool

	logger *slog.Logger
}

// Dial opens a channel to serverURL. It fails with ErrChannelTimeout when
// the handshake takes longer than timeout (DefaultTimeout if zero).
func Dial(ctx context.Context, serverURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be ws or wss", serverURL)
	}

	dialer := websocket.Dialer{
		NetDialContext:   dns.DialContext,
		HandshakeTimeout: timeout,
		ReadBufferSize:   maxMessageSize,
		WriteBufferSize:  maxMessageSize,
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		if ctx.Err() == nil && (errors.Is(dialCtx.Err(), context.DeadlineExceeded) || isTimeout(err)) {
			return nil, fmt.Errorf("%w after %s: %v", ErrChannelTimeout, timeout, err)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := newClient(conn, logger.With("server", u.Host))
	go c.readPump()
	go c.writePump()
	return c, nil
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:     conn,
		incoming: make(chan *protocol.Message, 16),
		outgoing: make(chan *protocol.Message, 16),
		done:     make(chan struct{}),
		logger:   logger,
	}
	c.open.Store(true)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return c
}

// readPump delivers decoded frames to Incoming until the connection ends.
// Frames that fail to decode are logged and skipped.
func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("signaling channel read failed", "error", err)
			}
			return
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			c.logger.Warn("ignoring frame from server", "error", err)
			continue
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued frames and periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("signaling channel write failed", "error", err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues msg for the server. It never blocks on the network.
func (c *Client) Send(msg *protocol.Message) error {
	if !c.IsOpen() {
		return ErrChannelNotOpen
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrChannelNotOpen
	}
}

// Incoming returns the frames received from the server. It is closed when
// the channel closes for any reason.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// IsOpen reports whether frames can still be sent.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// Close shuts the channel down. It is safe to call more than once.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
	})
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
