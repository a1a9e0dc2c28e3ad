package signaling

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for SDP with embedded candidates

	// sendQueueSize bounds the outbound frames buffered for one client.
	sendQueueSize = 256
)

// Client is the server end of one participant's message channel.
type Client struct {
	// ID is the participant identity assigned on connect.
	ID Participant

	hub  *Hub
	conn *websocket.Conn

	// send is a buffered channel of outbound frames. Only the hub writes to
	// and closes it; WritePump drains it to the websocket.
	send chan *protocol.Message

	logger *slog.Logger
}

// NewClient wraps an upgraded connection and assigns it a fresh participant id.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := Participant(uuid.NewString())
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan *protocol.Message, sendQueueSize),
		logger: hub.logger.With("participant", id),
	}
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// Leaving the loop means the channel closed or failed; either way the
	// participant is gone.
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", "error", err)
			}
			return
		}

		// Malformed frames still go through the hub so that the reply is
		// queued behind anything already pending for this client.
		msg, err := protocol.Decode(raw)
		c.hub.dispatch(envelope{client: c, msg: msg, err: err})
	}
}

// WritePump pumps frames from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
