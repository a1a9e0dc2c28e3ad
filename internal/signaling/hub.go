package signaling

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// envelope carries one inbound frame (or the reason it could not be
// decoded) together with the client it arrived on.
type envelope struct {
	client *Client
	msg    *protocol.Message
	err    error
}

// Hub is the signaling router. A single goroutine (Run) owns the room
// registry and the set of connected clients, so every frame is handled to
// completion before the next one and no state is shared between goroutines.
type Hub struct {
	registry *Registry

	// clients maps participant ids to their live connection.
	clients map[Participant]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan envelope

	// done is closed when Run returns.
	done chan struct{}

	logger *slog.Logger
}

// NewHub creates a router around registry. A nil logger uses slog.Default.
func NewHub(registry *Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:   registry,
		clients:    make(map[Participant]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan envelope),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Register hands a new connection to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister tells the hub that a connection closed or failed.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(e envelope) {
	select {
	case h.inbound <- e:
	case <-h.done:
	}
}

// Run processes registrations, departures and frames until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for _, c := range h.clients {
			close(c.send)
		}
		h.clients = make(map[Participant]*Client)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c.ID] = c
			c.logger.Info("participant connected")
			h.deliver(c, &protocol.Message{
				Type:     protocol.TypeConnectionEstablished,
				ClientID: string(c.ID),
			})

		case c := <-h.unregister:
			if _, ok := h.clients[c.ID]; ok {
				c.logger.Info("participant disconnected")
				h.drop(c)
			}

		case e := <-h.inbound:
			if _, ok := h.clients[e.client.ID]; !ok {
				continue
			}
			if e.err != nil {
				e.client.logger.Warn("malformed frame", "error", e.err)
				h.deliver(e.client, protocol.NewError(e.err))
				continue
			}
			h.route(e.client, e.msg)
		}
	}
}

// route decides where one well-formed frame goes.
func (h *Hub) route(c *Client, msg *protocol.Message) {
	c.logger.Debug("frame received", "type", msg.Type, "room", msg.Room)

	switch {
	case !msg.Type.ClientOriginated():
		err := fmt.Errorf("%w: %s frames are server-only", protocol.ErrMalformedMessage, msg.Type)
		c.logger.Warn("rejected frame", "error", err)
		h.deliver(c, protocol.NewError(err))

	case msg.Type == protocol.TypeCreate:
		h.createRoom(c, msg.Room)

	case msg.Type == protocol.TypeJoin:
		h.joinRoom(c, msg.Room)

	case msg.Type.Relayed():
		h.relay(c, msg)

	default:
		c.logger.Warn("ignoring frame", "type", msg.Type)
	}
}

func (h *Hub) createRoom(c *Client, roomID string) {
	if err := h.registry.CreateRoom(c.ID, roomID); err != nil {
		c.logger.Info("room create failed", "room", roomID, "error", err)
		h.deliver(c, protocol.NewError(err))
		return
	}

	c.logger.Info("room created", "room", roomID, "rooms", h.registry.Count())
	h.deliver(c, &protocol.Message{Type: protocol.TypeRoomCreated, Room: roomID})
}

func (h *Hub) joinRoom(c *Client, roomID string) {
	room, err := h.registry.JoinRoom(c.ID, roomID)
	if err != nil {
		c.logger.Info("room join failed", "room", roomID, "error", err)
		h.deliver(c, protocol.NewError(err))
		return
	}

	c.logger.Info("room joined", "room", roomID)
	h.deliver(c, &protocol.Message{Type: protocol.TypeJoined, Room: roomID})

	if host, ok := h.clients[room.Host]; ok {
		h.deliver(host, &protocol.Message{Type: protocol.TypeGuestJoined, Room: roomID})
	}
}

// relay forwards a negotiation frame to the other member of its room.
// Frames that cannot be routed are dropped; the sender stays connected.
func (h *Hub) relay(c *Client, msg *protocol.Message) {
	room, ok := h.registry.Lookup(msg.Room)
	if !ok {
		c.logger.Warn("routing failed: room not found", "type", msg.Type, "room", msg.Room)
		return
	}

	counterpart, ok := room.Counterpart(c.ID)
	if !ok {
		c.logger.Warn("routing failed: sender is not a member", "type", msg.Type, "room", msg.Room)
		return
	}
	target, ok := h.clients[counterpart]
	if counterpart == "" || !ok {
		c.logger.Debug("routing skipped: no counterpart yet", "type", msg.Type, "room", msg.Room)
		return
	}

	forwarded := *msg
	forwarded.From = string(c.ID)
	h.deliver(target, &forwarded)
}

// deliver queues msg for c without blocking the router. A client that
// cannot keep up is disconnected.
func (h *Hub) deliver(c *Client, msg *protocol.Message) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send queue full, dropping participant", "type", msg.Type)
		h.drop(c)
	}
}

// drop forgets c, closes its outbound queue and tears down its room,
// telling the remaining member who left.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)

	dep, ok := h.registry.RemoveParticipant(c.ID)
	if !ok {
		return
	}
	h.logger.Info("room closed", "room", dep.Room, "left", dep.Role, "rooms", h.registry.Count())

	other, ok := h.clients[dep.Counterpart]
	if dep.Counterpart == "" || !ok {
		return
	}

	notice := protocol.TypeGuestLeft
	if dep.Role == RoleHost {
		notice = protocol.TypeHostLeft
	}
	h.deliver(other, &protocol.Message{Type: notice, Room: dep.Room})
}
