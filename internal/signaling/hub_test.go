package signaling

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return newLoggedHub(t, io.Discard)
}

func newLoggedHub(t *testing.T, w io.Writer) *Hub {
	t.Helper()

	hub := NewHub(NewRegistry(), slog.New(slog.NewTextHandler(w, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

// connect registers a client without a websocket and consumes its
// connection-established frame.
func connect(t *testing.T, hub *Hub, id Participant) *Client {
	t.Helper()

	c := &Client{
		ID:     id,
		hub:    hub,
		send:   make(chan *protocol.Message, sendQueueSize),
		logger: hub.logger,
	}
	hub.Register(c)

	msg := receive(t, c)
	require.Equal(t, protocol.TypeConnectionEstablished, msg.Type)
	require.Equal(t, string(id), msg.ClientID)
	return c
}

func send(hub *Hub, c *Client, msg *protocol.Message) {
	hub.dispatch(envelope{client: c, msg: msg})
}

func receive(t *testing.T, c *Client) *protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send queue of %s closed", c.ID)
		return msg
	case <-time.After(time.Second):
		t.Fatalf("%s received nothing", c.ID)
	}
	return nil
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("%s unexpectedly received %+v", c.ID, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func offer(room string) *protocol.Message {
	return protocol.NewDescription(room, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"})
}

func TestHubCreateAndJoin(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")
	guest := connect(t, hub, "guest")

	send(hub, host, protocol.NewCreate("abc123"))
	msg := receive(t, host)
	assert.Equal(t, protocol.TypeRoomCreated, msg.Type)
	assert.Equal(t, "abc123", msg.Room)

	send(hub, guest, protocol.NewJoin("abc123"))
	msg = receive(t, guest)
	assert.Equal(t, protocol.TypeJoined, msg.Type)
	assert.Equal(t, "abc123", msg.Room)

	msg = receive(t, host)
	assert.Equal(t, protocol.TypeGuestJoined, msg.Type)
	assert.Equal(t, "abc123", msg.Room)
}

func TestHubRoomErrorsGoToSenderOnly(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")
	guest := connect(t, hub, "guest")
	third := connect(t, hub, "third")

	send(hub, guest, protocol.NewJoin("zzz999"))
	msg := receive(t, guest)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, protocol.CodeRoomNotFound, msg.Code)
	assert.Equal(t, "Room not found", msg.Reason)

	send(hub, host, protocol.NewCreate("abc123"))
	receive(t, host)
	send(hub, third, protocol.NewCreate("abc123"))
	msg = receive(t, third)
	assert.Equal(t, protocol.CodeRoomExists, msg.Code)

	send(hub, guest, protocol.NewJoin("abc123"))
	receive(t, guest)
	receive(t, host)

	send(hub, third, protocol.NewJoin("abc123"))
	msg = receive(t, third)
	assert.Equal(t, protocol.CodeRoomFull, msg.Code)

	expectSilence(t, host)
	expectSilence(t, guest)
}

func TestHubRelaysInOrderAndStampsSender(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")
	guest := connect(t, hub, "guest")

	send(hub, host, protocol.NewCreate("abc123"))
	receive(t, host)
	send(hub, guest, protocol.NewJoin("abc123"))
	receive(t, guest)
	receive(t, host)

	forged := offer("abc123")
	forged.From = "somebody-else"
	send(hub, host, forged)

	mid := "0"
	send(hub, host, protocol.NewICECandidate("abc123", webrtc.ICECandidateInit{Candidate: "candidate:1", SDPMid: &mid}))

	first := receive(t, guest)
	second := receive(t, guest)
	assert.Equal(t, protocol.TypeOffer, first.Type)
	assert.Equal(t, "host", first.From)
	assert.Equal(t, "v=0 offer", first.Description.SDP)
	assert.Equal(t, protocol.TypeICECandidate, second.Type)
	assert.Equal(t, "host", second.From)

	answer := protocol.NewDescription("abc123", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"})
	send(hub, guest, answer)
	msg := receive(t, host)
	assert.Equal(t, protocol.TypeAnswer, msg.Type)
	assert.Equal(t, "guest", msg.From)
}

func TestHubDropsUnroutableFrames(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")
	outsider := connect(t, hub, "outsider")

	// Unknown room.
	send(hub, host, offer("nowhere"))
	expectSilence(t, host)

	// No guest yet: the host's first offer goes nowhere.
	send(hub, host, protocol.NewCreate("abc123"))
	receive(t, host)
	send(hub, host, offer("abc123"))
	expectSilence(t, host)

	// Not a member of the room.
	send(hub, outsider, offer("abc123"))
	expectSilence(t, host)
	expectSilence(t, outsider)

	// The connection is still usable afterwards.
	send(hub, outsider, protocol.NewJoin("abc123"))
	assert.Equal(t, protocol.TypeJoined, receive(t, outsider).Type)
}

func TestHubAnswersMalformedFramesWithoutClosing(t *testing.T) {
	hub := newTestHub(t)
	c := connect(t, hub, "client")

	_, err := protocol.Decode([]byte(`{"type":"offer"}`))
	require.Error(t, err)
	hub.dispatch(envelope{client: c, err: err})

	msg := receive(t, c)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, protocol.CodeMalformedMessage, msg.Code)

	send(hub, c, &protocol.Message{Type: protocol.TypeGuestJoined, Room: "abc123"})
	msg = receive(t, c)
	assert.Equal(t, protocol.CodeMalformedMessage, msg.Code)

	send(hub, c, protocol.NewCreate("still-open"))
	assert.Equal(t, protocol.TypeRoomCreated, receive(t, c).Type)
}

func TestHubHostDisconnectNotifiesGuest(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")
	guest := connect(t, hub, "guest")

	send(hub, host, protocol.NewCreate("abc123"))
	receive(t, host)
	send(hub, guest, protocol.NewJoin("abc123"))
	receive(t, guest)
	receive(t, host)

	hub.Unregister(host)

	msg := receive(t, guest)
	assert.Equal(t, protocol.TypeHostLeft, msg.Type)
	assert.Equal(t, "abc123", msg.Room)

	_, open := <-host.send
	assert.False(t, open, "host queue should be closed")

	// The room is gone with the host.
	late := connect(t, hub, "late")
	send(hub, late, protocol.NewJoin("abc123"))
	assert.Equal(t, protocol.CodeRoomNotFound, receive(t, late).Code)

	// A second unregister is harmless.
	hub.Unregister(host)
	expectSilence(t, guest)
}

func TestHubGuestDisconnectNotifiesHost(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")
	guest := connect(t, hub, "guest")

	send(hub, host, protocol.NewCreate("abc123"))
	receive(t, host)
	send(hub, guest, protocol.NewJoin("abc123"))
	receive(t, guest)
	receive(t, host)

	hub.Unregister(guest)

	msg := receive(t, host)
	assert.Equal(t, protocol.TypeGuestLeft, msg.Type)
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")

	slow := &Client{ID: "slow", hub: hub, send: make(chan *protocol.Message), logger: hub.logger}
	hub.Register(slow)

	_, open := <-slow.send
	assert.False(t, open, "unbuffered client cannot take connection-established and is dropped")

	send(hub, host, protocol.NewCreate("abc123"))
	assert.Equal(t, protocol.TypeRoomCreated, receive(t, host).Type)
}

func TestHubLogsLiveRoomCount(t *testing.T) {
	var logs bytes.Buffer
	hub := newLoggedHub(t, &logs)
	host := connect(t, hub, "host")
	guest := connect(t, hub, "guest")

	send(hub, host, protocol.NewCreate("abc123"))
	receive(t, host)
	assert.Contains(t, logs.String(), "rooms=1")

	send(hub, guest, protocol.NewJoin("abc123"))
	receive(t, guest)
	receive(t, host)

	hub.Unregister(guest)
	assert.Equal(t, protocol.TypeGuestLeft, receive(t, host).Type)
	assert.Contains(t, logs.String(), "rooms=0")
}

func TestHubIgnoresServerOnlyFramesFromClients(t *testing.T) {
	hub := newTestHub(t)
	host := connect(t, hub, "host")

	send(hub, host, &protocol.Message{Type: protocol.TypeHostLeft, Room: "abc123"})
	msg := receive(t, host)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, protocol.CodeMalformedMessage, msg.Code)
}
