package channel

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// echoServer answers every frame it receives with a room-created frame for
// the same room, after first sending one malformed frame.
func echoServer(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()

	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
		for {
			var in protocol.Message
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			conn.WriteJSON(&protocol.Message{Type: protocol.TypeRoomCreated, Room: in.Room})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSendAndReceive(t *testing.T) {
	srv, _ := echoServer(t)

	c, err := Dial(context.Background(), wsURL(srv), time.Second, discard)
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, c.IsOpen())

	require.NoError(t, c.Send(protocol.NewCreate("abc123")))

	select {
	case msg := <-c.Incoming():
		assert.Equal(t, protocol.TypeRoomCreated, msg.Type, "malformed frame is skipped")
		assert.Equal(t, "abc123", msg.Room)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv, _ := echoServer(t)

	c, err := Dial(context.Background(), wsURL(srv), time.Second, discard)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.IsOpen())
	assert.ErrorIs(t, c.Send(protocol.NewCreate("abc123")), ErrChannelNotOpen)

	// Incoming drains and closes.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Incoming():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("incoming never closed")
		}
	}
}

func TestServerCloseClosesChannel(t *testing.T) {
	srv, conns := echoServer(t)

	c, err := Dial(context.Background(), wsURL(srv), time.Second, discard)
	require.NoError(t, err)
	defer c.Close()

	serverSide := <-conns
	serverSide.Close()

	require.Eventually(t, func() bool {
		return !c.IsOpen()
	}, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, c.Send(protocol.NewJoin("abc123")), ErrChannelNotOpen)
}

func TestDialTimeout(t *testing.T) {
	// A listener that accepts but never completes the handshake.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	start := time.Now()
	_, err = Dial(context.Background(), "ws://"+ln.Addr().String()+"/ws", 100*time.Millisecond, discard)
	assert.ErrorIs(t, err, ErrChannelTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDialRejectsBadURL(t *testing.T) {
	_, err := Dial(context.Background(), "http://example.com/ws", time.Second, discard)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrChannelTimeout)
}
