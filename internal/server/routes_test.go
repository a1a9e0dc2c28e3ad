package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpcall/internal/protocol"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	hub := signaling.NewHub(signaling.NewRegistry(), logger)
	go hub.Run(ctx)

	srv := httptest.NewServer(Handler(hub, logger))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

// dial opens a signaling channel and returns it with the participant id
// the server assigned.
func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := read(t, conn)
	require.Equal(t, protocol.TypeConnectionEstablished, msg.Type)
	require.NotEmpty(t, msg.ClientID)
	return conn, msg.ClientID
}

func read(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	msg, err := protocol.Decode(raw)
	require.NoError(t, err, "server sent %s", raw)
	return msg
}

func write(t *testing.T, conn *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Signaling server is healthy.", string(body))
}

func TestHostAndGuestExchangeNegotiation(t *testing.T) {
	srv := newTestServer(t)
	host, hostID := dial(t, srv)
	guest, guestID := dial(t, srv)
	assert.NotEqual(t, hostID, guestID)

	write(t, host, protocol.NewCreate("abc123"))
	assert.Equal(t, protocol.TypeRoomCreated, read(t, host).Type)

	write(t, guest, protocol.NewJoin("abc123"))
	assert.Equal(t, protocol.TypeJoined, read(t, guest).Type)
	assert.Equal(t, protocol.TypeGuestJoined, read(t, host).Type)

	write(t, host, protocol.NewDescription("abc123", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}))
	got := read(t, guest)
	assert.Equal(t, protocol.TypeOffer, got.Type)
	assert.Equal(t, hostID, got.From)
	assert.Equal(t, "v=0 offer", got.Description.SDP)

	write(t, guest, protocol.NewDescription("abc123", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}))
	got = read(t, host)
	assert.Equal(t, protocol.TypeAnswer, got.Type)
	assert.Equal(t, guestID, got.From)
}

func TestMalformedFrameKeepsChannelOpen(t *testing.T) {
	srv := newTestServer(t)
	conn, _ := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	msg := read(t, conn)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, protocol.CodeMalformedMessage, msg.Code)

	write(t, conn, protocol.NewCreate("abc123"))
	assert.Equal(t, protocol.TypeRoomCreated, read(t, conn).Type)
}

func TestHostDisconnectReachesGuest(t *testing.T) {
	srv := newTestServer(t)
	host, _ := dial(t, srv)
	guest, _ := dial(t, srv)

	write(t, host, protocol.NewCreate("abc123"))
	read(t, host)
	write(t, guest, protocol.NewJoin("abc123"))
	read(t, guest)
	read(t, host)

	require.NoError(t, host.Close())

	msg := read(t, guest)
	assert.Equal(t, protocol.TypeHostLeft, msg.Type)
	assert.Equal(t, "abc123", msg.Room)

	write(t, guest, protocol.NewCreate("abc123"))
	assert.Equal(t, protocol.TypeRoomCreated, read(t, guest).Type, "room id is free again")
}
