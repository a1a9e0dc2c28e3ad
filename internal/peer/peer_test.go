package peer

import (
	"net"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpcall/internal/config"
)

func TestControlMessageRoundTrip(t *testing.T) {
	msg, err := NewControlMessage(ControlMute, MutePayload{Muted: true})
	require.NoError(t, err)

	raw, err := encodeControl(msg)
	require.NoError(t, err)

	got, err := decodeControl(raw)
	require.NoError(t, err)
	assert.Equal(t, ControlMute, got.Type)

	var payload MutePayload
	require.NoError(t, got.DecodePayload(&payload))
	assert.True(t, payload.Muted)

	_, err = decodeControl([]byte{0xc1})
	assert.Error(t, err)
}

func TestRelayHint(t *testing.T) {
	up := net.FlagUp
	cases := []struct {
		name   string
		ifaces []netInterface
		want   bool
	}{
		{"plain ethernet", []netInterface{{name: "eth0", flags: up, addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.5")}}}}, false},
		{"wireguard", []netInterface{{name: "wg0", flags: up}}, true},
		{"down vpn", []netInterface{{name: "tun0"}}, false},
		{"loopback", []netInterface{{name: "lo", flags: up | net.FlagLoopback, addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("100.64.0.1")}}}}, false},
		{"cgnat address", []netInterface{{name: "eth0", flags: up, addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("100.100.1.1")}}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, relayHint(tc.ifaces))
		})
	}
}

func TestICEConfiguration(t *testing.T) {
	cfg := &config.Config{
		STUNServer: "stun:stun.example:3478",
		TURNServer: "turn:turn.example",
		TURNUser:   "user",
		TURNPass:   "pass",
		ForceRelay: true,
	}

	rtc := ICEConfiguration(cfg)
	require.Len(t, rtc.ICEServers, 2)
	assert.Equal(t, []string{"stun:stun.example:3478"}, rtc.ICEServers[0].URLs)
	assert.Equal(t, "user", rtc.ICEServers[1].Username)
	assert.Equal(t, webrtc.ICETransportPolicyRelay, rtc.ICETransportPolicy)

	// Relay needs a TURN server to relay through.
	cfg.TURNServer = ""
	rtc = ICEConfiguration(cfg)
	assert.Len(t, rtc.ICEServers, 1)
	assert.Equal(t, webrtc.ICETransportPolicyAll, rtc.ICETransportPolicy)
}

// negotiate connects two in-process peers over host candidates without
// trickling.
func negotiate(t *testing.T, offerer, answerer *Conn) {
	t.Helper()

	offer, err := offerer.CreateOffer()
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(offerer.pc)
	require.NoError(t, offerer.SetLocalDescription(offer))
	<-gathered

	require.NoError(t, answerer.SetRemoteDescription(*offerer.LocalDescription()))
	answer, err := answerer.CreateAnswer()
	require.NoError(t, err)
	gathered = webrtc.GatheringCompletePromise(answerer.pc)
	require.NoError(t, answerer.SetLocalDescription(answer))
	<-gathered

	require.NoError(t, offerer.SetRemoteDescription(*answerer.LocalDescription()))
}

func TestControlChannelCarriesMute(t *testing.T) {
	if testing.Short() {
		t.Skip("needs local ICE connectivity")
	}

	connected := make(chan struct{}, 2)
	onConnectivity := func(s webrtc.ICEConnectionState) {
		if s == webrtc.ICEConnectionStateConnected {
			connected <- struct{}{}
		}
	}

	host, err := New(webrtc.Configuration{}, Options{
		Host:     true,
		Handlers: Handlers{OnConnectivity: onConnectivity},
	})
	require.NoError(t, err)
	defer host.Close()

	received := make(chan ControlMessage, 1)
	guest, err := New(webrtc.Configuration{}, Options{
		Handlers: Handlers{
			OnConnectivity: onConnectivity,
			OnControl:      func(m ControlMessage) { received <- m },
		},
	})
	require.NoError(t, err)
	defer guest.Close()

	assert.ErrorIs(t, host.SendControl(ControlMessage{Type: ControlMute}), ErrControlNotOpen)

	negotiate(t, host, guest)

	for i := 0; i < 2; i++ {
		select {
		case <-connected:
		case <-time.After(10 * time.Second):
			t.Fatal("peers did not connect")
		}
	}

	msg, err := NewControlMessage(ControlMute, MutePayload{Muted: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return host.SendControl(msg) == nil
	}, 10*time.Second, 50*time.Millisecond)

	select {
	case got := <-received:
		var payload MutePayload
		require.NoError(t, got.DecodePayload(&payload))
		assert.True(t, payload.Muted)
	case <-time.After(10 * time.Second):
		t.Fatal("guest received no control message")
	}

	require.NoError(t, host.Close())
	assert.NoError(t, host.Close(), "second close returns the first result")
}
