package ui

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
)

func TestCallSummaryView(t *testing.T) {
	view := CallSummaryView(call.Summary{
		Room:            "abc123",
		IsHost:          true,
		Status:          negotiation.StatusPeerLeft,
		Connected:       75 * time.Second,
		RecordPath:      "peer.ogg",
		RecordedPackets: 42,
	})

	assert.Contains(t, view, "abc123")
	assert.Contains(t, view, "host")
	assert.Contains(t, view, "1m 15s")
	assert.Contains(t, view, "peer.ogg (42 packets)")
	assert.NotContains(t, view, "Error")
}

func TestCallSummaryShowsRootCause(t *testing.T) {
	err := call.NewError("call", fmt.Errorf("wrap: %w", negotiation.ErrNegotiationFailure))
	view := CallSummaryView(call.Summary{Room: "abc123", Status: negotiation.StatusFailed, Err: err})

	assert.Contains(t, view, "guest")
	assert.Contains(t, view, negotiation.ErrNegotiationFailure.Error())
}

func TestFormatTalkTime(t *testing.T) {
	assert.Equal(t, "-", formatTalkTime(0))
	assert.Equal(t, "9s", formatTalkTime(9*time.Second))
	assert.Equal(t, "2m 05s", formatTalkTime(125*time.Second))
}
