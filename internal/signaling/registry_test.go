package signaling

import (
	"fmt"
	"testing"

	"github.com/BioHazard786/Warpcall/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomTwiceKeepsOriginal(t *testing.T) {
	for i := 0; i < 20; i++ {
		roomID := fmt.Sprintf("room-%d", i)
		t.Run(roomID, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.CreateRoom("host", roomID))
			_, err := r.JoinRoom("guest", roomID)
			require.NoError(t, err)

			err = r.CreateRoom("intruder", roomID)
			assert.ErrorIs(t, err, protocol.ErrRoomExists)

			room, ok := r.Lookup(roomID)
			require.True(t, ok)
			assert.Equal(t, Participant("host"), room.Host)
			assert.Equal(t, Participant("guest"), room.Guest)
		})
	}
}

func TestJoinRoomSucceedsExactlyOnce(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.CreateRoom("host", "abc123"))

	room, err := r.JoinRoom("guest-1", "abc123")
	require.NoError(t, err)
	assert.Equal(t, Participant("host"), room.Host)
	assert.Equal(t, Participant("guest-1"), room.Guest)

	_, err = r.JoinRoom("guest-2", "abc123")
	assert.ErrorIs(t, err, protocol.ErrRoomFull)

	room, _ = r.Lookup("abc123")
	assert.Equal(t, Participant("guest-1"), room.Guest, "first guest must not be overwritten")
}

func TestJoinMissingRoomCreatesNothing(t *testing.T) {
	r := NewRegistry()

	_, err := r.JoinRoom("guest", "zzz999")
	assert.ErrorIs(t, err, protocol.ErrRoomNotFound)
	assert.Equal(t, 0, r.Count())

	_, ok := r.Lookup("zzz999")
	assert.False(t, ok)
}

func TestParticipantHoldsOneRoom(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.CreateRoom("host", "one"))

	assert.ErrorIs(t, r.CreateRoom("host", "two"), protocol.ErrAlreadyInRoom)

	require.NoError(t, r.CreateRoom("other", "two"))
	_, err := r.JoinRoom("host", "two")
	assert.ErrorIs(t, err, protocol.ErrAlreadyInRoom)
}

func TestRemoveHostNotifiesGuestAndDeletesRoom(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.CreateRoom("host", "abc123"))
	_, err := r.JoinRoom("guest", "abc123")
	require.NoError(t, err)

	dep, ok := r.RemoveParticipant("host")
	require.True(t, ok)
	assert.Equal(t, Departure{Room: "abc123", Role: RoleHost, Counterpart: "guest"}, dep)

	_, err = r.JoinRoom("late", "abc123")
	assert.ErrorIs(t, err, protocol.ErrRoomNotFound)

	// The guest was released with the room and may open a new one.
	assert.NoError(t, r.CreateRoom("guest", "fresh"))
}

func TestRemoveGuestReportsGuestRole(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.CreateRoom("host", "abc123"))
	_, err := r.JoinRoom("guest", "abc123")
	require.NoError(t, err)

	dep, ok := r.RemoveParticipant("guest")
	require.True(t, ok)
	assert.Equal(t, RoleGuest, dep.Role)
	assert.Equal(t, Participant("host"), dep.Counterpart)
	assert.Equal(t, 0, r.Count())
}

func TestRemoveSoleMemberDeletesRoom(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.CreateRoom("host", "abc123"))

	dep, ok := r.RemoveParticipant("host")
	require.True(t, ok)
	assert.Empty(t, dep.Counterpart)

	_, err := r.JoinRoom("guest", "abc123")
	assert.ErrorIs(t, err, protocol.ErrRoomNotFound)
}

func TestRemoveParticipantIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.CreateRoom("host", "abc123"))

	_, ok := r.RemoveParticipant("host")
	require.True(t, ok)

	_, ok = r.RemoveParticipant("host")
	assert.False(t, ok)

	_, ok = r.RemoveParticipant("never-seen")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}
