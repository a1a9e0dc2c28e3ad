package signaling

import "github.com/BioHazard786/Warpcall/internal/protocol"

// Registry owns every live room. It is not safe for concurrent use: the Hub
// goroutine is its only caller.
type Registry struct {
	rooms map[string]*Room

	// members maps a participant to the room it belongs to.
	members map[Participant]string
}

// Departure describes a room torn down because one of its members left.
type Departure struct {
	Room string

	// Role is the seat the departing participant held.
	Role Role

	// Counterpart is the member left behind, empty if the room had no one else.
	Counterpart Participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		members: make(map[Participant]string),
	}
}

// CreateRoom opens roomID with p as its host.
func (r *Registry) CreateRoom(p Participant, roomID string) error {
	if _, ok := r.members[p]; ok {
		return protocol.ErrAlreadyInRoom
	}
	if _, ok := r.rooms[roomID]; ok {
		return protocol.ErrRoomExists
	}

	r.rooms[roomID] = &Room{ID: roomID, Host: p}
	r.members[p] = roomID
	return nil
}

// JoinRoom seats p as the guest of roomID and returns a copy of the room.
// A room never takes a second guest.
func (r *Registry) JoinRoom(p Participant, roomID string) (Room, error) {
	if _, ok := r.members[p]; ok {
		return Room{}, protocol.ErrAlreadyInRoom
	}
	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, protocol.ErrRoomNotFound
	}
	if room.Guest != "" {
		return Room{}, protocol.ErrRoomFull
	}

	room.Guest = p
	r.members[p] = roomID
	return *room, nil
}

// RemoveParticipant deletes the room p belongs to. Rooms do not outlive
// either member, so the remaining member (if any) is returned for
// notification. Removing a participant that is in no room is a no-op.
func (r *Registry) RemoveParticipant(p Participant) (Departure, bool) {
	roomID, ok := r.members[p]
	if !ok {
		return Departure{}, false
	}
	delete(r.members, p)

	room, ok := r.rooms[roomID]
	if !ok {
		return Departure{}, false
	}

	role, _ := room.RoleOf(p)
	other, _ := room.Counterpart(p)

	delete(r.rooms, roomID)
	if other != "" {
		delete(r.members, other)
	}

	return Departure{Room: roomID, Role: role, Counterpart: other}, true
}

// Lookup returns a copy of the room with the given id.
func (r *Registry) Lookup(roomID string) (Room, bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return *room, true
}

// Count returns the number of live rooms.
func (r *Registry) Count() int {
	return len(r.rooms)
}
