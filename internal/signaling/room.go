package signaling

// Participant is the server-assigned identity of one connection.
type Participant string

// Role is the position a participant holds in a room.
type Role int

const (
	RoleHost Role = iota
	RoleGuest
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "guest"
}

// Room pairs the participant who created it (Host) with at most one
// participant who joined it (Guest). An empty Guest means the seat is free.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// Host is the participant who created the room.
	Host Participant

	// Guest is the participant who joined the room.
	Guest Participant
}

// RoleOf reports which seat p holds in the room.
func (r *Room) RoleOf(p Participant) (Role, bool) {
	switch {
	case p == "":
		return 0, false
	case r.Host == p:
		return RoleHost, true
	case r.Guest == p:
		return RoleGuest, true
	}
	return 0, false
}

// Counterpart returns the other member of the room. ok is false when p is
// not a member; the returned participant is empty when the other seat is free.
func (r *Room) Counterpart(p Participant) (other Participant, ok bool) {
	role, ok := r.RoleOf(p)
	if !ok {
		return "", false
	}
	if role == RoleHost {
		return r.Guest, true
	}
	return r.Host, true
}
