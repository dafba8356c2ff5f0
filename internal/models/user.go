package models

// User is a connection registered on the relay.
type User struct {
	// ID is the unique identifier of the connection.
	ID string

	// Username is the name the user joined with. It is unique within a room.
	Username string

	// RoomID is the unique identifier of the room that the user belongs to.
	RoomID string

	// Color is the display colour assigned to the username.
	Color string

	// Send is the outbound queue drained by the connection's write pump.
	Send chan []byte
}

// Member is a roster entry as it travels on the wire.
type Member struct {
	Username string `json:"username"`
	Color    string `json:"color,omitempty"`
}

// Member returns the roster entry for the user.
func (u *User) Member() Member {
	return Member{Username: u.Username, Color: u.Color}
}
