package client

import (
	"encoding/json"
	"fmt"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
)

// Roster is a participant's replica of the users in a room. Until the first
// existing_users snapshot arrives it is provisional.
type Roster struct {
	users  []models.Member
	loaded bool
	status string
}

func NewRoster() *Roster {
	return &Roster{
		users:  make([]models.Member, 0),
		status: "Loading users...",
	}
}

// ApplyJoin adds username unless it is already present.
func (r *Roster) ApplyJoin(username string) bool {
	r.status = fmt.Sprintf("Connected! %s joined the room", username)
	if r.Contains(username) {
		return false
	}
	r.users = append(r.users, models.Member{Username: username, Color: models.ColorFor(username)})
	return true
}

// ApplyLeave removes username. Absent names are ignored.
func (r *Roster) ApplyLeave(username string) bool {
	r.status = fmt.Sprintf("Connected! %s left the room", username)
	for i, u := range r.users {
		if u.Username == username {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyExistingUsers replaces the roster with the snapshot in data and marks
// the roster loaded. Both the bare list and the {users: [...]} shape are
// accepted; anything else counts as an empty room. It reports whether the
// payload had a recognised shape.
func (r *Roster) ApplyExistingUsers(data json.RawMessage) bool {
	users, ok := protocol.ParseExistingUsers(data)

	r.users = make([]models.Member, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		if _, dup := seen[u.Username]; dup {
			continue
		}
		seen[u.Username] = struct{}{}
		if u.Color == "" {
			u.Color = models.ColorFor(u.Username)
		}
		r.users = append(r.users, u)
	}
	r.loaded = true
	r.status = fmt.Sprintf("Connected! Found %d users in room", len(r.users))
	return ok
}

func (r *Roster) Contains(username string) bool {
	for _, u := range r.users {
		if u.Username == username {
			return true
		}
	}
	return false
}

// Users returns a copy of the current members in join order.
func (r *Roster) Users() []models.Member {
	out := make([]models.Member, len(r.users))
	copy(out, r.users)
	return out
}

// Loaded reports whether an authoritative snapshot has been applied.
func (r *Roster) Loaded() bool {
	return r.loaded
}

// Status is the human-readable line describing the last roster change.
func (r *Roster) Status() string {
	return r.status
}
