package room

import (
	"sync"
	"time"

	"github.com/Icerzack/codecollab/internal/models"
)

// Room is the relay's live view of a room: the connections served by this
// instance and the last known presence of each user.
type Room struct {
	// ID is the unique identifier of the room
	ID string

	// users are the local connections in join order
	users []*models.User

	// presence is keyed by username
	presence map[string]*models.Presence

	// unsubscribe detaches the room from the broker
	unsubscribe func()

	mtx *sync.RWMutex
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{
		ID:       id,
		users:    make([]*models.User, 0),
		presence: make(map[string]*models.Presence),
		mtx:      &sync.RWMutex{},
	}
}

// AddUser adds a connection. It reports false when another connection already
// holds the same username.
func (r *Room) AddUser(newUser *models.User) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	unique := true
	for _, u := range r.users {
		if u.ID == newUser.ID {
			return false
		}
		if u.Username == newUser.Username {
			unique = false
		}
	}
	r.users = append(r.users, newUser)
	if _, ok := r.presence[newUser.Username]; !ok {
		r.presence[newUser.Username] = &models.Presence{
			Username: newUser.Username,
			Color:    newUser.Color,
			LastSeen: time.Now().UTC(),
		}
	}
	return unique
}

// RemoveUser removes a connection. It reports whether the username has no
// connection left in the room.
func (r *Room) RemoveUser(connID string) (*models.User, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var removed *models.User
	for i, u := range r.users {
		if u.ID == connID {
			removed = u
			r.users = append(r.users[:i], r.users[i+1:]...)
			break
		}
	}
	if removed == nil {
		return nil, false
	}
	for _, u := range r.users {
		if u.Username == removed.Username {
			return removed, false
		}
	}
	delete(r.presence, removed.Username)
	return removed, true
}

// Members returns one roster entry per distinct username, in join order.
func (r *Room) Members() []models.Member {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	seen := make(map[string]struct{}, len(r.users))
	members := make([]models.Member, 0, len(r.users))
	for _, u := range r.users {
		if _, ok := seen[u.Username]; ok {
			continue
		}
		seen[u.Username] = struct{}{}
		members = append(members, u.Member())
	}
	return members
}

func (r *Room) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.users)
}

// UpdatePresence merges delta into the cached presence of delta.Username.
func (r *Room) UpdatePresence(delta models.Presence) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	cur, ok := r.presence[delta.Username]
	if !ok {
		cur = &models.Presence{Username: delta.Username, Color: models.ColorFor(delta.Username)}
		r.presence[delta.Username] = cur
	}
	cur.Merge(delta)
	cur.LastSeen = time.Now().UTC()
}

// SetTyping records the typing flag of username.
func (r *Room) SetTyping(username string, typing bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	cur, ok := r.presence[username]
	if !ok {
		cur = &models.Presence{Username: username, Color: models.ColorFor(username)}
		r.presence[username] = cur
	}
	cur.Typing = typing
	cur.LastSeen = time.Now().UTC()
}

// Presence returns a snapshot of the presence cache, in join order.
func (r *Room) Presence() []models.Presence {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := make([]models.Presence, 0, len(r.presence))
	seen := make(map[string]struct{}, len(r.presence))
	for _, u := range r.users {
		p, ok := r.presence[u.Username]
		if !ok {
			continue
		}
		if _, dup := seen[u.Username]; dup {
			continue
		}
		seen[u.Username] = struct{}{}
		out = append(out, *p)
	}
	return out
}

// Deliver queues payload on every local connection accepted by recipient.
// Connections whose queue is full are returned so the caller can drop them.
func (r *Room) Deliver(payload []byte, recipient func(connID string) bool) []*models.User {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	var slow []*models.User
	for _, u := range r.users {
		if !recipient(u.ID) {
			continue
		}
		select {
		case u.Send <- payload:
		default:
			slow = append(slow, u)
		}
	}
	return slow
}

// SetUnsubscribe stores the broker cancel func of the room.
func (r *Room) SetUnsubscribe(fn func()) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.unsubscribe = fn
}

// Close detaches the room from the broker.
func (r *Room) Close() {
	r.mtx.Lock()
	fn := r.unsubscribe
	r.unsubscribe = nil
	r.mtx.Unlock()
	if fn != nil {
		fn()
	}
}
