package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Icerzack/codecollab/internal/models"
)

func usernames(users []models.Member) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func TestRosterStartsProvisional(t *testing.T) {
	r := NewRoster()

	assert.False(t, r.Loaded())
	assert.Empty(t, r.Users())
	assert.Equal(t, "Loading users...", r.Status())
}

func TestRosterJoinIsIdempotent(t *testing.T) {
	r := NewRoster()

	assert.True(t, r.ApplyJoin("bob"))
	assert.False(t, r.ApplyJoin("bob"))

	assert.Equal(t, []string{"bob"}, usernames(r.Users()))
	assert.Equal(t, models.ColorFor("bob"), r.Users()[0].Color)
	assert.Equal(t, "Connected! bob joined the room", r.Status())
}

func TestRosterLeaveOfAbsentUserIsIgnored(t *testing.T) {
	r := NewRoster()
	r.ApplyJoin("bob")

	assert.False(t, r.ApplyLeave("carol"))
	assert.True(t, r.ApplyLeave("bob"))
	assert.Empty(t, r.Users())
	assert.Equal(t, "Connected! bob left the room", r.Status())
}

func TestRosterSnapshotShapes(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		want  []string
		valid bool
	}{
		{"bare list", `[{"username":"alice"},{"username":"bob"}]`, []string{"alice", "bob"}, true},
		{"wrapped", `{"users":[{"username":"alice","color":"#000000"}]}`, []string{"alice"}, true},
		{"duplicates", `[{"username":"alice"},{"username":"alice"},{"username":""}]`, []string{"alice"}, true},
		{"unexpected", `"nobody"`, []string{}, false},
		{"missing users key", `{"people":[]}`, []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRoster()
			ok := r.ApplyExistingUsers(json.RawMessage(tt.data))

			assert.Equal(t, tt.valid, ok)
			assert.True(t, r.Loaded())
			assert.Equal(t, tt.want, usernames(r.Users()))
		})
	}
}

func TestRosterSnapshotKeepsGivenColor(t *testing.T) {
	r := NewRoster()
	r.ApplyExistingUsers(json.RawMessage(`{"users":[{"username":"alice","color":"#000000"},{"username":"bob"}]}`))

	users := r.Users()
	assert.Equal(t, "#000000", users[0].Color)
	assert.Equal(t, models.ColorFor("bob"), users[1].Color)
	assert.Equal(t, "Connected! Found 2 users in room", r.Status())
}

func TestRosterSnapshotReplacesProvisionalJoins(t *testing.T) {
	r := NewRoster()
	r.ApplyJoin("carol")

	r.ApplyExistingUsers(json.RawMessage(`[{"username":"alice"},{"username":"bob"}]`))
	r.ApplyJoin("bob")
	r.ApplyJoin("dave")

	assert.Equal(t, []string{"alice", "bob", "dave"}, usernames(r.Users()))
}
