package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
)

func TestEncodeParse(t *testing.T) {
	raw, err := protocol.Encode(protocol.EventCodeChange, protocol.CodeChange{RoomID: "r1", Content: "print(1)", MessageID: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"code_change","data":{"roomId":"r1","content":"print(1)","messageId":1}}`, string(raw))

	env, err := protocol.Parse(raw)
	require.NoError(t, err)
	var cc protocol.CodeChange
	require.NoError(t, env.Decode(&cc))
	assert.Equal(t, int64(1), cc.MessageID)
	assert.Equal(t, "print(1)", cc.Content)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := protocol.Parse([]byte("not json"))
	assert.ErrorIs(t, err, protocol.ErrInvalidMessage)

	_, err = protocol.Parse([]byte(`{"event":"nope"}`))
	assert.ErrorIs(t, err, protocol.ErrUnknownEvent)
}

func TestEncodeWithoutPayload(t *testing.T) {
	raw, err := protocol.Encode(protocol.EventSessionEnded, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"session_ended"}`, string(raw))
}

func TestParseExistingUsers(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		want  []models.Member
		valid bool
	}{
		{"bare list", `[{"username":"a"},{"username":"b","color":"#FF6B6B"}]`,
			[]models.Member{{Username: "a"}, {Username: "b", Color: "#FF6B6B"}}, true},
		{"wrapped", `{"users":[{"username":"a"}]}`, []models.Member{{Username: "a"}}, true},
		{"wrapped empty", `{"users":[]}`, []models.Member{}, true},
		{"wrong object", `{"people":[{"username":"a"}]}`, []models.Member{}, false},
		{"scalar", `42`, []models.Member{}, false},
		{"missing", ``, []models.Member{}, false},
		{"null list", `null`, []models.Member{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := protocol.ParseExistingUsers(json.RawMessage(tt.data))
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
