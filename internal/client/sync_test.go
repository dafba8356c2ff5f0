package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
)

func newTestEngine(content string) (*SyncEngine, *Buffer, *fakeClock) {
	buf := NewBuffer(content)
	clock := newFakeClock()
	return NewSyncEngine("room1", "alice", buf, clock), buf, clock
}

func TestLocalChangeIssuesIncreasingIdentities(t *testing.T) {
	engine, _, _ := newTestEngine("")

	first, ok := engine.LocalChange("a")
	require.True(t, ok)
	second, ok := engine.LocalChange("ab")
	require.True(t, ok)

	assert.Equal(t, protocol.CodeChange{RoomID: "room1", Content: "a", MessageID: 1}, first)
	assert.Equal(t, int64(2), second.MessageID)
}

func TestLocalChangeIsIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine("")

	_, ok := engine.LocalChange("x = 1")
	require.True(t, ok)
	_, ok = engine.LocalChange("x = 1")
	assert.False(t, ok)
	assert.Equal(t, int64(1), engine.Counter())
}

func TestLocalChangeBackToReceivedContentIsNotSent(t *testing.T) {
	engine, _, _ := newTestEngine("")
	require.NoError(t, engine.RemoteUpdate(protocol.CodeUpdate{Content: "remote", MessageID: 1, Username: "bob"}))

	_, ok := engine.LocalChange("local")
	require.True(t, ok)
	_, ok = engine.LocalChange("remote")

	assert.False(t, ok)
	assert.Equal(t, "remote", engine.Content())
}

func TestRemoteUpdateReplacesBuffer(t *testing.T) {
	engine, buf, _ := newTestEngine("print(1)")

	err := engine.RemoteUpdate(protocol.CodeUpdate{Content: "print(2)", MessageID: 1, Username: "bob"})

	require.NoError(t, err)
	assert.Equal(t, "print(2)", buf.Value())
	assert.Equal(t, "print(2)", engine.Content())
	assert.False(t, engine.Applying())
}

func TestRemoteUpdateDropsOwnEcho(t *testing.T) {
	engine, buf, clock := newTestEngine("")
	change, ok := engine.LocalChange("mine")
	require.True(t, ok)
	buf.ReplaceAll("mine")

	clock.Advance(time.Second)
	err := engine.RemoteUpdate(protocol.CodeUpdate{Content: "mine", MessageID: change.MessageID})
	assert.ErrorIs(t, err, ErrStaleMessage)

	err = engine.RemoteUpdate(protocol.CodeUpdate{Content: "mine", MessageID: 99, Username: "bob"})
	assert.ErrorIs(t, err, ErrStaleMessage, "content equal to the last sent value is an echo")
	assert.Equal(t, "mine", buf.Value())
}

func TestRemoteUpdateFromOtherSenderWithSameIdentityIsApplied(t *testing.T) {
	engine, buf, _ := newTestEngine("")
	change, ok := engine.LocalChange("mine")
	require.True(t, ok)

	err := engine.RemoteUpdate(protocol.CodeUpdate{Content: "theirs", MessageID: change.MessageID, Username: "bob"})

	require.NoError(t, err)
	assert.Equal(t, "theirs", buf.Value())
}

func TestRemoteUpdateIsThrottled(t *testing.T) {
	engine, buf, clock := newTestEngine("")

	require.NoError(t, engine.RemoteUpdate(protocol.CodeUpdate{Content: "one", MessageID: 1, Username: "bob"}))
	clock.Advance(10 * time.Millisecond)
	err := engine.RemoteUpdate(protocol.CodeUpdate{Content: "two", MessageID: 2, Username: "bob"})
	assert.ErrorIs(t, err, ErrThrottledUpdate)
	assert.Equal(t, "one", buf.Value())

	clock.Advance(MinApplyInterval)
	require.NoError(t, engine.RemoteUpdate(protocol.CodeUpdate{Content: "three", MessageID: 3, Username: "bob"}))
	assert.Equal(t, "three", buf.Value())
}

func TestRemoteIdentityAdvancesCounter(t *testing.T) {
	// X sent identity 1; Y, which has sent nothing, must continue above it.
	engine, _, _ := newTestEngine("")
	require.NoError(t, engine.RemoteUpdate(protocol.CodeUpdate{Content: "from x", MessageID: 1, Username: "x"}))

	change, ok := engine.LocalChange("from y")

	require.True(t, ok)
	assert.GreaterOrEqual(t, change.MessageID, int64(2))
}

func TestRemoteUpdateClampsCursor(t *testing.T) {
	engine, buf, _ := newTestEngine("l1\nl2\nl3\nl4\nline5")
	buf.SetCursor(models.Position{Line: 5, Column: 3})

	require.NoError(t, engine.RemoteUpdate(protocol.CodeUpdate{Content: "ab\ncd", MessageID: 1, Username: "bob"}))

	cursor, ok := buf.Cursor()
	require.True(t, ok)
	assert.Equal(t, models.Position{Line: 2, Column: 2}, cursor)
}

func TestRepeatedRemoteUpdateKeepsBufferAndCursor(t *testing.T) {
	engine, buf, clock := newTestEngine("")
	update := protocol.CodeUpdate{Content: "ab\ncdef", MessageID: 1, Username: "bob"}
	require.NoError(t, engine.RemoteUpdate(update))
	buf.SetCursor(models.Position{Line: 2, Column: 3})

	clock.Advance(time.Second)
	err := engine.RemoteUpdate(update)

	assert.ErrorIs(t, err, ErrStaleMessage)
	assert.Equal(t, "ab\ncdef", buf.Value())
	cursor, ok := buf.Cursor()
	require.True(t, ok)
	assert.Equal(t, models.Position{Line: 2, Column: 3}, cursor)
}

func TestRemoteUpdateRestoresSelection(t *testing.T) {
	engine, buf, _ := newTestEngine("abcdef\nghijkl")
	buf.SetSelection(models.Range{
		Start: models.Position{Line: 1, Column: 2},
		End:   models.Position{Line: 2, Column: 6},
	})

	require.NoError(t, engine.RemoteUpdate(protocol.CodeUpdate{Content: "abc\ngh", MessageID: 1, Username: "bob"}))

	sel, ok := buf.Selection()
	require.True(t, ok)
	assert.Equal(t, models.Range{
		Start: models.Position{Line: 1, Column: 2},
		End:   models.Position{Line: 2, Column: 2},
	}, sel)
}

func TestResetBypassesGuards(t *testing.T) {
	engine, buf, _ := newTestEngine("")
	require.NoError(t, engine.RemoteUpdate(protocol.CodeUpdate{Content: "one", MessageID: 1, Username: "bob"}))

	engine.Reset("template")

	assert.Equal(t, "template", buf.Value())
	_, ok := engine.LocalChange("template")
	assert.False(t, ok)
}

func TestRecentIdentitiesAreBounded(t *testing.T) {
	engine, _, clock := newTestEngine("")
	for i := 0; i < recentIdentityCapacity+1; i++ {
		_, ok := engine.LocalChange(string(rune('a' + i)))
		require.True(t, ok)
	}

	// Identity 1 fell out of the window; it is no longer treated as an echo.
	clock.Advance(time.Second)
	err := engine.RemoteUpdate(protocol.CodeUpdate{Content: "fresh", MessageID: 1})
	assert.NoError(t, err)
}

func TestClampPosition(t *testing.T) {
	tests := []struct {
		name    string
		pos     models.Position
		content string
		want    models.Position
	}{
		{"inside", models.Position{Line: 1, Column: 2}, "abc", models.Position{Line: 1, Column: 2}},
		{"past last line", models.Position{Line: 9, Column: 1}, "a\nb", models.Position{Line: 2, Column: 1}},
		{"past line end", models.Position{Line: 1, Column: 9}, "abc\nd", models.Position{Line: 1, Column: 3}},
		{"empty content", models.Position{Line: 3, Column: 3}, "", models.Position{Line: 1, Column: 1}},
		{"non-positive", models.Position{Line: 0, Column: -1}, "abc", models.Position{Line: 1, Column: 1}},
		{"multibyte line", models.Position{Line: 1, Column: 5}, "héé", models.Position{Line: 1, Column: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampPosition(tt.pos, tt.content))
		})
	}
}
