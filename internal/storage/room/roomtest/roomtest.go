// Package roomtest holds the behaviour every room storage backend must share.
package roomtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/room"
)

// Run exercises s, which must be empty.
func Run(t *testing.T, s room.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, models.NewRoom("r-create", "42")))
		assert.ErrorIs(t, s.Create(ctx, models.NewRoom("r-create", "43")), room.ErrRoomExists)

		got, err := s.Get(ctx, "r-create")
		require.NoError(t, err)
		assert.Equal(t, "r-create", got.ID)
		assert.Equal(t, models.DefaultContent, got.Content)
		assert.Equal(t, models.DefaultLanguage, got.Language)
		assert.Equal(t, "42", got.CreatedBy)
		assert.Nil(t, got.ProblemID)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, room.ErrRoomNotFound)
	})

	t.Run("updates", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, models.NewRoom("r-update", "")))

		require.NoError(t, s.SetContent(ctx, "r-update", "print(1)"))
		require.NoError(t, s.SetLanguage(ctx, "r-update", "go"))
		got, err := s.Get(ctx, "r-update")
		require.NoError(t, err)
		assert.Equal(t, "print(1)", got.Content)
		assert.Equal(t, "go", got.Language)

		pid := int64(7)
		require.NoError(t, s.SetProblem(ctx, "r-update", &pid, "def solve(s):"))
		got, err = s.Get(ctx, "r-update")
		require.NoError(t, err)
		require.NotNil(t, got.ProblemID)
		assert.Equal(t, int64(7), *got.ProblemID)
		assert.Equal(t, "def solve(s):", got.Content)

		require.NoError(t, s.SetProblem(ctx, "r-update", nil, "def solve(s):"))
		got, err = s.Get(ctx, "r-update")
		require.NoError(t, err)
		assert.Nil(t, got.ProblemID)

		assert.ErrorIs(t, s.SetContent(ctx, "missing", "x"), room.ErrRoomNotFound)
		assert.ErrorIs(t, s.SetLanguage(ctx, "missing", "x"), room.ErrRoomNotFound)
		assert.ErrorIs(t, s.SetProblem(ctx, "missing", nil, "x"), room.ErrRoomNotFound)
	})

	t.Run("members", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, models.NewRoom("r-members", "")))

		require.NoError(t, s.AddMember(ctx, "r-members", models.Member{Username: "alice", Color: "#FF6B6B"}))
		require.NoError(t, s.AddMember(ctx, "r-members", models.Member{Username: "bob", Color: "#D4A5A5"}))
		require.NoError(t, s.AddMember(ctx, "r-members", models.Member{Username: "alice", Color: "#FF6B6B"}))

		members, err := s.Members(ctx, "r-members")
		require.NoError(t, err)
		assert.Equal(t, []models.Member{
			{Username: "alice", Color: "#FF6B6B"},
			{Username: "bob", Color: "#D4A5A5"},
		}, members)

		require.NoError(t, s.RemoveMember(ctx, "r-members", "alice"))
		require.NoError(t, s.RemoveMember(ctx, "r-members", "carol"))
		members, err = s.Members(ctx, "r-members")
		require.NoError(t, err)
		assert.Equal(t, []models.Member{{Username: "bob", Color: "#D4A5A5"}}, members)

		assert.ErrorIs(t, s.AddMember(ctx, "missing", models.Member{Username: "x"}), room.ErrRoomNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, models.NewRoom("r-delete", "")))
		require.NoError(t, s.AddMember(ctx, "r-delete", models.Member{Username: "alice"}))

		require.NoError(t, s.Delete(ctx, "r-delete"))
		require.NoError(t, s.Delete(ctx, "r-delete"))

		_, err := s.Get(ctx, "r-delete")
		assert.ErrorIs(t, err, room.ErrRoomNotFound)
		_, err = s.Members(ctx, "r-delete")
		assert.ErrorIs(t, err, room.ErrRoomNotFound)
	})
}
