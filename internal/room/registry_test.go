package room

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergrid-games/hypergrid-backend/internal/apperror"
	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
)

type archiveStub struct {
	records []*entity.MatchRecord
}

func (that *archiveStub) Save(_ context.Context, record *entity.MatchRecord) error {
	that.records = append(that.records, record)
	return nil
}

// lockObservingArchive records whether the registry mutex was
// available at the moment Save ran.
type lockObservingArchive struct {
	registry    *Registry
	saved       bool
	lockWasFree bool
}

func (that *lockObservingArchive) Save(_ context.Context, _ *entity.MatchRecord) error {
	that.saved = true
	if that.registry.mutex.TryLock() {
		that.lockWasFree = true
		that.registry.mutex.Unlock()
	}
	return nil
}

func newTestRegistry(archive matchArchive) *Registry {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewRegistry(logger, archive)
}

func TestRegistry_JoinLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("The first join creates the room and fixes its kind", func(t *testing.T) {
		// Given: an empty registry
		registry := newTestRegistry(nil)

		// When: a member joins an unknown room id asking for poly
		update, err := registry.Join(ctx, "room-1", KindPoly, member("c1", "p1"))

		// Then: the room exists as a poly room with full state attached
		require.NoError(t, err)
		require.NotNil(t, update.Room)
		assert.Equal(t, KindPoly, update.Room.Kind)
		assert.Equal(t, []string{"c1"}, update.Members)
		assert.NotEmpty(t, update.Game)

		// And: a later join cannot change the kind
		update, err = registry.Join(ctx, "room-1", KindGrid, member("c2", "p2"))
		require.NoError(t, err)
		assert.Equal(t, KindPoly, update.Room.Kind)
	})

	t.Run("A double join still tears down on one departure", func(t *testing.T) {
		// Given: the same connection joined twice
		registry := newTestRegistry(nil)
		_, err := registry.Join(ctx, "room-1", KindGrid, member("c1", "alice"))
		require.NoError(t, err)
		update, err := registry.Join(ctx, "room-1", KindGrid, member("c1", "alice"))
		require.NoError(t, err)

		// Then: the membership holds a single seat
		assert.Equal(t, []string{"c1"}, update.Members)
		require.Len(t, update.Room.Players, 1)
		assert.True(t, update.Room.Players[0].Host)

		// And: one leave destroys the room
		update, err = registry.Leave(ctx, "room-1", "c1")
		require.NoError(t, err)
		assert.Nil(t, update.Room)
		assert.Empty(t, update.Members)
		_, err = registry.Leave(ctx, "room-1", "c1")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("An unknown kind falls back to grid", func(t *testing.T) {
		registry := newTestRegistry(nil)

		update, err := registry.Join(ctx, "room-1", "chess", member("c1", "p1"))

		require.NoError(t, err)
		assert.Equal(t, KindGrid, update.Room.Kind)
	})

	t.Run("The last departure tears the room down", func(t *testing.T) {
		// Given: a room of two
		registry := newTestRegistry(nil)
		_, err := registry.Join(ctx, "room-1", KindGrid, member("c1", "p1"))
		require.NoError(t, err)
		_, err = registry.Join(ctx, "room-1", KindGrid, member("c2", "p2"))
		require.NoError(t, err)

		// When: both members leave
		update, err := registry.Leave(ctx, "room-1", "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c2"}, update.Members)

		update, err = registry.Leave(ctx, "room-1", "c2")
		require.NoError(t, err)

		// Then: the final update carries no members and the room is gone
		assert.Empty(t, update.Members)
		_, err = registry.StartGame(ctx, "room-1", "c2")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Leaving an unknown room or as an unknown member fails", func(t *testing.T) {
		registry := newTestRegistry(nil)
		_, err := registry.Leave(ctx, "room-1", "c1")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)

		_, err = registry.Join(ctx, "room-1", KindGrid, member("c1", "p1"))
		require.NoError(t, err)

		_, err = registry.Leave(ctx, "room-1", "ghost")
		require.ErrorIs(t, err, apperror.ErrMemberNotFound)
	})
}

func TestRegistry_GameFlow(t *testing.T) {
	ctx := context.Background()

	// startedGridRegistry joins two members, assigns c1 X and c2 O and
	// starts the game.
	startedGridRegistry := func(t *testing.T, archive matchArchive) *Registry {
		t.Helper()

		registry := newTestRegistry(archive)
		_, err := registry.Join(ctx, "room-1", KindGrid, member("c1", "p1"))
		require.NoError(t, err)
		_, err = registry.Join(ctx, "room-1", KindGrid, member("c2", "p2"))
		require.NoError(t, err)

		_, err = registry.AssignRole(ctx, "room-1", "c1", "c1", entity.MarkX)
		require.NoError(t, err)
		_, err = registry.AssignRole(ctx, "room-1", "c1", "c2", entity.MarkO)
		require.NoError(t, err)

		_, err = registry.StartGame(ctx, "room-1", "c1")
		require.NoError(t, err)

		return registry
	}

	t.Run("Accepted intents return a fresh game snapshot", func(t *testing.T) {
		// Given: a started grid game
		registry := startedGridRegistry(t, nil)

		// When: X picks a board and moves
		_, err := registry.SelectBoard(ctx, "room-1", "c1", 0)
		require.NoError(t, err)
		update, err := registry.MakeMove(ctx, "room-1", "c1", 0, 4)

		// Then: the update carries the members and the marshaled state
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, update.Members)
		assert.Contains(t, string(update.Game), `"next_board":4`)
	})

	t.Run("Rejected intents return an error and no update", func(t *testing.T) {
		// Given: a started grid game, X to pick
		registry := startedGridRegistry(t, nil)

		// When: O tries to pick the board
		update, err := registry.SelectBoard(ctx, "room-1", "c2", 0)

		// Then: nothing to broadcast
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Nil(t, update)
	})

	t.Run("A full poly turn runs through the registry", func(t *testing.T) {
		// Given: a started property game
		registry := newTestRegistry(nil)
		_, err := registry.Join(ctx, "room-1", KindPoly, member("c1", "p1"))
		require.NoError(t, err)
		_, err = registry.Join(ctx, "room-1", KindPoly, member("c2", "p2"))
		require.NoError(t, err)
		_, err = registry.StartGame(ctx, "room-1", "c1")
		require.NoError(t, err)

		// When: the seated host rolls
		update, err := registry.RollDice(ctx, "room-1", "c1")

		// Then: the landing decision is in the snapshot
		require.NoError(t, err)
		assert.Contains(t, string(update.Game), `"last_roll"`)

		// And: the other seat cannot roll out of turn
		_, err = registry.RollDice(ctx, "room-1", "c2")
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})
}

func TestRegistry_Archive(t *testing.T) {
	ctx := context.Background()

	finishGrid := func(t *testing.T, registry *Registry) {
		t.Helper()

		// bring the game one move from a meta win for X
		game := registry.rooms["room-1"].grid
		game.SubWinners[0] = entity.MarkX
		game.SubWinners[1] = entity.MarkX
		game.Boards[2][0] = entity.MarkX
		game.Boards[2][1] = entity.MarkX

		_, err := registry.SelectBoard(ctx, "room-1", "c1", 2)
		require.NoError(t, err)
		_, err = registry.MakeMove(ctx, "room-1", "c1", 2, 2)
		require.NoError(t, err)
	}

	startGrid := func(t *testing.T, registry *Registry) {
		t.Helper()

		for _, step := range [][2]string{{"c1", "p1"}, {"c2", "p2"}} {
			_, err := registry.Join(ctx, "room-1", KindGrid, member(step[0], step[1]))
			require.NoError(t, err)
		}
		_, err := registry.AssignRole(ctx, "room-1", "c1", "c1", entity.MarkX)
		require.NoError(t, err)
		_, err = registry.AssignRole(ctx, "room-1", "c1", "c2", entity.MarkO)
		require.NoError(t, err)
		_, err = registry.StartGame(ctx, "room-1", "c1")
		require.NoError(t, err)
	}

	t.Run("A finished game is archived exactly once", func(t *testing.T) {
		// Given: a started game with an archive attached
		archive := &archiveStub{}
		registry := newTestRegistry(archive)
		startGrid(t, registry)

		// When: X wins the meta-board
		finishGrid(t, registry)

		// Then: one record lands in the archive
		require.Len(t, archive.records, 1)
		record := archive.records[0]
		assert.Equal(t, "room-1", record.RoomID)
		assert.Equal(t, KindGrid, record.Kind)
		assert.Equal(t, entity.MarkX, record.Winner)
		assert.False(t, record.FinishedAt.IsZero())

		// And: a reset re-arms archiving for the next match
		_, err := registry.ResetGame(ctx, "room-1", "c1")
		require.NoError(t, err)
		assert.Len(t, archive.records, 1)

		_, err = registry.StartGame(ctx, "room-1", "c1")
		require.NoError(t, err)
		finishGrid(t, registry)
		assert.Len(t, archive.records, 2)
	})

	t.Run("The archive write runs outside the registry lock", func(t *testing.T) {
		// Given: an archive that checks lock availability while saving
		archive := &lockObservingArchive{}
		registry := newTestRegistry(archive)
		archive.registry = registry
		startGrid(t, registry)

		// When: the game finishes
		finishGrid(t, registry)

		// Then: the save ran with the registry free for other rooms
		require.True(t, archive.saved)
		assert.True(t, archive.lockWasFree)
	})

	t.Run("A nil archive disables archiving", func(t *testing.T) {
		// Given: no archive configured
		registry := newTestRegistry(nil)
		startGrid(t, registry)

		// When / Then: finishing the game is still fine
		finishGrid(t, registry)
	})
}
