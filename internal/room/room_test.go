package room

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergrid-games/hypergrid-backend/internal/apperror"
	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
)

func member(id, name string) *entity.Member {
	return &entity.Member{ID: id, Name: name}
}

// gridRoomWithPlayers seats n members c1..cn named p1..pn, c1 hosting.
func gridRoomWithPlayers(t *testing.T, n int) *Room {
	t.Helper()

	room := newRoom("room-1", KindGrid)
	for i := 1; i <= n; i++ {
		room.addMember(member(fmt.Sprintf("c%d", i), fmt.Sprintf("p%d", i)))
	}

	return room
}

func TestRoom_Membership(t *testing.T) {
	t.Run("The first joiner hosts and order is preserved", func(t *testing.T) {
		// Given / When: three members join in order
		room := gridRoomWithPlayers(t, 3)

		// Then: the first joiner hosts and the join order stands
		assert.Equal(t, "c1", room.hostID)
		assert.True(t, room.players[0].Host)
		assert.Equal(t, []string{"c1", "c2", "c3"}, room.memberIDs())
	})

	t.Run("Joiners beyond capacity become spectators", func(t *testing.T) {
		// Given: a full room
		room := gridRoomWithPlayers(t, PlayerCapacity)

		// When: one more member joins
		late := member("c7", "p7")
		room.addMember(late)

		// Then: the late joiner watches as a spectator
		assert.True(t, late.Spectator)
		assert.Len(t, room.players, PlayerCapacity)
		assert.Len(t, room.spectators, 1)
	})

	t.Run("The earliest remaining player inherits the host", func(t *testing.T) {
		// Given: a room of three
		room := gridRoomWithPlayers(t, 3)

		// When: the host leaves
		require.True(t, room.removeMember("c1"))

		// Then: the earliest-joined remaining player hosts
		assert.Equal(t, "c2", room.hostID)
		assert.True(t, room.players[0].Host)
	})

	t.Run("A departing player releases their role slot", func(t *testing.T) {
		// Given: p2 assigned the X slot
		room := gridRoomWithPlayers(t, 3)
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkX))

		// When: p2 leaves
		require.True(t, room.removeMember("c2"))

		// Then: the slot is free again
		assert.Empty(t, room.assignments[entity.MarkX])
	})

	t.Run("A duplicate display name keeps the slot of the remaining holder", func(t *testing.T) {
		// Given: two members sharing a display name, the earlier one
		// holding the X slot
		room := newRoom("room-1", KindGrid)
		room.addMember(member("c1", "alice"))
		room.addMember(member("c2", "alice"))
		require.NoError(t, room.AssignRole("c1", "c1", entity.MarkX))

		// When: the later namesake leaves
		require.True(t, room.removeMember("c2"))

		// Then: the slot still belongs to the remaining alice
		assert.Equal(t, "alice", room.assignments[entity.MarkX])
	})

	t.Run("A repeated join from the same connection keeps one seat", func(t *testing.T) {
		// Given: a hosted room of two
		room := gridRoomWithPlayers(t, 2)

		// When: the host's connection joins again under a new name
		again := member("c1", "renamed")
		room.addMember(again)

		// Then: the seat is updated in place, not duplicated
		assert.Len(t, room.players, 2)
		assert.Equal(t, "c1", room.hostID)
		assert.Equal(t, "renamed", room.players[0].Name)
		assert.True(t, again.Host)

		// And: one departure is enough to free the seat
		require.True(t, room.removeMember("c1"))
		assert.Nil(t, room.memberByID("c1"))
	})

	t.Run("Removing an unknown member reports false", func(t *testing.T) {
		room := gridRoomWithPlayers(t, 2)

		assert.False(t, room.removeMember("ghost"))
	})
}

func TestRoom_AssignRole(t *testing.T) {
	t.Run("Only the host assigns roles", func(t *testing.T) {
		room := gridRoomWithPlayers(t, 2)

		err := room.AssignRole("c2", "c2", entity.MarkX)

		require.ErrorIs(t, err, apperror.ErrNotHost)
		assert.Empty(t, room.assignments)
	})

	t.Run("Reassigning a member moves their slot", func(t *testing.T) {
		// Given: p2 holding X
		room := gridRoomWithPlayers(t, 2)
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkX))

		// When: the host hands p2 the O slot instead
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkO))

		// Then: X is free and O is held
		assert.Empty(t, room.assignments[entity.MarkX])
		assert.Equal(t, "p2", room.assignments[entity.MarkO])
	})

	t.Run("Clearing releases the member's slot", func(t *testing.T) {
		room := gridRoomWithPlayers(t, 2)
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkX))

		require.NoError(t, room.AssignRole("c1", "c2", "clear"))

		assert.Empty(t, room.assignments)
	})

	t.Run("Spectators cannot hold a slot", func(t *testing.T) {
		room := gridRoomWithPlayers(t, PlayerCapacity)
		room.addMember(member("c7", "p7"))

		err := room.AssignRole("c1", "c7", entity.MarkX)

		require.ErrorIs(t, err, apperror.ErrMemberNotFound)
	})

	t.Run("Rejected once the game is running", func(t *testing.T) {
		// Given: a started game
		room := gridRoomWithPlayers(t, 2)
		require.NoError(t, room.AssignRole("c1", "c1", entity.MarkX))
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkO))
		require.NoError(t, room.StartGame("c1"))

		// When: the host tries to reassign
		err := room.AssignRole("c1", "c2", entity.MarkX)

		// Then: the table is locked until a reset
		require.ErrorIs(t, err, apperror.ErrGameInProgress)
	})

	t.Run("Rejected in a property room", func(t *testing.T) {
		room := newRoom("room-1", KindPoly)
		room.addMember(member("c1", "p1"))

		err := room.AssignRole("c1", "c1", entity.MarkX)

		require.ErrorIs(t, err, apperror.ErrWrongRoomKind)
	})
}

func TestRoom_StartGame(t *testing.T) {
	t.Run("A grid game needs both slots assigned", func(t *testing.T) {
		// Given: only X assigned
		room := gridRoomWithPlayers(t, 2)
		require.NoError(t, room.AssignRole("c1", "c1", entity.MarkX))

		// When: the host starts
		err := room.StartGame("c1")

		// Then: the start is rejected
		require.ErrorIs(t, err, apperror.ErrRolesNotAssigned)
		assert.Equal(t, entity.StatusWaiting, room.grid.Status)
	})

	t.Run("Only the host starts", func(t *testing.T) {
		room := gridRoomWithPlayers(t, 2)
		require.NoError(t, room.AssignRole("c1", "c1", entity.MarkX))
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkO))

		require.ErrorIs(t, room.StartGame("c2"), apperror.ErrNotHost)
	})

	t.Run("Starting twice is rejected", func(t *testing.T) {
		room := gridRoomWithPlayers(t, 2)
		require.NoError(t, room.AssignRole("c1", "c1", entity.MarkX))
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkO))
		require.NoError(t, room.StartGame("c1"))

		require.ErrorIs(t, room.StartGame("c1"), apperror.ErrGameInProgress)
	})

	t.Run("A property game seats players in join order", func(t *testing.T) {
		// Given: three joined members
		room := newRoom("room-1", KindPoly)
		room.addMember(member("c1", "p1"))
		room.addMember(member("c2", "p2"))
		room.addMember(member("c3", "p3"))

		// When: the host starts
		require.NoError(t, room.StartGame("c1"))

		// Then: seats follow join order and the table is live
		assert.Equal(t, 0, room.seats["c1"])
		assert.Equal(t, 1, room.seats["c2"])
		assert.Equal(t, 2, room.seats["c3"])
		assert.Equal(t, entity.StatusPlaying, room.poly.Status)
		assert.Equal(t, "p1", room.poly.Players[0].Name)
	})

	t.Run("A lone member cannot start a property game", func(t *testing.T) {
		room := newRoom("room-1", KindPoly)
		room.addMember(member("c1", "p1"))

		require.ErrorIs(t, room.StartGame("c1"), apperror.ErrNotEnoughPlayers)
	})

	t.Run("A mid-game joiner holds no seat", func(t *testing.T) {
		// Given: a running property game
		room := newRoom("room-1", KindPoly)
		room.addMember(member("c1", "p1"))
		room.addMember(member("c2", "p2"))
		require.NoError(t, room.StartGame("c1"))

		// When: a third member joins and tries to roll
		room.addMember(member("c3", "p3"))
		err := room.RollDice("c3")

		// Then: the intent is rejected
		require.ErrorIs(t, err, apperror.ErrNotAPlayer)
	})
}

func TestRoom_GridIntents(t *testing.T) {
	startedGridRoom := func(t *testing.T) *Room {
		t.Helper()

		room := gridRoomWithPlayers(t, 3)
		require.NoError(t, room.AssignRole("c1", "c1", entity.MarkX))
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkO))
		require.NoError(t, room.StartGame("c1"))

		return room
	}

	t.Run("Assigned players move through their symbol", func(t *testing.T) {
		// Given: a started game, X entitled to pick
		room := startedGridRoom(t)

		// When: the X holder picks a board and moves
		require.NoError(t, room.SelectBoard("c1", 0))
		require.NoError(t, room.MakeMove("c1", 0, 4))

		// Then: the mark lands and the turn passes
		assert.Equal(t, entity.MarkX, room.grid.Boards[0][4])
		assert.Equal(t, entity.MarkO, room.grid.Turn)
	})

	t.Run("Unassigned members cannot move", func(t *testing.T) {
		room := startedGridRoom(t)
		require.NoError(t, room.SelectBoard("c1", 0))

		require.ErrorIs(t, room.MakeMove("c3", 0, 4), apperror.ErrNotAPlayer)
	})

	t.Run("Grid intents are rejected in a property room", func(t *testing.T) {
		room := newRoom("room-1", KindPoly)
		room.addMember(member("c1", "p1"))

		require.ErrorIs(t, room.MakeMove("c1", 0, 0), apperror.ErrWrongRoomKind)
		require.ErrorIs(t, room.SelectBoard("c1", 0), apperror.ErrWrongRoomKind)
	})

	t.Run("Property intents are rejected in a grid room", func(t *testing.T) {
		room := startedGridRoom(t)

		require.ErrorIs(t, room.RollDice("c1"), apperror.ErrWrongRoomKind)
		require.ErrorIs(t, room.SkipAction("c1"), apperror.ErrWrongRoomKind)
	})
}

func TestRoom_ResetGame(t *testing.T) {
	t.Run("Reset clears poly seats with the table", func(t *testing.T) {
		// Given: a running property game
		room := newRoom("room-1", KindPoly)
		room.addMember(member("c1", "p1"))
		room.addMember(member("c2", "p2"))
		require.NoError(t, room.StartGame("c1"))

		// When: the host resets
		require.NoError(t, room.ResetGame("c1"))

		// Then: the table waits and nobody is seated
		assert.Equal(t, entity.StatusWaiting, room.poly.Status)
		assert.Empty(t, room.seats)
		require.ErrorIs(t, room.RollDice("c1"), apperror.ErrNotAPlayer)
	})

	t.Run("Reset keeps the grid assignment table", func(t *testing.T) {
		// Given: a started grid game
		room := gridRoomWithPlayers(t, 2)
		require.NoError(t, room.AssignRole("c1", "c1", entity.MarkX))
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkO))
		require.NoError(t, room.StartGame("c1"))

		// When: the host resets
		require.NoError(t, room.ResetGame("c1"))

		// Then: roles survive and the game can start straight away
		assert.Equal(t, "p1", room.assignments[entity.MarkX])
		require.NoError(t, room.StartGame("c1"))
	})

	t.Run("Only the host resets", func(t *testing.T) {
		room := gridRoomWithPlayers(t, 2)

		require.ErrorIs(t, room.ResetGame("c2"), apperror.ErrNotHost)
	})
}

func TestRoom_Snapshot(t *testing.T) {
	t.Run("Snapshot copies membership, host and assignments", func(t *testing.T) {
		// Given: a room with a spectator and an assigned slot
		room := gridRoomWithPlayers(t, PlayerCapacity)
		room.addMember(member("c7", "p7"))
		require.NoError(t, room.AssignRole("c1", "c2", entity.MarkX))

		// When: the broadcast view is taken
		snapshot := room.Snapshot()

		// Then: it mirrors the room
		assert.Equal(t, KindGrid, snapshot.Kind)
		assert.Len(t, snapshot.Players, PlayerCapacity)
		assert.Len(t, snapshot.Spectators, 1)
		assert.Equal(t, "p1", snapshot.Host)
		assert.Equal(t, "p2", snapshot.Assignments[entity.MarkX])

		// And: mutating the copy leaves the room untouched
		snapshot.Assignments[entity.MarkO] = "p3"
		assert.Empty(t, room.assignments[entity.MarkO])
	})
}
