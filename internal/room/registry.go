package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/hypergrid-games/hypergrid-backend/internal/apperror"
	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
)

type matchArchive interface {
	Save(ctx context.Context, record *entity.MatchRecord) error
}

// Registry owns every live room. Each intent runs to completion under
// the registry lock: state read, validated, mutated and snapshotted
// before the next intent is admitted, so room state never interleaves.
type Registry struct {
	logger  *slog.Logger
	matches matchArchive

	mutex sync.Mutex
	rooms map[string]*Room
}

// Update carries everything the synchronization layer needs to
// multicast after an accepted intent. Snapshots are built under the
// registry lock so later intents cannot bleed into them.
type Update struct {
	RoomID  string
	Members []string
	Room    *Snapshot
	Game    json.RawMessage
}

// NewRegistry - matches may be nil, which disables match archiving.
func NewRegistry(logger *slog.Logger, matches matchArchive) *Registry {
	return &Registry{
		logger:  logger,
		matches: matches,
		rooms:   make(map[string]*Room),
	}
}

// Join adds the member to the room, creating it first if the id is
// unknown. The creating join fixes the room's game kind for life.
func (that *Registry) Join(ctx context.Context, roomID, kind string, member *entity.Member) (*Update, error) {
	that.mutex.Lock()
	defer that.mutex.Unlock()

	existing, ok := that.rooms[roomID]
	if !ok {
		existing = newRoom(roomID, kind)
		that.rooms[roomID] = existing
		that.logger.Info("room created", "roomID", roomID, "kind", existing.Kind)
	}

	existing.addMember(member)

	return that.fullUpdate(existing)
}

// Leave removes the member; the last departure tears the room down.
func (that *Registry) Leave(_ context.Context, roomID, memberID string) (*Update, error) {
	that.mutex.Lock()
	defer that.mutex.Unlock()

	existing, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if !existing.removeMember(memberID) {
		return nil, apperror.ErrMemberNotFound
	}

	if existing.isEmpty() {
		delete(that.rooms, roomID)
		that.logger.Info("room destroyed", "roomID", roomID)

		return &Update{RoomID: roomID}, nil
	}

	return &Update{
		RoomID:  roomID,
		Members: existing.memberIDs(),
		Room:    existing.Snapshot(),
	}, nil
}

// AssignRole - host binds or clears a role slot; membership snapshot
// changes, game state does not.
func (that *Registry) AssignRole(_ context.Context, roomID, callerID, targetID, role string) (*Update, error) {
	that.mutex.Lock()
	defer that.mutex.Unlock()

	existing, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if err := existing.AssignRole(callerID, targetID, role); err != nil {
		return nil, err
	}

	return &Update{
		RoomID:  roomID,
		Members: existing.memberIDs(),
		Room:    existing.Snapshot(),
	}, nil
}

func (that *Registry) StartGame(ctx context.Context, roomID, callerID string) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.StartGame(callerID) })
}

func (that *Registry) ResetGame(ctx context.Context, roomID, callerID string) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.ResetGame(callerID) })
}

func (that *Registry) MakeMove(ctx context.Context, roomID, callerID string, board, cell int) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.MakeMove(callerID, board, cell) })
}

func (that *Registry) SelectBoard(ctx context.Context, roomID, callerID string, board int) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.SelectBoard(callerID, board) })
}

func (that *Registry) RollDice(ctx context.Context, roomID, callerID string) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.RollDice(callerID) })
}

func (that *Registry) ConfirmPurchase(ctx context.Context, roomID, callerID string) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.ConfirmPurchase(callerID) })
}

func (that *Registry) ConfirmUpgrade(ctx context.Context, roomID, callerID string) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.ConfirmUpgrade(callerID) })
}

func (that *Registry) DrawChance(ctx context.Context, roomID, callerID string) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.DrawChance(callerID) })
}

func (that *Registry) SkipAction(ctx context.Context, roomID, callerID string) (*Update, error) {
	return that.gameOp(ctx, roomID, func(r *Room) error { return r.SkipAction(callerID) })
}

// gameOp runs a game intent to completion and snapshots the resulting
// state for broadcast. The archive write is I/O and runs after the
// registry lock is released.
func (that *Registry) gameOp(ctx context.Context, roomID string, op func(*Room) error) (*Update, error) {
	update, record, err := that.applyGameOp(roomID, op)
	if err != nil {
		return nil, err
	}

	if record != nil {
		that.saveRecord(ctx, record)
	}

	return update, nil
}

func (that *Registry) applyGameOp(roomID string, op func(*Room) error) (*Update, *entity.MatchRecord, error) {
	that.mutex.Lock()
	defer that.mutex.Unlock()

	existing, ok := that.rooms[roomID]
	if !ok {
		return nil, nil, apperror.ErrRoomNotFound
	}

	if err := op(existing); err != nil {
		return nil, nil, err
	}

	state, err := existing.gameStateJSON()
	if err != nil {
		return nil, nil, err
	}

	update := &Update{
		RoomID:  roomID,
		Members: existing.memberIDs(),
		Game:    state,
	}

	return update, that.takeFinishedRecord(existing), nil
}

func (that *Registry) fullUpdate(existing *Room) (*Update, error) {
	state, err := existing.gameStateJSON()
	if err != nil {
		return nil, err
	}

	return &Update{
		RoomID:  existing.ID,
		Members: existing.memberIDs(),
		Room:    existing.Snapshot(),
		Game:    state,
	}, nil
}

// takeFinishedRecord claims the one archive record a finished game
// yields. Must run under the registry lock; the record itself is a
// complete copy, safe to persist without it.
func (that *Registry) takeFinishedRecord(existing *Room) *entity.MatchRecord {
	if that.matches == nil || existing.archived || !existing.gameFinished() {
		return nil
	}

	existing.archived = true

	return existing.matchRecord()
}

func (that *Registry) saveRecord(ctx context.Context, record *entity.MatchRecord) {
	if err := that.matches.Save(ctx, record); err != nil {
		that.logger.Error("failed to archive match", "roomID", record.RoomID, "error", err)
		return
	}

	that.logger.Info("match archived", "roomID", record.RoomID, "winner", record.Winner)
}
