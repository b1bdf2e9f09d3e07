package room

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hypergrid-games/hypergrid-backend/internal/apperror"
	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
)

const (
	KindGrid = "grid"
	KindPoly = "poly"

	// PlayerCapacity caps active players per room; later joiners become
	// spectators.
	PlayerCapacity = 6
)

// Room is one ephemeral session: ordered membership, a host, the role
// assignment table and a single game state of the room's kind. All
// methods are invoked under the owning Registry's lock.
type Room struct {
	ID   string
	Kind string

	players     []*entity.Member
	spectators  []*entity.Member
	hostID      string
	assignments map[string]string
	seats       map[string]int

	grid *entity.GridGame
	poly *entity.PolyGame

	archived bool
}

// Snapshot is the membership view broadcast to every room member.
type Snapshot struct {
	Kind        string            `json:"kind"`
	Players     []entity.Member   `json:"players"`
	Spectators  []entity.Member   `json:"spectators"`
	Host        string            `json:"host,omitempty"`
	Assignments map[string]string `json:"assignments"`
}

func newRoom(id, kind string) *Room {
	room := &Room{
		ID:          id,
		Kind:        kind,
		assignments: make(map[string]string),
		seats:       make(map[string]int),
	}

	if kind == KindPoly {
		room.poly = entity.NewPolyGame()
	} else {
		room.Kind = KindGrid
		room.grid = entity.NewGridGame()
	}

	return room
}

// addMember appends in join order, keyed by connection id: a repeated
// join from the same connection updates the existing seat instead of
// adding a second one. The first member hosts; joiners beyond capacity
// watch as spectators.
func (that *Room) addMember(member *entity.Member) {
	if existing := that.memberByID(member.ID); existing != nil {
		existing.Name = member.Name
		*member = *existing
		return
	}

	if len(that.players) == 0 && len(that.spectators) == 0 {
		member.Host = true
		that.hostID = member.ID
	}

	if len(that.players) < PlayerCapacity {
		that.players = append(that.players, member)
		return
	}

	member.Spectator = true
	that.spectators = append(that.spectators, member)
}

// removeMember drops the member, clears any role assigned to them and
// promotes the earliest-joined remaining player when the host leaves.
func (that *Room) removeMember(id string) bool {
	removed := that.removeFrom(&that.players, id)
	if !removed {
		removed = that.removeFrom(&that.spectators, id)
	}

	if !removed {
		return false
	}

	if that.hostID == id {
		that.hostID = ""
		if len(that.players) > 0 {
			that.players[0].Host = true
			that.hostID = that.players[0].ID
		}
	}

	return true
}

func (that *Room) removeFrom(members *[]*entity.Member, id string) bool {
	for i, member := range *members {
		if member.ID != id {
			continue
		}

		*members = append((*members)[:i], (*members)[i+1:]...)
		that.clearAssignmentsOf(member, id)

		return true
	}

	return false
}

// clearAssignmentsOf releases role slots held by the departing member.
// Display names are not unique, so a slot is released only when the
// name resolves to the departing connection first.
func (that *Room) clearAssignmentsOf(member *entity.Member, id string) {
	for symbol, name := range that.assignments {
		if name != member.Name {
			continue
		}

		resolved := that.playerByName(name)
		if resolved == nil || resolved.ID == id {
			delete(that.assignments, symbol)
		}
	}
}

func (that *Room) playerByName(name string) *entity.Member {
	for _, player := range that.players {
		if player.Name == name {
			return player
		}
	}

	return nil
}

func (that *Room) memberByID(id string) *entity.Member {
	for _, player := range that.players {
		if player.ID == id {
			return player
		}
	}

	for _, spectator := range that.spectators {
		if spectator.ID == id {
			return spectator
		}
	}

	return nil
}

func (that *Room) isEmpty() bool {
	return len(that.players) == 0 && len(that.spectators) == 0
}

func (that *Room) confirmHost(callerID string) error {
	if that.hostID == "" || that.hostID != callerID {
		return apperror.ErrNotHost
	}

	return nil
}

// AssignRole binds a grid symbol slot to a player's display name, or
// clears it. Host-gated, and only while the game is waiting.
func (that *Room) AssignRole(callerID, targetID, role string) error {
	if err := that.confirmHost(callerID); err != nil {
		return err
	}

	if that.Kind != KindGrid {
		return apperror.ErrWrongRoomKind
	}

	if that.grid.Status != entity.StatusWaiting {
		return apperror.ErrGameInProgress
	}

	target := that.memberByID(targetID)
	if target == nil || target.Spectator {
		return apperror.ErrMemberNotFound
	}

	for symbol, name := range that.assignments {
		if name == target.Name {
			delete(that.assignments, symbol)
		}
	}

	if role == "clear" {
		return nil
	}

	if role != entity.MarkX && role != entity.MarkO {
		return fmt.Errorf("%w: unknown role %q", apperror.ErrMemberNotFound, role)
	}

	that.assignments[role] = target.Name

	return nil
}

// StartGame begins play. Grid rooms need both symbol slots assigned;
// poly rooms seat every current player in join order.
func (that *Room) StartGame(callerID string) error {
	if err := that.confirmHost(callerID); err != nil {
		return err
	}

	if that.Kind == KindGrid {
		if that.grid.IsPlaying() {
			return apperror.ErrGameInProgress
		}

		if that.assignments[entity.MarkX] == "" || that.assignments[entity.MarkO] == "" {
			return apperror.ErrRolesNotAssigned
		}

		that.grid.Start()
		that.archived = false

		return nil
	}

	if that.poly.IsPlaying() {
		return apperror.ErrGameInProgress
	}

	names := make([]string, 0, len(that.players))
	seats := make(map[string]int, len(that.players))
	for i, player := range that.players {
		names = append(names, player.Name)
		seats[player.ID] = i
	}

	if err := that.poly.Start(names); err != nil {
		return err
	}

	that.seats = seats
	that.archived = false

	return nil
}

// ResetGame returns the room's game to its initial waiting state,
// independent of the assignment table.
func (that *Room) ResetGame(callerID string) error {
	if err := that.confirmHost(callerID); err != nil {
		return err
	}

	if that.Kind == KindGrid {
		that.grid.Reset()
	} else {
		that.poly.Reset()
		that.seats = make(map[string]int)
	}

	that.archived = false

	return nil
}

// markOf resolves a connection to its grid symbol through the
// assignment table, EmptyCell when the caller holds no slot.
func (that *Room) markOf(callerID string) string {
	member := that.memberByID(callerID)
	if member == nil || member.Spectator {
		return entity.EmptyCell
	}

	for _, symbol := range [2]string{entity.MarkX, entity.MarkO} {
		if that.assignments[symbol] == member.Name {
			return symbol
		}
	}

	return entity.EmptyCell
}

func (that *Room) MakeMove(callerID string, board, cell int) error {
	if that.Kind != KindGrid {
		return apperror.ErrWrongRoomKind
	}

	mark := that.markOf(callerID)
	if mark == entity.EmptyCell {
		return apperror.ErrNotAPlayer
	}

	return that.grid.MakeMove(mark, board, cell)
}

func (that *Room) SelectBoard(callerID string, board int) error {
	if that.Kind != KindGrid {
		return apperror.ErrWrongRoomKind
	}

	mark := that.markOf(callerID)
	if mark == entity.EmptyCell {
		return apperror.ErrNotAPlayer
	}

	return that.grid.SelectBoard(mark, board)
}

// seatOf resolves a connection to its poly seat. Seats are fixed when
// the game starts; a member joining mid-game holds none.
func (that *Room) seatOf(callerID string) (int, error) {
	seat, ok := that.seats[callerID]
	if !ok {
		return 0, apperror.ErrNotAPlayer
	}

	return seat, nil
}

func (that *Room) RollDice(callerID string) error {
	return that.polyOp(callerID, (*entity.PolyGame).Roll)
}

func (that *Room) ConfirmPurchase(callerID string) error {
	return that.polyOp(callerID, (*entity.PolyGame).ConfirmPurchase)
}

func (that *Room) ConfirmUpgrade(callerID string) error {
	return that.polyOp(callerID, (*entity.PolyGame).ConfirmUpgrade)
}

func (that *Room) DrawChance(callerID string) error {
	return that.polyOp(callerID, (*entity.PolyGame).DrawChance)
}

func (that *Room) SkipAction(callerID string) error {
	return that.polyOp(callerID, (*entity.PolyGame).SkipAction)
}

func (that *Room) polyOp(callerID string, op func(*entity.PolyGame, int) error) error {
	if that.Kind != KindPoly {
		return apperror.ErrWrongRoomKind
	}

	seat, err := that.seatOf(callerID)
	if err != nil {
		return err
	}

	return op(that.poly, seat)
}

// Snapshot copies the membership view for broadcast.
func (that *Room) Snapshot() *Snapshot {
	snapshot := &Snapshot{
		Kind:        that.Kind,
		Players:     make([]entity.Member, 0, len(that.players)),
		Spectators:  make([]entity.Member, 0, len(that.spectators)),
		Assignments: make(map[string]string, len(that.assignments)),
	}

	for _, player := range that.players {
		snapshot.Players = append(snapshot.Players, *player)
		if player.ID == that.hostID {
			snapshot.Host = player.Name
		}
	}

	for _, spectator := range that.spectators {
		snapshot.Spectators = append(snapshot.Spectators, *spectator)
	}

	for symbol, name := range that.assignments {
		snapshot.Assignments[symbol] = name
	}

	return snapshot
}

// gameStateJSON marshals the full game snapshot while the registry
// lock still guards the state.
func (that *Room) gameStateJSON() (json.RawMessage, error) {
	var state any = that.grid
	if that.Kind == KindPoly {
		state = that.poly
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game state: %w", err)
	}

	return payload, nil
}

func (that *Room) gameFinished() bool {
	if that.Kind == KindPoly {
		return that.poly.IsFinished()
	}

	return that.grid.IsFinished()
}

func (that *Room) matchRecord() *entity.MatchRecord {
	record := &entity.MatchRecord{
		RoomID:     that.ID,
		Kind:       that.Kind,
		FinishedAt: time.Now().UTC(),
	}

	if that.Kind == KindPoly {
		record.Rankings = that.poly.Rankings
		if len(that.poly.Rankings) > 0 {
			record.Winner = that.poly.Rankings[0].Name
		}
		return record
	}

	record.Winner = that.grid.Winner

	return record
}

func (that *Room) memberIDs() []string {
	ids := make([]string, 0, len(that.players)+len(that.spectators))
	for _, player := range that.players {
		ids = append(ids, player.ID)
	}
	for _, spectator := range that.spectators {
		ids = append(ids, spectator.ID)
	}

	return ids
}
