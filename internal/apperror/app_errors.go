package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrWrongBoard       = errors.New("move is constrained to another board")
	ErrBoardDecided     = errors.New("sub-board is already decided")
	ErrNoBoardChoice    = errors.New("no board choice is pending")

	ErrNoPendingAction    = errors.New("no action is pending")
	ErrWrongPendingAction = errors.New("a different action is pending")

	ErrNotHost          = errors.New("caller is not the room host")
	ErrGameInProgress   = errors.New("game is in progress")
	ErrWrongRoomKind    = errors.New("operation does not apply to this room's game")
	ErrNotAPlayer       = errors.New("caller is not an active player")
	ErrRoomNotFound     = errors.New("room not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrRolesNotAssigned = errors.New("both role slots must be assigned")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
)
