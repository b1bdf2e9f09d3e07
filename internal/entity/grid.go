package entity

import (
	"fmt"

	"github.com/hypergrid-games/hypergrid-backend/internal/apperror"
)

// NoBoard marks the absence of a board constraint.
const NoBoard = -1

var ErrInvalidIndex = fmt.Errorf("invalid board or cell index")

// GridGame is the nine-board game state. Nine sub-boards of nine cells
// each; the outcome of every decided sub-board is recorded in
// SubWinners and the nine outcomes form the meta-board.
type GridGame struct {
	Boards     [9][9]string `json:"boards"`
	SubWinners [9]string    `json:"sub_board_winners"`

	// NextBoard constrains the next move, NoBoard when unconstrained.
	// While CanChoose is set, BoardChooser (the entitled symbol) must
	// pick the next board; exactly one of the two modes holds.
	NextBoard    int    `json:"next_board"`
	CanChoose    bool   `json:"can_choose_board"`
	BoardChooser string `json:"board_chooser,omitempty"`

	Turn   string `json:"player_turn"`
	Status string `json:"status"`
	Winner string `json:"winner,omitempty"`
}

func NewGridGame() *GridGame {
	return &GridGame{
		NextBoard: NoBoard,
		Turn:      MarkX,
		Status:    StatusWaiting,
	}
}

// Start begins play on an empty board. X moves first and gets to pick
// its own board.
func (that *GridGame) Start() {
	*that = *NewGridGame()
	that.Status = StatusPlaying
	that.CanChoose = true
	that.BoardChooser = MarkX
}

// Reset returns to the initial empty waiting state.
func (that *GridGame) Reset() {
	*that = *NewGridGame()
}

func (that *GridGame) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *GridGame) IsPlaying() bool {
	return that.Status == StatusPlaying
}

// MakeMove validates and applies a move by the claimed symbol, then
// resolves the board constraint for the opponent and checks the
// meta-board. A rejected move leaves the state untouched.
func (that *GridGame) MakeMove(mark string, board, cell int) error {
	if err := that.validateMove(mark, board, cell); err != nil {
		return err
	}

	that.Boards[board][cell] = mark
	that.scoreSubBoard(board)

	that.resolveNextBoard(mark, cell)
	that.checkMetaWin()

	return nil
}

func (that *GridGame) validateMove(mark string, board, cell int) error {
	if board < 0 || board > 8 || cell < 0 || cell > 8 {
		return fmt.Errorf("%w: board %d cell %d", ErrInvalidIndex, board, cell)
	}

	switch that.Status {
	case StatusWaiting:
		return apperror.ErrGameIsNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if !that.CanChoose && that.NextBoard != NoBoard && that.NextBoard != board {
		return apperror.ErrWrongBoard
	}

	if that.Boards[board][cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	if that.SubWinners[board] != EmptyCell {
		return apperror.ErrBoardDecided
	}

	return nil
}

// scoreSubBoard records the sub-board outcome once it is decided. An
// already-recorded outcome is never overwritten.
func (that *GridGame) scoreSubBoard(board int) {
	if that.SubWinners[board] != EmptyCell {
		return
	}

	if winner := LineWinner(that.Boards[board]); winner != EmptyCell {
		that.SubWinners[board] = winner
		return
	}

	if boardFull(that.Boards[board]) {
		that.SubWinners[board] = MarkTie
	}
}

// resolveNextBoard applies the capture rule. The cell just played
// designates the target sub-board for the opponent: a decisively won
// target entitles its winner to choose where the opponent is sent, a
// tied or full target frees the next mover, and an open target
// constrains the next mover to it.
func (that *GridGame) resolveNextBoard(mark string, cell int) {
	next := toggleMark(mark)
	that.Turn = next

	switch target := that.SubWinners[cell]; {
	case target == MarkX || target == MarkO:
		that.BoardChooser = target
		that.NextBoard = NoBoard
		that.CanChoose = true
	case target == MarkTie:
		that.BoardChooser = next
		that.NextBoard = NoBoard
		that.CanChoose = true
	default:
		that.BoardChooser = ""
		that.NextBoard = cell
		that.CanChoose = false
	}
}

// SelectBoard exercises a pending free choice: the entitled symbol
// picks an undecided sub-board as the next constrained board.
func (that *GridGame) SelectBoard(mark string, board int) error {
	if board < 0 || board > 8 {
		return fmt.Errorf("%w: board %d", ErrInvalidIndex, board)
	}

	if !that.IsPlaying() {
		return apperror.ErrGameIsNotStarted
	}

	if !that.CanChoose {
		return apperror.ErrNoBoardChoice
	}

	chooser := that.BoardChooser
	if chooser == "" {
		chooser = that.Turn
	}

	if mark != chooser {
		return apperror.ErrNotYourTurn
	}

	if that.SubWinners[board] != EmptyCell {
		return apperror.ErrBoardDecided
	}

	that.NextBoard = board
	that.CanChoose = false
	that.BoardChooser = ""

	return nil
}

// checkMetaWin applies the same line rule to the nine sub-board
// outcomes. A line of ties is not a meta win.
func (that *GridGame) checkMetaWin() {
	if winner := LineWinner(that.SubWinners); winner == MarkX || winner == MarkO {
		that.Status = StatusFinished
		that.Winner = winner
		return
	}

	for _, outcome := range that.SubWinners {
		if outcome == EmptyCell {
			return
		}
	}

	that.Status = StatusFinished
	that.Winner = MarkTie
}
