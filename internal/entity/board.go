package entity

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	MarkX   = "X"
	MarkO   = "O"
	MarkTie = "tie"

	EmptyCell = ""
)

// WinCombos are the eight canonical three-in-a-row triples over a 3x3
// board laid out as nine cells: rows, columns, diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// LineWinner returns the mark holding a full line, or EmptyCell.
// It is applied both to raw cell marks and to the nine sub-board
// outcomes of the meta-board; callers treat MarkTie results as no win.
func LineWinner(cells [9]string) string {
	for _, combo := range WinCombos {
		a, b, c := cells[combo[0]], cells[combo[1]], cells[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	return EmptyCell
}

func boardFull(cells [9]string) bool {
	for _, cell := range cells {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func toggleMark(mark string) string {
	if mark == MarkX {
		return MarkO
	}
	return MarkX
}
