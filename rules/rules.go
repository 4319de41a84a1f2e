// Package rules holds the stateless checks run against a board snapshot:
// move legality, five-in-a-row detection and the double-three restriction
// that applies to the first player (Black).
package rules

import (
	"errors"

	"github.com/wfunc/gomoku/board"
)

// Validation errors. None of them mutate anything and all are safe to show the caller.
var (
	ErrOutOfBounds          = errors.New("coordinate out of bounds")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrCellOccupied         = errors.New("cell already occupied")
	ErrDoubleThreeForbidden = errors.New("double-three is forbidden for the first player")
)

// WinLength is the line length that ends the game.
const WinLength = 5

// exemptLength is the line length that lifts the double-three restriction.
const exemptLength = 4

// RestrictedStone is the colour the double-three rule applies to.
const RestrictedStone = board.Black

// Validate runs the legality checks in order: bounds, turn, occupancy, then the
// double-three restriction for the restricted colour. stone is the mover's colour,
// toMove the colour whose turn it is.
func Validate(b *board.Board, x, y int, stone, toMove board.Stone) error {
	if !board.InBounds(x, y) {
		return ErrOutOfBounds
	}
	if stone != toMove {
		return ErrNotYourTurn
	}
	p := board.Point{X: x, Y: y}
	if !b.IsEmpty(p) {
		return ErrCellOccupied
	}
	if stone == RestrictedStone && IsDoubleThree(b, p, stone) {
		return ErrDoubleThreeForbidden
	}
	return nil
}

// IsWin reports whether the stone at p completes a line of WinLength or more.
func IsWin(b *board.Board, p board.Point, stone board.Stone) bool {
	return b.Stone(p) == stone && b.LongestLine(p, stone) >= WinLength
}

// OpenThrees counts windows of exactly three consecutive stones along one axis
// whose two flanking cells are on the board and empty.
func OpenThrees(b *board.Board, stone board.Stone) int {
	n := 0
	for x := 0; x < board.Size; x++ {
		for y := 0; y < board.Size; y++ {
			start := board.Point{X: x, Y: y}
			if b.Stone(start) != stone {
				continue
			}
			for _, a := range board.Axes {
				if isOpenThreeAt(b, start, a, stone) {
					n++
				}
			}
		}
	}
	return n
}

func isOpenThreeAt(b *board.Board, start board.Point, a board.Axis, stone board.Stone) bool {
	for i := 1; i < 3; i++ {
		if b.Stone(board.Point{X: start.X + a.DX*i, Y: start.Y + a.DY*i}) != stone {
			return false
		}
	}
	before := board.Point{X: start.X - a.DX, Y: start.Y - a.DY}
	after := board.Point{X: start.X + a.DX*3, Y: start.Y + a.DY*3}
	return b.IsEmpty(before) && b.IsEmpty(after)
}

// IsDoubleThree reports whether placing stone at p leaves two or more open threes
// of that colour on the board. A move that also makes a line of four or more is
// exempt. The count is the total after the move, so a pre-existing open three
// plus one new one is already forbidden.
func IsDoubleThree(b *board.Board, p board.Point, stone board.Stone) bool {
	next := *b
	if !next.Place(p, stone) {
		return false
	}
	if next.LongestLine(p, stone) >= exemptLength {
		return false
	}
	return OpenThrees(&next, stone) >= 2
}
