// Package board rebuilds a 15x15 grid from a match's move log and offers the
// occupancy and line-counting primitives the rule checks are built on.
package board

import "github.com/wfunc/gomoku/models"

// Size is the side length of the board.
const Size = 15

// Cells is the number of intersections, i.e. the move count of a full board.
const Cells = Size * Size

// Stone is the content of one cell.
type Stone uint8

const (
	Empty Stone = iota
	Black       // player1, moves on odd move numbers
	White       // player2
)

// Opponent returns the other colour. Empty has no opponent.
func (s Stone) Opponent() Stone {
	switch s {
	case Black:
		return White
	case White:
		return Black
	}
	return Empty
}

type Point struct {
	X int
	Y int
}

// Axis is a unit step along one of the four lines through a cell.
type Axis struct {
	DX int
	DY int
}

// Axes holds horizontal, vertical and the two diagonals.
var Axes = [4]Axis{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// InBounds reports whether (x, y) lies on the board.
func InBounds(x, y int) bool {
	return x >= 0 && x < Size && y >= 0 && y < Size
}

// OccupiedBy returns the points played by playerID.
func OccupiedBy(moves []models.Move, playerID int64) map[Point]struct{} {
	out := make(map[Point]struct{})
	for _, m := range moves {
		if m.PlayerID == playerID {
			out[Point{m.X, m.Y}] = struct{}{}
		}
	}
	return out
}

// AllOccupied returns every played point.
func AllOccupied(moves []models.Move) map[Point]struct{} {
	out := make(map[Point]struct{}, len(moves))
	for _, m := range moves {
		out[Point{m.X, m.Y}] = struct{}{}
	}
	return out
}

// Board is a value-type grid; copying a Board copies its cells.
type Board struct {
	cells [Size][Size]Stone
	count int
}

// New replays moves in order. Stones are coloured by owner: player1ID plays Black,
// anyone else White. Moves outside the board are ignored.
func New(moves []models.Move, player1ID int64) Board {
	var b Board
	for _, m := range moves {
		s := White
		if m.PlayerID == player1ID {
			s = Black
		}
		b.Place(Point{m.X, m.Y}, s)
	}
	return b
}

// Stone returns the cell content, Empty for out-of-bounds points.
func (b *Board) Stone(p Point) Stone {
	if !InBounds(p.X, p.Y) {
		return Empty
	}
	return b.cells[p.X][p.Y]
}

// IsEmpty reports an in-bounds free cell.
func (b *Board) IsEmpty(p Point) bool {
	return InBounds(p.X, p.Y) && b.cells[p.X][p.Y] == Empty
}

// Place sets a stone. It returns false when the point is off-board or already taken.
func (b *Board) Place(p Point, s Stone) bool {
	if !b.IsEmpty(p) || s == Empty {
		return false
	}
	b.cells[p.X][p.Y] = s
	b.count++
	return true
}

// Count is the number of stones on the board.
func (b *Board) Count() int {
	return b.count
}

// Full reports that no empty cell remains.
func (b *Board) Full() bool {
	return b.count >= Cells
}

// CountLine counts consecutive s stones through p along one axis, both signs,
// p itself included. p must hold s (or be about to) for the count to be meaningful.
func (b *Board) CountLine(p Point, a Axis, s Stone) int {
	count := 1
	for x, y := p.X+a.DX, p.Y+a.DY; InBounds(x, y) && b.cells[x][y] == s; x, y = x+a.DX, y+a.DY {
		count++
	}
	for x, y := p.X-a.DX, p.Y-a.DY; InBounds(x, y) && b.cells[x][y] == s; x, y = x-a.DX, y-a.DY {
		count++
	}
	return count
}

// LongestLine is the maximum CountLine over the four axes.
func (b *Board) LongestLine(p Point, s Stone) int {
	longest := 0
	for _, a := range Axes {
		if n := b.CountLine(p, a, s); n > longest {
			longest = n
		}
	}
	return longest
}
