package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wfunc/gomoku/board"
)

func place(b *board.Board, s board.Stone, pts ...board.Point) {
	for _, p := range pts {
		b.Place(p, s)
	}
}

func TestValidate_Order(t *testing.T) {
	var b board.Board
	place(&b, board.Black, board.Point{X: 7, Y: 7})

	assert.ErrorIs(t, Validate(&b, 15, 7, board.Black, board.White), ErrOutOfBounds)
	assert.ErrorIs(t, Validate(&b, 7, 7, board.Black, board.White), ErrNotYourTurn)
	assert.ErrorIs(t, Validate(&b, 7, 7, board.White, board.White), ErrCellOccupied)
	assert.NoError(t, Validate(&b, 8, 8, board.White, board.White))
}

func TestIsWin_EveryAxis(t *testing.T) {
	for _, a := range board.Axes {
		var b board.Board
		start := board.Point{X: 5, Y: 7}
		var last board.Point
		for i := 0; i < WinLength; i++ {
			last = board.Point{X: start.X + a.DX*i, Y: start.Y + a.DY*i}
			b.Place(last, board.White)
			if i < WinLength-1 {
				assert.False(t, IsWin(&b, last, board.White), "axis %+v stone %d", a, i+1)
			}
		}
		assert.True(t, IsWin(&b, last, board.White), "axis %+v", a)
	}
}

func TestIsWin_Overline(t *testing.T) {
	var b board.Board
	for x := 0; x < 6; x++ {
		if x != 3 {
			b.Place(board.Point{X: x, Y: 0}, board.Black)
		}
	}
	p := board.Point{X: 3, Y: 0}
	b.Place(p, board.Black)
	assert.True(t, IsWin(&b, p, board.Black))
}

func TestOpenThrees(t *testing.T) {
	var b board.Board
	place(&b, board.Black, board.Point{X: 5, Y: 7}, board.Point{X: 6, Y: 7}, board.Point{X: 7, Y: 7})
	assert.Equal(t, 1, OpenThrees(&b, board.Black))

	// 一端被堵
	b.Place(board.Point{X: 8, Y: 7}, board.White)
	assert.Zero(t, OpenThrees(&b, board.Black))

	// 贴边不算活三
	var edge board.Board
	place(&edge, board.Black, board.Point{X: 0, Y: 3}, board.Point{X: 1, Y: 3}, board.Point{X: 2, Y: 3})
	assert.Zero(t, OpenThrees(&edge, board.Black))

	// 四子不是三
	var four board.Board
	place(&four, board.Black, board.Point{X: 3, Y: 3}, board.Point{X: 4, Y: 3}, board.Point{X: 5, Y: 3}, board.Point{X: 6, Y: 3})
	assert.Zero(t, OpenThrees(&four, board.Black))
}

func TestDoubleThree_BlackOnly(t *testing.T) {
	var b board.Board
	place(&b, board.Black,
		board.Point{X: 5, Y: 7}, board.Point{X: 6, Y: 7},
		board.Point{X: 7, Y: 5}, board.Point{X: 7, Y: 6},
	)
	target := board.Point{X: 7, Y: 7}

	assert.True(t, IsDoubleThree(&b, target, board.Black))
	assert.ErrorIs(t, Validate(&b, 7, 7, board.Black, board.Black), ErrDoubleThreeForbidden)
	assert.True(t, b.IsEmpty(target), "the check must not leave a stone behind")

	var w board.Board
	place(&w, board.White,
		board.Point{X: 5, Y: 7}, board.Point{X: 6, Y: 7},
		board.Point{X: 7, Y: 5}, board.Point{X: 7, Y: 6},
	)
	assert.NoError(t, Validate(&w, 7, 7, board.White, board.White))
}

func TestDoubleThree_SingleThreeAllowed(t *testing.T) {
	var b board.Board
	place(&b, board.Black, board.Point{X: 5, Y: 7}, board.Point{X: 6, Y: 7})
	assert.NoError(t, Validate(&b, 7, 7, board.Black, board.Black))
}

func TestDoubleThree_ExistingThreeCounts(t *testing.T) {
	var b board.Board
	// 棋盘上已有一个活三，再新成一个即为双三
	place(&b, board.Black,
		board.Point{X: 2, Y: 2}, board.Point{X: 3, Y: 2}, board.Point{X: 4, Y: 2},
		board.Point{X: 10, Y: 10}, board.Point{X: 11, Y: 10},
	)
	assert.ErrorIs(t, Validate(&b, 12, 10, board.Black, board.Black), ErrDoubleThreeForbidden)
}

func TestDoubleThree_FourExempts(t *testing.T) {
	var b board.Board
	place(&b, board.Black,
		board.Point{X: 4, Y: 7}, board.Point{X: 5, Y: 7}, board.Point{X: 6, Y: 7},
		board.Point{X: 7, Y: 5}, board.Point{X: 7, Y: 6},
	)
	// (7,7) 横向成四，纵向成活三：冲四豁免
	assert.NoError(t, Validate(&b, 7, 7, board.Black, board.Black))
}
