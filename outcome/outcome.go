// Package outcome applies the rating and record changes of a concluded match.
package outcome

import (
	"errors"
	"time"

	"github.com/wfunc/gomoku/models"
)

// RatingStep is the fixed rating change of a decisive result.
const RatingStep = 10

type Kind string

const (
	Win     Kind = "win"
	Draw    Kind = "draw"
	Forfeit Kind = "forfeit"
)

// Reason explains why a match ended.
type Reason string

const (
	ReasonFiveInARow Reason = "five_in_a_row"
	ReasonBoardFull  Reason = "board_full"
	ReasonExit       Reason = "exit"
	ReasonTimeout    Reason = "timeout"
)

var ErrPlayerMismatch = errors.New("outcome does not match the given players")

// Result describes how a match ended. WinnerID and LoserID are zero for a draw.
type Result struct {
	Kind     Kind
	Reason   Reason
	WinnerID int64
	LoserID  int64
}

func NewWin(winner, loser int64) *Result {
	return &Result{Kind: Win, Reason: ReasonFiveInARow, WinnerID: winner, LoserID: loser}
}

func NewDraw() *Result {
	return &Result{Kind: Draw, Reason: ReasonBoardFull}
}

// NewForfeit credits winner after loser left or went silent.
func NewForfeit(winner, loser int64, reason Reason) *Result {
	return &Result{Kind: Forfeit, Reason: reason, WinnerID: winner, LoserID: loser}
}

// Decisive reports a result with a winner.
func (r *Result) Decisive() bool {
	return r.Kind == Win || r.Kind == Forfeit
}

// RatingDelta is the rating change playerID receives from r.
func (r *Result) RatingDelta(playerID int64) int {
	if r == nil || !r.Decisive() {
		return 0
	}
	switch playerID {
	case r.WinnerID:
		return RatingStep
	case r.LoserID:
		return -RatingStep
	}
	return 0
}

// Apply mutates both records. p1 and p2 are the two seats in any order; they must be
// the winner and loser of a decisive result. Callers persist both records together
// with the match's terminal row.
func Apply(r *Result, p1, p2 *models.Player, now time.Time) error {
	if p1 == nil || p2 == nil || p1.ID == p2.ID {
		return ErrPlayerMismatch
	}
	if r.Kind == Draw {
		p1.Draws++
		p2.Draws++
		p1.UpdatedAt, p2.UpdatedAt = now, now
		return nil
	}

	winner, loser := p1, p2
	if p2.ID == r.WinnerID {
		winner, loser = p2, p1
	}
	if winner.ID != r.WinnerID || loser.ID != r.LoserID {
		return ErrPlayerMismatch
	}
	winner.Rating += RatingStep
	winner.Wins++
	loser.Rating -= RatingStep
	loser.Losses++
	winner.UpdatedAt, loser.UpdatedAt = now, now
	return nil
}
