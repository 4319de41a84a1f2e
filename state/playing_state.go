package state

import (
	"time"

	"github.com/wfunc/gomoku/board"
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/outcome"
	"github.com/wfunc/gomoku/rules"
)

// PlayingState 对局进行中
type PlayingState struct {
	stateBase
}

func (s *PlayingState) Join(g *Game, playerID int64) error {
	return ErrAlreadyClosed
}

func (s *PlayingState) Move(g *Game, playerID int64, x, y int) (*MoveResult, error) {
	if !g.Match.IsParticipant(playerID) {
		return nil, ErrNotParticipant
	}

	current, _ := g.CurrentPlayer()
	b := g.Board()
	if err := rules.Validate(b, x, y, g.StoneOf(playerID), g.StoneOf(current)); err != nil {
		return nil, err
	}

	mv := models.Move{
		MatchID:    g.Match.ID,
		PlayerID:   playerID,
		X:          x,
		Y:          y,
		MoveNumber: len(g.Moves) + 1,
		Timestamp:  g.Now,
	}
	p := board.Point{X: x, Y: y}
	b.Place(p, g.StoneOf(playerID))
	g.Moves = append(g.Moves, mv)
	g.Match.MoveCount = len(g.Moves)
	g.Match.Touch(playerID, g.Now)

	res := &MoveResult{Move: mv}
	switch {
	case rules.IsWin(b, p, g.StoneOf(playerID)):
		loser, _ := g.Match.Opponent(playerID)
		winner := playerID
		if err := g.close(models.StatusFinished, &winner); err != nil {
			return nil, err
		}
		res.Outcome = outcome.NewWin(winner, loser)
	case b.Full():
		if err := g.close(models.StatusFinished, nil); err != nil {
			return nil, err
		}
		res.Outcome = outcome.NewDraw()
	}
	return res, nil
}

// Exit forfeits the leaving player; the opponent is credited the win.
func (s *PlayingState) Exit(g *Game, playerID int64) (*outcome.Result, error) {
	opponent, ok := g.Match.Opponent(playerID)
	if !ok {
		return nil, ErrNotParticipant
	}
	return s.forfeit(g, playerID, opponent, outcome.ReasonExit)
}

func (s *PlayingState) Heartbeat(g *Game, playerID int64) error {
	if !g.Match.IsParticipant(playerID) {
		return ErrNotParticipant
	}
	g.Match.Touch(playerID, g.Now)
	return nil
}

// Expire checks only the observer's opponent; the observer is evidently still around.
func (s *PlayingState) Expire(g *Game, observer int64, window time.Duration) (*outcome.Result, error) {
	opponent, ok := g.Match.Opponent(observer)
	if !ok {
		return nil, ErrNotParticipant
	}
	if !stale(g.Match.LastActive(opponent), g.Now, window) {
		return nil, nil
	}
	return s.forfeit(g, opponent, observer, outcome.ReasonTimeout)
}

// Sweep forfeits a silent player. When both are silent the one with the older stamp loses,
// player1 on a tie.
func (s *PlayingState) Sweep(g *Game, window time.Duration) (*outcome.Result, error) {
	m := g.Match
	if m.Player2ID == nil {
		return nil, nil
	}
	p1Stale := stale(m.Player1LastActive, g.Now, window)
	p2Stale := stale(m.Player2LastActive, g.Now, window)

	switch {
	case p1Stale && p2Stale:
		if lastActive(m.Player2LastActive).Before(lastActive(m.Player1LastActive)) {
			return s.forfeit(g, *m.Player2ID, m.Player1ID, outcome.ReasonTimeout)
		}
		return s.forfeit(g, m.Player1ID, *m.Player2ID, outcome.ReasonTimeout)
	case p1Stale:
		return s.forfeit(g, m.Player1ID, *m.Player2ID, outcome.ReasonTimeout)
	case p2Stale:
		return s.forfeit(g, *m.Player2ID, m.Player1ID, outcome.ReasonTimeout)
	}
	return nil, nil
}

func (s *PlayingState) forfeit(g *Game, loser, winner int64, reason outcome.Reason) (*outcome.Result, error) {
	w := winner
	if err := g.close(models.StatusAbandoned, &w); err != nil {
		return nil, err
	}
	return outcome.NewForfeit(winner, loser, reason), nil
}

// stale is true when the player has been silent strictly longer than window.
// A missing stamp never counts as stale.
func stale(last *time.Time, now time.Time, window time.Duration) bool {
	if last == nil {
		return false
	}
	return now.Sub(*last) > window
}

func lastActive(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
