package state

import (
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/outcome"
)

// WaitingState 等待对手加入：只接受加入和创建者取消
type WaitingState struct {
	stateBase
}

func (s *WaitingState) Join(g *Game, playerID int64) error {
	if playerID == g.Match.Player1ID {
		return ErrSelfJoin
	}

	p2 := playerID
	g.Match.Player2ID = &p2
	if err := g.changeState(models.StatusPlaying); err != nil {
		g.Match.Player2ID = nil
		return err
	}

	now := g.Now
	g.Match.StartTime = &now
	g.Match.Touch(g.Match.Player1ID, now)
	g.Match.Touch(playerID, now)
	return nil
}

func (s *WaitingState) Cancel(g *Game, playerID int64) error {
	if playerID != g.Match.Player1ID {
		return ErrNotOwner
	}
	return g.close(models.StatusAbandoned, nil)
}

func (s *WaitingState) Move(g *Game, playerID int64, x, y int) (*MoveResult, error) {
	if playerID != g.Match.Player1ID {
		return nil, ErrNotParticipant
	}
	return nil, ErrNotStarted
}

// Exit by the creator before anyone joined abandons the match without a result.
func (s *WaitingState) Exit(g *Game, playerID int64) (*outcome.Result, error) {
	if playerID != g.Match.Player1ID {
		return nil, ErrNotParticipant
	}
	return nil, g.close(models.StatusAbandoned, nil)
}
