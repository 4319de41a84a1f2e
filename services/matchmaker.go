// services/matchmaker.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/persistence"
	"github.com/wfunc/gomoku/state"
)

// quickMatchCandidates 快速匹配时依次尝试的等待对局数
const quickMatchCandidates = 5

// CreateMatch opens a waiting match owned by playerID.
func (s *GameService) CreateMatch(ctx context.Context, playerID int64, username string) (*models.Match, error) {
	if playerID <= 0 {
		return nil, ErrInvalidPlayer
	}
	start := s.clock.Now()

	var created *models.Match
	err := s.transact(ctx, func(tx persistence.Tx) error {
		now := s.clock.Now()
		// 写玩家记录：同一玩家的并发创建在这一行上串行化
		p, err := tx.EnsurePlayer(playerID, username, now)
		if err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := tx.SavePlayer(p); err != nil {
			return err
		}

		if s.opts.SingleOpenMatch {
			open, err := tx.FindWaitingByOwner(playerID)
			if err != nil {
				return err
			}
			if len(open) > 0 {
				return ErrOpenMatchExists
			}
		}

		m := &models.Match{
			ID:        uuid.NewString(),
			GameID:    uuid.NewString(),
			Player1ID: playerID,
			Status:    models.StatusWaiting,
			CreatedAt: now,
		}
		if err := tx.CreateMatch(m); err != nil {
			return err
		}
		created = m
		return nil
	})
	s.monitor.ObserveOpLatency("create_match", s.clock.Since(start))
	if err != nil {
		s.monitor.IncOpError("create_match", ErrorCode(err))
		return nil, err
	}

	s.monitor.IncMatchesCreated()
	logger.Log.Infof("match %s created by player %d", created.ID, playerID)
	return created, nil
}

// FindOpenMatch returns the oldest waiting match not created by playerID, nil when none.
func (s *GameService) FindOpenMatch(ctx context.Context, playerID int64) (*models.Match, error) {
	candidates, err := s.openMatches(ctx, playerID, 1)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}
	return &candidates[0], nil
}

// JoinMatch seats playerID as the second player and starts the match.
func (s *GameService) JoinMatch(ctx context.Context, matchID string, playerID int64, username string) (*models.Match, error) {
	if playerID <= 0 {
		return nil, ErrInvalidPlayer
	}
	g, err := s.mutate(ctx, "join_match", matchID, func(tx persistence.Tx, g *state.Game) error {
		if err := g.Join(playerID); err != nil {
			return err
		}
		if _, err := tx.EnsurePlayer(playerID, username, g.Now); err != nil {
			return err
		}
		return tx.SaveMatch(g.Match)
	})
	if err != nil {
		return nil, err
	}
	return g.Match.Clone(), nil
}

// CancelMatch abandons a waiting match. Only its creator may cancel; ratings are untouched.
func (s *GameService) CancelMatch(ctx context.Context, matchID string, playerID int64) error {
	_, err := s.mutate(ctx, "cancel_match", matchID, func(tx persistence.Tx, g *state.Game) error {
		if err := g.Cancel(playerID); err != nil {
			return err
		}
		return tx.SaveMatch(g.Match)
	})
	return err
}

// QuickMatch joins the oldest open match, or opens a new one when nobody is waiting.
// A player whose own waiting match has no opponent in sight gets that match back.
// Before joining someone else the caller's own waiting matches are cancelled, so a
// player never ends up seated in two games. joined reports whether the returned
// match is now in play.
func (s *GameService) QuickMatch(ctx context.Context, playerID int64, username string) (match *models.Match, joined bool, err error) {
	if playerID <= 0 {
		return nil, false, ErrInvalidPlayer
	}
	candidates, err := s.openMatches(ctx, playerID, quickMatchCandidates)
	if err != nil {
		return nil, false, err
	}
	if len(candidates) > 0 {
		started, err := s.withdraw(ctx, playerID)
		if err != nil {
			return nil, false, err
		}
		if started != nil {
			return started, true, nil
		}
	}
	for _, c := range candidates {
		m, err := s.JoinMatch(ctx, c.ID, playerID, username)
		switch {
		case err == nil:
			return m, true, nil
		case errors.Is(err, state.ErrAlreadyClosed), errors.Is(err, persistence.ErrRecordNotFound):
			// 被别人抢先加入或已取消，试下一个
			continue
		default:
			return nil, false, err
		}
	}

	m, err := s.CreateMatch(ctx, playerID, username)
	if errors.Is(err, ErrOpenMatchExists) {
		own, ferr := s.ownWaiting(ctx, playerID)
		if ferr != nil {
			return nil, false, ferr
		}
		if len(own) > 0 {
			return &own[0], false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// withdraw cancels every waiting match owned by playerID. When an opponent
// took one of them first, that match is returned instead and nothing else is
// cancelled.
func (s *GameService) withdraw(ctx context.Context, playerID int64) (*models.Match, error) {
	own, err := s.ownWaiting(ctx, playerID)
	if err != nil {
		return nil, err
	}
	for _, m := range own {
		err := s.CancelMatch(ctx, m.ID, playerID)
		if err == nil || errors.Is(err, persistence.ErrRecordNotFound) {
			continue
		}
		if !errors.Is(err, state.ErrAlreadyClosed) {
			return nil, err
		}
		current, err := s.getMatch(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusPlaying {
			return current, nil
		}
	}
	return nil, nil
}

func (s *GameService) openMatches(ctx context.Context, playerID int64, limit int) ([]models.Match, error) {
	var out []models.Match
	err := s.transact(ctx, func(tx persistence.Tx) error {
		var err error
		out, err = tx.FindOpenMatches(playerID, limit)
		return err
	})
	return out, err
}

func (s *GameService) ownWaiting(ctx context.Context, playerID int64) ([]models.Match, error) {
	var out []models.Match
	err := s.transact(ctx, func(tx persistence.Tx) error {
		var err error
		out, err = tx.FindWaitingByOwner(playerID)
		return err
	})
	return out, err
}

func (s *GameService) getMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var out *models.Match
	err := s.transact(ctx, func(tx persistence.Tx) error {
		var err error
		out, err = tx.GetMatch(matchID)
		return err
	})
	return out, err
}
