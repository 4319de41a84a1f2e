// services/game_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/monitor"
	"github.com/wfunc/gomoku/outcome"
	"github.com/wfunc/gomoku/persistence"
	"github.com/wfunc/gomoku/room"
	"github.com/wfunc/gomoku/state"
)

// DefaultInactivityTimeout 心跳超时窗口
const DefaultInactivityTimeout = 1800 * time.Second

// commitAttempts bounds retries of optimistic-store conflicts.
const commitAttempts = 3

type Options struct {
	InactivityTimeout time.Duration
	SingleOpenMatch   bool
}

// GameService 对局服务：匹配、落子、心跳、退出、状态查询
type GameService struct {
	db      persistence.Database
	rooms   *room.Manager
	clock   clockwork.Clock
	monitor *monitor.Monitor
	opts    Options
}

// NewGameService 创建对局服务。clock 与 mon 可为 nil
func NewGameService(db persistence.Database, rooms *room.Manager, clock clockwork.Clock, mon *monitor.Monitor, opts Options) *GameService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rooms == nil {
		rooms = room.NewRoomManager()
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}
	return &GameService{db: db, rooms: rooms, clock: clock, monitor: mon, opts: opts}
}

// MoveResponse SubmitMove 的返回
type MoveResponse struct {
	MoveID      int64  `json:"move_id"`
	MoveNumber  int    `json:"move_number"`
	GameOver    bool   `json:"game_over"`
	WinnerID    *int64 `json:"winner_id,omitempty"`
	Draw        bool   `json:"draw"`
	RatingDelta int    `json:"rating_delta"`
}

// ExitResponse ExitMatch 的返回
type ExitResponse struct {
	Status      models.MatchStatus `json:"status"`
	WinnerID    *int64             `json:"winner_id,omitempty"`
	RatingDelta int                `json:"rating_delta"`
}

// SubmitMove validates and records a move, concluding the match on five in a row or a full board.
func (s *GameService) SubmitMove(ctx context.Context, matchID string, playerID int64, x, y int) (*MoveResponse, error) {
	var (
		resp   *MoveResponse
		result *outcome.Result
	)
	_, err := s.mutate(ctx, "submit_move", matchID, func(tx persistence.Tx, g *state.Game) error {
		res, err := g.Move(playerID, x, y)
		if err != nil {
			return err
		}
		result = res.Outcome
		if err := tx.AppendMove(&res.Move); err != nil {
			return err
		}
		g.Moves[len(g.Moves)-1].ID = res.Move.ID
		if err := tx.SaveMatch(g.Match); err != nil {
			return err
		}
		if err := s.settle(tx, g, res.Outcome); err != nil {
			return err
		}

		resp = &MoveResponse{
			MoveID:      res.Move.ID,
			MoveNumber:  res.Move.MoveNumber,
			GameOver:    res.Outcome != nil,
			Draw:        res.Outcome != nil && res.Outcome.Kind == outcome.Draw,
			RatingDelta: res.Outcome.RatingDelta(playerID),
		}
		if res.Outcome != nil && res.Outcome.Decisive() {
			winner := res.Outcome.WinnerID
			resp.WinnerID = &winner
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.monitor.IncMoves()
	s.concluded(matchID, result)
	return resp, nil
}

// Heartbeat raises the caller's last-active time. It is a no-op outside of play.
func (s *GameService) Heartbeat(ctx context.Context, matchID string, playerID int64) error {
	_, err := s.mutate(ctx, "heartbeat", matchID, func(tx persistence.Tx, g *state.Game) error {
		if err := g.Heartbeat(playerID); err != nil {
			return err
		}
		if g.Match.Status != models.StatusPlaying {
			return nil
		}
		return tx.SaveMatch(g.Match)
	})
	return err
}

// ExitMatch leaves a match. While playing the leaver forfeits; a creator leaving a
// waiting match abandons it without a result.
func (s *GameService) ExitMatch(ctx context.Context, matchID string, playerID int64) (*ExitResponse, error) {
	var (
		resp   *ExitResponse
		result *outcome.Result
	)
	_, err := s.mutate(ctx, "exit_match", matchID, func(tx persistence.Tx, g *state.Game) error {
		res, err := g.Exit(playerID)
		if err != nil {
			return err
		}
		result = res
		if err := tx.SaveMatch(g.Match); err != nil {
			return err
		}
		if err := s.settle(tx, g, res); err != nil {
			return err
		}
		resp = &ExitResponse{
			Status:      g.Match.Status,
			WinnerID:    g.Match.WinnerID,
			RatingDelta: res.RatingDelta(playerID),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.concluded(matchID, result)
	return resp, nil
}

// GetMatchState returns the full match view for a participant. Reading a match in play
// first forfeits the reader's opponent if the opponent has been silent past the window.
func (s *GameService) GetMatchState(ctx context.Context, matchID string, playerID int64) (*models.MatchState, error) {
	var (
		view   *models.MatchState
		result *outcome.Result
	)
	_, err := s.mutate(ctx, "get_match_state", matchID, func(tx persistence.Tx, g *state.Game) error {
		if !g.Match.IsParticipant(playerID) {
			return ErrForbidden
		}
		res, err := g.Expire(playerID, s.opts.InactivityTimeout)
		if err != nil {
			return err
		}
		result = res
		if res != nil {
			if err := tx.SaveMatch(g.Match); err != nil {
				return err
			}
			if err := s.settle(tx, g, res); err != nil {
				return err
			}
		}
		view, err = buildMatchState(tx, g, s.opts.InactivityTimeout)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.concluded(matchID, result)
	return view, nil
}

// SweepMatch forfeits a silent player of one match. It reports whether the match was closed.
func (s *GameService) SweepMatch(ctx context.Context, matchID string) (bool, error) {
	var result *outcome.Result
	_, err := s.mutate(ctx, "sweep", matchID, func(tx persistence.Tx, g *state.Game) error {
		res, err := g.Sweep(s.opts.InactivityTimeout)
		result = res
		if err != nil || res == nil {
			return err
		}
		if err := tx.SaveMatch(g.Match); err != nil {
			return err
		}
		return s.settle(tx, g, res)
	})
	if err != nil {
		return false, err
	}
	s.concluded(matchID, result)
	return result != nil, nil
}

// Clock 服务使用的时钟
func (s *GameService) Clock() clockwork.Clock {
	return s.clock
}

// ActiveRooms 当前缓存的房间数
func (s *GameService) ActiveRooms() int {
	return s.rooms.Count()
}

// mutate runs fn on a freshly loaded game under the match's room lock and inside one
// store transaction. The room cache is replaced only after a successful commit.
func (s *GameService) mutate(ctx context.Context, op, matchID string, fn func(tx persistence.Tx, g *state.Game) error) (*state.Game, error) {
	start := s.clock.Now()
	var committed *state.Game

	err := s.rooms.With(matchID, func(cached *state.Game) (*state.Game, error) {
		var next *state.Game
		err := s.transact(ctx, func(tx persistence.Tx) error {
			g, err := s.load(tx, matchID, cached)
			if err != nil {
				return err
			}
			before := g.Match.Status
			if err := fn(tx, g); err != nil {
				return err
			}
			if before != g.Match.Status {
				logger.Log.Infof("match %s: %s -> %s (%s)", matchID, before, g.Match.Status, op)
			}
			next = g
			return nil
		})
		if err != nil {
			return nil, err
		}
		committed = next
		return next, nil
	})

	s.monitor.ObserveOpLatency(op, s.clock.Since(start))
	s.monitor.SetActiveMatches(s.rooms.Count())
	if err != nil {
		s.monitor.IncOpError(op, ErrorCode(err))
		return nil, err
	}
	return committed, nil
}

// transact opens one store transaction, retrying optimistic conflicts. Domain errors
// pass through unchanged; anything else is reported as ErrTransient.
func (s *GameService) transact(ctx context.Context, fn func(tx persistence.Tx) error) error {
	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		err = s.db.Transaction(ctx, fn)
		if err == nil || isDomainError(err) {
			return err
		}
		if !errors.Is(err, persistence.ErrConflict) {
			break
		}
	}
	logger.Log.Errorf("transaction failed: %v", err)
	return wrapTransient(err)
}

// load re-reads the match row inside tx. The move list comes from the cache when it is
// still in step with the row.
func (s *GameService) load(tx persistence.Tx, matchID string, cached *state.Game) (*state.Game, error) {
	match, err := tx.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	var moves []models.Move
	if cached != nil && len(cached.Moves) == match.MoveCount {
		moves = cached.Moves
	} else {
		moves, err = tx.ListMoves(matchID)
		if err != nil {
			return nil, err
		}
	}
	return state.NewGame(nil, match, moves, s.clock.Now()), nil
}

// settle applies a concluded match's result to both player records within tx.
func (s *GameService) settle(tx persistence.Tx, g *state.Game, res *outcome.Result) error {
	if res == nil {
		return nil
	}
	if g.Match.Player2ID == nil {
		return outcome.ErrPlayerMismatch
	}
	p1, err := tx.EnsurePlayer(g.Match.Player1ID, "", g.Now)
	if err != nil {
		return err
	}
	p2, err := tx.EnsurePlayer(*g.Match.Player2ID, "", g.Now)
	if err != nil {
		return err
	}
	if err := outcome.Apply(res, p1, p2, g.Now); err != nil {
		return err
	}
	if err := tx.SavePlayer(p1); err != nil {
		return err
	}
	if err := tx.SavePlayer(p2); err != nil {
		return err
	}
	return nil
}

// concluded records a committed result.
func (s *GameService) concluded(matchID string, res *outcome.Result) {
	if res == nil {
		return
	}
	s.monitor.IncOutcome(string(res.Kind), string(res.Reason))
	logger.Log.Infow("match concluded",
		"match_id", matchID,
		"kind", res.Kind,
		"reason", res.Reason,
		"winner_id", res.WinnerID,
		"loser_id", res.LoserID,
	)
}

func buildMatchState(tx persistence.Tx, g *state.Game, timeout time.Duration) (*models.MatchState, error) {
	view := &models.MatchState{
		Match:     *g.Match.Clone(),
		Moves:     append([]models.Move{}, g.Moves...),
		TimeLimit: int(timeout / time.Second),
	}
	ref, err := playerRef(tx, g.Match.Player1ID)
	if err != nil {
		return nil, err
	}
	view.Player1 = ref
	if g.Match.Player2ID != nil {
		if view.Player2, err = playerRef(tx, *g.Match.Player2ID); err != nil {
			return nil, err
		}
	}
	if g.Match.Status == models.StatusPlaying {
		if current, ok := g.CurrentPlayer(); ok {
			view.CurrentPlayerID = &current
		}
	}
	return view, nil
}

func playerRef(tx persistence.Tx, id int64) (*models.PlayerRef, error) {
	p, err := tx.GetPlayer(id)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return &models.PlayerRef{ID: id, Rating: models.DefaultRating}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.PlayerRef{ID: p.ID, Username: p.Username, Rating: p.Rating}, nil
}
