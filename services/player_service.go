// services/player_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/elliotchance/pie/v2"

	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/persistence"
)

const (
	// DefaultLeaderboardSize 排行榜默认条数
	DefaultLeaderboardSize = 10
	// MaxLeaderboardSize 排行榜最大条数
	MaxLeaderboardSize = 50
)

// PlayerService 玩家战绩、排行榜与复盘的只读查询
type PlayerService struct {
	db persistence.Database
}

func NewPlayerService(db persistence.Database) *PlayerService {
	return &PlayerService{db: db}
}

// GetPlayer 获取玩家战绩
func (s *PlayerService) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	var player *models.Player
	err := s.read(ctx, func(tx persistence.Tx) error {
		var err error
		player, err = tx.GetPlayer(playerID)
		return err
	})
	return player, err
}

// Leaderboard returns the top players by rating. limit is clamped to [1, MaxLeaderboardSize],
// non-positive values select DefaultLeaderboardSize.
func (s *PlayerService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardSize
	case limit > MaxLeaderboardSize:
		limit = MaxLeaderboardSize
	}

	players, err := s.db.TopPlayers(ctx, limit)
	if err != nil {
		return nil, wrapTransient(err)
	}

	entries := pie.Map(players, func(p models.Player) models.LeaderboardEntry {
		return models.LeaderboardEntry{
			PlayerID:   p.ID,
			Username:   p.Username,
			Rating:     p.Rating,
			GamesWon:   p.Wins,
			TotalGames: p.TotalGames(),
			WinRate:    p.WinRate(),
		}
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// ListReplays returns every match of playerID that had a second player, newest start first.
func (s *PlayerService) ListReplays(ctx context.Context, playerID int64) ([]models.Replay, error) {
	matches, err := s.db.ListPlayerMatches(ctx, playerID)
	if err != nil {
		return nil, wrapTransient(err)
	}
	started := pie.Filter(matches, func(m models.Match) bool { return m.Player2ID != nil })
	started = pie.SortUsing(started, func(a, b models.Match) bool {
		return startOf(a).After(startOf(b))
	})

	replays := make([]models.Replay, 0, len(started))
	err = s.read(ctx, func(tx persistence.Tx) error {
		replays = replays[:0]
		for i := range started {
			r, err := buildReplay(tx, &started[i])
			if err != nil {
				return err
			}
			replays = append(replays, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replays, nil
}

// GetReplay 单局复盘；尚未开始的对局视为不存在
func (s *PlayerService) GetReplay(ctx context.Context, matchID string) (*models.Replay, error) {
	var replay *models.Replay
	err := s.read(ctx, func(tx persistence.Tx) error {
		m, err := tx.GetMatch(matchID)
		if err != nil {
			return err
		}
		if m.Player2ID == nil {
			return persistence.ErrRecordNotFound
		}
		replay, err = buildReplay(tx, m)
		return err
	})
	return replay, err
}

func (s *PlayerService) read(ctx context.Context, fn func(tx persistence.Tx) error) error {
	err := s.db.Transaction(ctx, fn)
	if err == nil || errors.Is(err, persistence.ErrRecordNotFound) {
		return err
	}
	return wrapTransient(err)
}

func buildReplay(tx persistence.Tx, m *models.Match) (*models.Replay, error) {
	moves, err := tx.ListMoves(m.ID)
	if err != nil {
		return nil, err
	}
	black, err := playerRef(tx, m.Player1ID)
	if err != nil {
		return nil, err
	}
	white, err := playerRef(tx, *m.Player2ID)
	if err != nil {
		return nil, err
	}
	return &models.Replay{
		MatchID:     m.ID,
		BlackPlayer: *black,
		WhitePlayer: *white,
		WinnerID:    m.WinnerID,
		Status:      string(m.Status),
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Moves:       append([]models.Move{}, moves...),
	}, nil
}

func startOf(m models.Match) time.Time {
	if m.StartTime != nil {
		return *m.StartTime
	}
	return m.CreatedAt
}
