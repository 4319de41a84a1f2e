// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/gomoku/models"
)

// Tx 事务内可用的读写操作
type Tx interface {
	// GetMatch loads a match; SQL stores lock the row until the transaction ends.
	GetMatch(id string) (*models.Match, error)
	CreateMatch(m *models.Match) error
	SaveMatch(m *models.Match) error
	ListMoves(matchID string) ([]models.Move, error)
	// AppendMove assigns mv.ID.
	AppendMove(mv *models.Move) error
	GetPlayer(id int64) (*models.Player, error)
	// EnsurePlayer returns the record for id, creating it with defaults stamped at now when absent.
	EnsurePlayer(id int64, username string, now time.Time) (*models.Player, error)
	SavePlayer(p *models.Player) error
	// FindOpenMatches lists waiting matches not created by excludeOwner, oldest first.
	FindOpenMatches(excludeOwner int64, limit int) ([]models.Match, error)
	// FindWaitingByOwner lists waiting matches created by owner.
	FindWaitingByOwner(owner int64) ([]models.Match, error)
}

// Database 数据库接口
type Database interface {
	// Transaction runs fn atomically: every write inside fn commits together or not at all.
	Transaction(ctx context.Context, fn func(tx Tx) error) error
	ListMatchesByStatus(ctx context.Context, status models.MatchStatus) ([]models.Match, error)
	ListPlayerMatches(ctx context.Context, playerID int64) ([]models.Match, error)
	TopPlayers(ctx context.Context, limit int) ([]models.Player, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
)
