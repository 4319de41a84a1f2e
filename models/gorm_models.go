// models/gorm_models.go
package models

import (
	"time"
)

// GormPlayer 玩家表
type GormPlayer struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Username  string `gorm:"size:64"`
	Rating    int    `gorm:"not null;default:1000;index"`
	Wins      int    `gorm:"not null;default:0"`
	Losses    int    `gorm:"not null;default:0"`
	Draws     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GormPlayer) TableName() string { return "players" }

// GormMatch 对局表
type GormMatch struct {
	ID                string `gorm:"primaryKey;type:varchar(36)"`
	GameID            string `gorm:"uniqueIndex;type:varchar(36);not null"`
	Player1ID         int64  `gorm:"index;not null"`
	Player2ID         *int64 `gorm:"index"`
	Status            string `gorm:"index;size:20;not null"`
	WinnerID          *int64
	MoveCount         int `gorm:"not null;default:0"`
	CreatedAt         time.Time
	StartTime         *time.Time
	EndTime           *time.Time
	Player1LastActive *time.Time
	Player2LastActive *time.Time
}

func (GormMatch) TableName() string { return "matches" }

// GormMove 落子表，(match_id, x, y) 与 (match_id, move_number) 唯一
type GormMove struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	MatchID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_moves_cell,priority:1;uniqueIndex:idx_moves_number,priority:1"`
	PlayerID   int64     `gorm:"not null"`
	X          int       `gorm:"not null;uniqueIndex:idx_moves_cell,priority:2"`
	Y          int       `gorm:"not null;uniqueIndex:idx_moves_cell,priority:3"`
	MoveNumber int       `gorm:"not null;uniqueIndex:idx_moves_number,priority:2"`
	Timestamp  time.Time `gorm:"not null"`
}

func (GormMove) TableName() string { return "moves" }

func PlayerFromGorm(g *GormPlayer) *Player {
	return &Player{
		ID:        g.ID,
		Username:  g.Username,
		Rating:    g.Rating,
		Wins:      g.Wins,
		Losses:    g.Losses,
		Draws:     g.Draws,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func PlayerToGorm(p *Player) *GormPlayer {
	return &GormPlayer{
		ID:        p.ID,
		Username:  p.Username,
		Rating:    p.Rating,
		Wins:      p.Wins,
		Losses:    p.Losses,
		Draws:     p.Draws,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func MatchFromGorm(g *GormMatch) *Match {
	return &Match{
		ID:                g.ID,
		GameID:            g.GameID,
		Player1ID:         g.Player1ID,
		Player2ID:         g.Player2ID,
		Status:            MatchStatus(g.Status),
		WinnerID:          g.WinnerID,
		MoveCount:         g.MoveCount,
		CreatedAt:         g.CreatedAt,
		StartTime:         g.StartTime,
		EndTime:           g.EndTime,
		Player1LastActive: g.Player1LastActive,
		Player2LastActive: g.Player2LastActive,
	}
}

func MatchToGorm(m *Match) *GormMatch {
	return &GormMatch{
		ID:                m.ID,
		GameID:            m.GameID,
		Player1ID:         m.Player1ID,
		Player2ID:         m.Player2ID,
		Status:            string(m.Status),
		WinnerID:          m.WinnerID,
		MoveCount:         m.MoveCount,
		CreatedAt:         m.CreatedAt,
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		Player1LastActive: m.Player1LastActive,
		Player2LastActive: m.Player2LastActive,
	}
}

func MoveFromGorm(g *GormMove) Move {
	return Move{
		ID:         g.ID,
		MatchID:    g.MatchID,
		PlayerID:   g.PlayerID,
		X:          g.X,
		Y:          g.Y,
		MoveNumber: g.MoveNumber,
		Timestamp:  g.Timestamp,
	}
}

func MoveToGorm(m *Move) *GormMove {
	return &GormMove{
		ID:         m.ID,
		MatchID:    m.MatchID,
		PlayerID:   m.PlayerID,
		X:          m.X,
		Y:          m.Y,
		MoveNumber: m.MoveNumber,
		Timestamp:  m.Timestamp,
	}
}
