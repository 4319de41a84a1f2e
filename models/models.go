// models/models.go
package models

import (
	"time"
)

// DefaultRating 新玩家初始积分
const DefaultRating = 1000

// MatchStatus 对局生命周期状态
type MatchStatus string

const (
	StatusWaiting   MatchStatus = "waiting"
	StatusPlaying   MatchStatus = "playing"
	StatusFinished  MatchStatus = "finished"
	StatusAbandoned MatchStatus = "abandoned"
)

// Terminal reports finished or abandoned.
func (s MatchStatus) Terminal() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// Match 对局
type Match struct {
	ID                string      `json:"id"`
	GameID            string      `json:"game_id"`
	Player1ID         int64       `json:"player1_id"`
	Player2ID         *int64      `json:"player2_id"`
	Status            MatchStatus `json:"status"`
	WinnerID          *int64      `json:"winner_id"`
	MoveCount         int         `json:"move_count"`
	CreatedAt         time.Time   `json:"created_at"`
	StartTime         *time.Time  `json:"start_time"`
	EndTime           *time.Time  `json:"end_time"`
	Player1LastActive *time.Time  `json:"player1_last_active"`
	Player2LastActive *time.Time  `json:"player2_last_active"`
}

// IsParticipant reports whether playerID is one of the two seats.
func (m *Match) IsParticipant(playerID int64) bool {
	return m.Player1ID == playerID || (m.Player2ID != nil && *m.Player2ID == playerID)
}

// Opponent returns the other seat, false when playerID is not seated or the seat is empty.
func (m *Match) Opponent(playerID int64) (int64, bool) {
	switch {
	case m.Player2ID == nil:
		return 0, false
	case playerID == m.Player1ID:
		return *m.Player2ID, true
	case playerID == *m.Player2ID:
		return m.Player1ID, true
	}
	return 0, false
}

// LastActive returns the liveness stamp of a seated player.
func (m *Match) LastActive(playerID int64) *time.Time {
	if playerID == m.Player1ID {
		return m.Player1LastActive
	}
	if m.Player2ID != nil && playerID == *m.Player2ID {
		return m.Player2LastActive
	}
	return nil
}

// Touch raises the liveness stamp of a seated player.
func (m *Match) Touch(playerID int64, now time.Time) {
	t := now
	if playerID == m.Player1ID {
		m.Player1LastActive = &t
	} else if m.Player2ID != nil && playerID == *m.Player2ID {
		m.Player2LastActive = &t
	}
}

// Clone returns a deep copy so callers can stage changes without aliasing.
func (m *Match) Clone() *Match {
	cp := *m
	cp.Player2ID = clonePtr(m.Player2ID)
	cp.WinnerID = clonePtr(m.WinnerID)
	cp.StartTime = clonePtr(m.StartTime)
	cp.EndTime = clonePtr(m.EndTime)
	cp.Player1LastActive = clonePtr(m.Player1LastActive)
	cp.Player2LastActive = clonePtr(m.Player2LastActive)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Move 落子记录
type Move struct {
	ID         int64     `json:"id"`
	MatchID    string    `json:"match_id"`
	PlayerID   int64     `json:"player_id"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	MoveNumber int       `json:"move_number"`
	Timestamp  time.Time `json:"timestamp"`
}

// Player 玩家战绩
type Player struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Draws     int       `json:"draws"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPlayer returns a record with the default rating.
func NewPlayer(id int64, username string, now time.Time) *Player {
	return &Player{
		ID:        id,
		Username:  username,
		Rating:    DefaultRating,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TotalGames wins + losses + draws
func (p *Player) TotalGames() int {
	return p.Wins + p.Losses + p.Draws
}

// WinRate in percent, 0 with no games.
func (p *Player) WinRate() float64 {
	total := p.TotalGames()
	if total == 0 {
		return 0
	}
	return float64(p.Wins) / float64(total) * 100
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	PlayerID   int64   `json:"id"`
	Username   string  `json:"username"`
	Rating     int     `json:"rating"`
	GamesWon   int     `json:"games_won"`
	TotalGames int     `json:"total_games"`
	WinRate    float64 `json:"win_rate"`
}

// PlayerRef 对局中玩家的简要信息
type PlayerRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// MatchState 对局完整状态（含棋谱）
type MatchState struct {
	Match           Match      `json:"match"`
	Moves           []Move     `json:"moves"`
	Player1         *PlayerRef `json:"player1"`
	Player2         *PlayerRef `json:"player2"`
	CurrentPlayerID *int64     `json:"current_player_id"`
	// TimeLimit 心跳超时窗口（秒）
	TimeLimit int `json:"time_limit"`
}

// Replay 复盘记录
type Replay struct {
	MatchID     string     `json:"id"`
	BlackPlayer PlayerRef  `json:"black_player"`
	WhitePlayer PlayerRef  `json:"white_player"`
	WinnerID    *int64     `json:"winner_id"`
	Status      string     `json:"status"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Moves       []Move     `json:"moves"`
}
