// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wfunc/gomoku/models"
)

// PostgreSQL 基于 lib/pq 的原生 SQL 实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS players (
            id BIGINT PRIMARY KEY,
            username VARCHAR(64) NOT NULL DEFAULT '',
            rating INTEGER NOT NULL DEFAULT 1000,
            wins INTEGER NOT NULL DEFAULT 0,
            losses INTEGER NOT NULL DEFAULT 0,
            draws INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS matches (
            id VARCHAR(36) PRIMARY KEY,
            game_id VARCHAR(36) UNIQUE NOT NULL,
            player1_id BIGINT NOT NULL,
            player2_id BIGINT,
            status VARCHAR(20) NOT NULL,
            winner_id BIGINT,
            move_count INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL,
            start_time TIMESTAMPTZ,
            end_time TIMESTAMPTZ,
            player1_last_active TIMESTAMPTZ,
            player2_last_active TIMESTAMPTZ
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS moves (
            id BIGSERIAL PRIMARY KEY,
            match_id VARCHAR(36) NOT NULL REFERENCES matches(id),
            player_id BIGINT NOT NULL,
            x INTEGER NOT NULL,
            y INTEGER NOT NULL,
            move_number INTEGER NOT NULL,
            timestamp TIMESTAMPTZ NOT NULL,
            UNIQUE (match_id, x, y),
            UNIQUE (match_id, move_number)
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status, created_at);
        CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player1_id);
        CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches(player2_id);
        CREATE INDEX IF NOT EXISTS idx_players_rating ON players(rating);
    `)

	return err
}

func (p *PostgreSQL) Transaction(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&sqlTxAdapter{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

const matchColumns = `id, game_id, player1_id, player2_id, status, winner_id, move_count,
	created_at, start_time, end_time, player1_last_active, player2_last_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m       models.Match
		status  string
		p2, win sql.NullInt64
		start   sql.NullTime
		end     sql.NullTime
		p1seen  sql.NullTime
		p2seen  sql.NullTime
	)
	err := row.Scan(&m.ID, &m.GameID, &m.Player1ID, &p2, &status, &win, &m.MoveCount,
		&m.CreatedAt, &start, &end, &p1seen, &p2seen)
	if err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	m.Player2ID = nullInt(p2)
	m.WinnerID = nullInt(win)
	m.StartTime = nullTime(start)
	m.EndTime = nullTime(end)
	m.Player1LastActive = nullTime(p1seen)
	m.Player2LastActive = nullTime(p2seen)
	return &m, nil
}

func queryMatches(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, query string, args ...any) ([]models.Match, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (p *PostgreSQL) ListMatchesByStatus(ctx context.Context, status models.MatchStatus) ([]models.Match, error) {
	return queryMatches(ctx, p.db,
		`SELECT `+matchColumns+` FROM matches WHERE status = $1 ORDER BY created_at, id`, string(status))
}

func (p *PostgreSQL) ListPlayerMatches(ctx context.Context, playerID int64) ([]models.Match, error) {
	return queryMatches(ctx, p.db,
		`SELECT `+matchColumns+` FROM matches WHERE player1_id = $1 OR player2_id = $1 ORDER BY created_at DESC`, playerID)
}

func (p *PostgreSQL) TopPlayers(ctx context.Context, limit int) ([]models.Player, error) {
	query := `SELECT id, username, rating, wins, losses, draws, created_at, updated_at
		FROM players ORDER BY rating DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		var pl models.Player
		if err := rows.Scan(&pl.ID, &pl.Username, &pl.Rating, &pl.Wins, &pl.Losses, &pl.Draws,
			&pl.CreatedAt, &pl.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

type sqlTxAdapter struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTxAdapter) GetMatch(id string) (*models.Match, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return m, err
}

func (t *sqlTxAdapter) CreateMatch(m *models.Match) error {
	_, err := t.tx.ExecContext(t.ctx, `
        INSERT INTO matches (`+matchColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.GameID, m.Player1ID, m.Player2ID, string(m.Status), m.WinnerID, m.MoveCount,
		m.CreatedAt, m.StartTime, m.EndTime, m.Player1LastActive, m.Player2LastActive)
	return translatePQ(err)
}

func (t *sqlTxAdapter) SaveMatch(m *models.Match) error {
	res, err := t.tx.ExecContext(t.ctx, `
        UPDATE matches SET player2_id = $2, status = $3, winner_id = $4, move_count = $5,
            start_time = $6, end_time = $7, player1_last_active = $8, player2_last_active = $9
        WHERE id = $1`,
		m.ID, m.Player2ID, string(m.Status), m.WinnerID, m.MoveCount,
		m.StartTime, m.EndTime, m.Player1LastActive, m.Player2LastActive)
	if err != nil {
		return translatePQ(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (t *sqlTxAdapter) ListMoves(matchID string) ([]models.Move, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
        SELECT id, match_id, player_id, x, y, move_number, timestamp
        FROM moves WHERE match_id = $1 ORDER BY move_number`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Move
	for rows.Next() {
		var mv models.Move
		if err := rows.Scan(&mv.ID, &mv.MatchID, &mv.PlayerID, &mv.X, &mv.Y, &mv.MoveNumber, &mv.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

func (t *sqlTxAdapter) AppendMove(mv *models.Move) error {
	err := t.tx.QueryRowContext(t.ctx, `
        INSERT INTO moves (match_id, player_id, x, y, move_number, timestamp)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		mv.MatchID, mv.PlayerID, mv.X, mv.Y, mv.MoveNumber, mv.Timestamp).Scan(&mv.ID)
	return translatePQ(err)
}

func (t *sqlTxAdapter) GetPlayer(id int64) (*models.Player, error) {
	var pl models.Player
	err := t.tx.QueryRowContext(t.ctx, `
        SELECT id, username, rating, wins, losses, draws, created_at, updated_at
        FROM players WHERE id = $1 FOR UPDATE`, id).
		Scan(&pl.ID, &pl.Username, &pl.Rating, &pl.Wins, &pl.Losses, &pl.Draws, &pl.CreatedAt, &pl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

func (t *sqlTxAdapter) EnsurePlayer(id int64, username string, now time.Time) (*models.Player, error) {
	_, err := t.tx.ExecContext(t.ctx, `
        INSERT INTO players (id, username, rating, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (id) DO NOTHING`, id, username, models.DefaultRating, now)
	if err != nil {
		return nil, translatePQ(err)
	}
	pl, err := t.GetPlayer(id)
	if err != nil {
		return nil, err
	}
	if username != "" && pl.Username != username {
		pl.Username = username
		pl.UpdatedAt = now
		return pl, t.SavePlayer(pl)
	}
	return pl, nil
}

func (t *sqlTxAdapter) SavePlayer(pl *models.Player) error {
	_, err := t.tx.ExecContext(t.ctx, `
        INSERT INTO players (id, username, rating, wins, losses, draws, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            username = EXCLUDED.username, rating = EXCLUDED.rating, wins = EXCLUDED.wins,
            losses = EXCLUDED.losses, draws = EXCLUDED.draws, updated_at = EXCLUDED.updated_at`,
		pl.ID, pl.Username, pl.Rating, pl.Wins, pl.Losses, pl.Draws, pl.CreatedAt, pl.UpdatedAt)
	return translatePQ(err)
}

func (t *sqlTxAdapter) FindOpenMatches(excludeOwner int64, limit int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
        WHERE status = $1 AND player1_id <> $2 ORDER BY created_at, id`
	args := []any{string(models.StatusWaiting), excludeOwner}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return queryMatches(t.ctx, t.tx, query, args...)
}

func (t *sqlTxAdapter) FindWaitingByOwner(owner int64) ([]models.Match, error) {
	return queryMatches(t.ctx, t.tx, `SELECT `+matchColumns+` FROM matches
        WHERE status = $1 AND player1_id = $2 ORDER BY created_at, id FOR UPDATE`,
		string(models.StatusWaiting), owner)
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// unique_violation
const pqUniqueViolation = "23505"

func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
	}
	return err
}
