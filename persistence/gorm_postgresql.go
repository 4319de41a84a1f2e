// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// GORM 日志走 zap
	gormLogger := gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Warn,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormPlayer{},
		&models.GormMatch{},
		&models.GormMove{},
	)
}

func (p *GormPostgreSQL) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return p.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

func (p *GormPostgreSQL) ListMatchesByStatus(ctx context.Context, status models.MatchStatus) ([]models.Match, error) {
	var rows []models.GormMatch
	err := p.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return matchesFromGorm(rows), nil
}

func (p *GormPostgreSQL) ListPlayerMatches(ctx context.Context, playerID int64) ([]models.Match, error) {
	var rows []models.GormMatch
	err := p.db.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", playerID, playerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return matchesFromGorm(rows), nil
}

func (p *GormPostgreSQL) TopPlayers(ctx context.Context, limit int) ([]models.Player, error) {
	var rows []models.GormPlayer
	q := p.db.WithContext(ctx).Order("rating DESC, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Player, 0, len(rows))
	for i := range rows {
		out = append(out, *models.PlayerFromGorm(&rows[i]))
	}
	return out, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
}

// GetMatch 加行锁，事务结束前其他写者等待
func (t *gormTx) GetMatch(id string) (*models.Match, error) {
	var row models.GormMatch
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return models.MatchFromGorm(&row), nil
}

func (t *gormTx) CreateMatch(m *models.Match) error {
	return translate(t.db.Create(models.MatchToGorm(m)).Error)
}

func (t *gormTx) SaveMatch(m *models.Match) error {
	return translate(t.db.Save(models.MatchToGorm(m)).Error)
}

func (t *gormTx) ListMoves(matchID string) ([]models.Move, error) {
	var rows []models.GormMove
	if err := t.db.Where("match_id = ?", matchID).Order("move_number").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Move, 0, len(rows))
	for i := range rows {
		out = append(out, models.MoveFromGorm(&rows[i]))
	}
	return out, nil
}

func (t *gormTx) AppendMove(mv *models.Move) error {
	row := models.MoveToGorm(mv)
	row.ID = 0
	if err := t.db.Create(row).Error; err != nil {
		return translate(err)
	}
	mv.ID = row.ID
	return nil
}

func (t *gormTx) GetPlayer(id int64) (*models.Player, error) {
	var row models.GormPlayer
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return models.PlayerFromGorm(&row), nil
}

// EnsurePlayer 不存在则插入默认记录，并发插入由 ON CONFLICT 吸收
func (t *gormTx) EnsurePlayer(id int64, username string, now time.Time) (*models.Player, error) {
	row := models.PlayerToGorm(models.NewPlayer(id, username, now))
	err := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	if err != nil {
		return nil, translate(err)
	}
	p, err := t.GetPlayer(id)
	if err != nil {
		return nil, err
	}
	if username != "" && p.Username != username {
		p.Username = username
		p.UpdatedAt = now
		return p, t.SavePlayer(p)
	}
	return p, nil
}

func (t *gormTx) SavePlayer(p *models.Player) error {
	return translate(t.db.Save(models.PlayerToGorm(p)).Error)
}

func (t *gormTx) FindOpenMatches(excludeOwner int64, limit int) ([]models.Match, error) {
	var rows []models.GormMatch
	q := t.db.
		Where("status = ? AND player1_id <> ?", string(models.StatusWaiting), excludeOwner).
		Order("created_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return matchesFromGorm(rows), nil
}

func (t *gormTx) FindWaitingByOwner(owner int64) ([]models.Match, error) {
	var rows []models.GormMatch
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND player1_id = ?", string(models.StatusWaiting), owner).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return matchesFromGorm(rows), nil
}

func matchesFromGorm(rows []models.GormMatch) []models.Match {
	out := make([]models.Match, 0, len(rows))
	for i := range rows {
		out = append(out, *models.MatchFromGorm(&rows[i]))
	}
	return out
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
