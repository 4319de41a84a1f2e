// services/sweeper.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/persistence"
)

// Sweeper 定时扫描进行中的对局，判负超时未心跳的玩家
type Sweeper struct {
	games     *GameService
	db        persistence.Database
	interval  time.Duration
	scheduler gocron.Scheduler
}

func NewSweeper(games *GameService, db persistence.Database, interval time.Duration) *Sweeper {
	return &Sweeper{games: games, db: db, interval: interval}
}

// Start schedules the sweep every interval on the service clock. It is a no-op
// when interval is not positive.
func (s *Sweeper) Start() error {
	if s.interval <= 0 {
		return nil
	}
	sched, err := gocron.NewScheduler(gocron.WithClock(s.games.Clock()))
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.RunOnce(context.Background()); err != nil {
				logger.Log.Errorf("[Sweeper] sweep failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	s.scheduler = sched
	logger.Log.Infof("[Sweeper] started, interval %s", s.interval)
	return nil
}

// RunOnce sweeps every match in play and returns how many were forfeited.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	playing, err := s.db.ListMatchesByStatus(ctx, models.StatusPlaying)
	if err != nil {
		return 0, wrapTransient(err)
	}

	closed := 0
	for _, m := range playing {
		ok, err := s.games.SweepMatch(ctx, m.ID)
		if err != nil {
			logger.Log.Warnf("[Sweeper] match %s: %v", m.ID, err)
			continue
		}
		if ok {
			closed++
		}
	}
	if closed > 0 {
		logger.Log.Infof("[Sweeper] forfeited %d silent matches", closed)
	}
	return closed, nil
}

func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
