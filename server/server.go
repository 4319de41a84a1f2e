package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wfunc/gomoku/config"
	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/monitor"
	"github.com/wfunc/gomoku/persistence"
	"github.com/wfunc/gomoku/room"
	"github.com/wfunc/gomoku/rpc"
	"github.com/wfunc/gomoku/services"
)

// HeartbeatInterval websocket 读超时为两倍间隔
const HeartbeatInterval = 30 * time.Second

// GameServer 装配服务与全部传输层
type GameServer struct {
	cfg       *config.Config
	db        persistence.Database
	monitor   *monitor.Monitor
	games     *services.GameService
	players   *services.PlayerService
	sweeper   *services.Sweeper
	app       *fiber.App
	ws        *WSServer
	wsServer  *http.Server
	rpcServer *rpc.Server
	health    *rpc.HealthServer
	metrics   *http.Server
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	mon := monitor.NewMonitor("gomoku")
	games := services.NewGameService(db, room.NewRoomManager(), nil, mon, services.Options{
		InactivityTimeout: cfg.Game.InactivityTimeout,
		SingleOpenMatch:   cfg.Game.SingleOpenMatch,
	})
	players := services.NewPlayerService(db)

	s := &GameServer{
		cfg:     cfg,
		db:      db,
		monitor: mon,
		games:   games,
		players: players,
		sweeper: services.NewSweeper(games, db, cfg.Game.SweepInterval),
		app:     NewApp(NewAPI(games, players)),
		ws:      NewWSServer(games, players, HeartbeatInterval),
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", s.ws)
	s.wsServer = &http.Server{Addr: cfg.Server.WSAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Start 启动全部监听，返回前任一启动失败都会回收已启动的部分
func (s *GameServer) Start() error {
	rpcServer, err := rpc.NewServer(s.cfg.Server.RPCAddress, s.players)
	if err != nil {
		return err
	}
	s.rpcServer = rpcServer
	go s.rpcServer.Start()

	health, err := rpc.NewHealthServer(s.cfg.Server.HealthAddress)
	if err != nil {
		s.rpcServer.Stop()
		return err
	}
	s.health = health
	go s.health.Start()

	if err := s.sweeper.Start(); err != nil {
		s.rpcServer.Stop()
		s.health.Stop()
		return err
	}

	s.metrics = s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	go func() {
		logger.Log.Infof("Websocket server listening on %s", s.cfg.Server.WSAddress)
		if err := s.wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("Websocket server stopped: %v", err)
		}
	}()

	go func() {
		logger.Log.Infof("HTTP server listening on %s", s.cfg.Server.HTTPAddress)
		if err := s.app.Listen(s.cfg.Server.HTTPAddress); err != nil {
			logger.Log.Errorf("HTTP server stopped: %v", err)
		}
	}()

	s.health.SetServing(true)
	return nil
}

// Shutdown 先摘流量再停后台任务，最后关闭存储
func (s *GameServer) Shutdown(ctx context.Context) {
	if s.health != nil {
		s.health.SetServing(false)
	}

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		logger.Log.Errorf("HTTP shutdown: %v", err)
	}
	s.ws.Shutdown()
	if err := s.wsServer.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Websocket shutdown: %v", err)
	}
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	if err := s.sweeper.Stop(); err != nil {
		logger.Log.Errorf("Sweeper shutdown: %v", err)
	}
	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}
	if s.health != nil {
		s.health.Stop()
	}
	if err := s.db.Close(); err != nil {
		logger.Log.Errorf("Database close: %v", err)
	}
	logger.Log.Info("Game server stopped.")
}
