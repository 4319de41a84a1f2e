package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/gomoku/config"
	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/persistence"
	"github.com/wfunc/gomoku/server"
)

func openStore(cfg *config.Config) (persistence.Database, error) {
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case config.DriverGorm:
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case config.DriverSQL:
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		logger.Log.Warn("Using the in-memory store; state is lost on restart.")
		return persistence.NewMemoryStore(), nil
	}
}

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Infof("Database ready (driver %s).", cfg.Database.Driver)

	gameServer := server.NewGameServer(cfg, db)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gameServer.Shutdown(shutdownCtx)
}
