package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/serra/config"
	"github.com/wfunc/serra/events"
	"github.com/wfunc/serra/logger"
	"github.com/wfunc/serra/monitor"
	"github.com/wfunc/serra/persistence"
	"github.com/wfunc/serra/room"
	"github.com/wfunc/serra/rpc"
	"github.com/wfunc/serra/server"
	"github.com/wfunc/serra/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	logger.Init("info")

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mon := monitor.NewMonitor("serra", nil)
	metricsServer := mon.StartServer(cfg.Server.MetricsAddress)

	// Match archive
	db, err := persistence.Open(cfg.Database.Driver, cfg.Database.Postgres.DSN())
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	if db != nil {
		defer db.Close()
		logger.Log.Infof("Database connection successful (%s).", cfg.Database.Driver)
	}

	var publisher services.Publisher
	if cfg.Redis.Address != "" {
		client, err := events.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to redis: %v", err)
		}
		stream := events.NewStreamPublisher(client, cfg.Redis.Stream, cfg.Redis.MaxLen)
		defer stream.Close()
		publisher = stream
		logger.Log.Infof("Publishing finished matches to %s", cfg.Redis.Stream)
	}
	matches := services.NewMatchService(db, publisher)

	// Initialize Game Server
	roomCfg := room.DefaultConfig()
	roomCfg.Rules = cfg.Game.Rules()
	roomCfg.ChatMaxLength = cfg.Game.ChatMaxLength
	roomCfg.ChatHistory = cfg.Game.ChatHistory

	gameServer := server.NewGameServer(server.Options{
		Addr:              cfg.Server.HTTPAddress,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		TickInterval:      cfg.Server.TickInterval,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Room:              roomCfg,
	}, mon, matches)

	// Admin RPC and health
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to listen for RPC: %v", err)
	}
	if err := rpcServer.Register(rpc.NewAdminService(gameServer.RoomManager(), matches)); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	health, err := rpc.NewHealthServer(cfg.Server.GRPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to listen for gRPC health: %v", err)
	}
	go health.Start()
	defer health.Stop()
	health.SetServing(true)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- gameServer.Run(ctx)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Log.Errorf("Game server stopped: %v", err)
		}
	case <-ctx.Done():
		logger.Log.Info("Shutting down...")
	}

	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("Game server shutdown: %v", err)
	}
	metricsServer.Shutdown(shutdownCtx)
	matches.Wait()
}
