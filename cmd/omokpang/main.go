package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omokpang/omokpang/internal/application/account"
	"github.com/omokpang/omokpang/internal/application/matchmaking"
	"github.com/omokpang/omokpang/internal/application/room"
	"github.com/omokpang/omokpang/internal/application/workers"
	"github.com/omokpang/omokpang/internal/config"
	"github.com/omokpang/omokpang/internal/domain/game"
	eventmem "github.com/omokpang/omokpang/pkg/adapters/events/memory"
	"github.com/omokpang/omokpang/pkg/adapters/events/redis"
	"github.com/omokpang/omokpang/pkg/adapters/metrics/prometheus"
	storemem "github.com/omokpang/omokpang/pkg/adapters/storage/memory"
	"github.com/omokpang/omokpang/pkg/adapters/storage/postgres"
	redisstorage "github.com/omokpang/omokpang/pkg/adapters/storage/redis"
	"github.com/omokpang/omokpang/pkg/api/grpc"
	"github.com/omokpang/omokpang/pkg/api/http"
	"github.com/omokpang/omokpang/pkg/api/websocket"
	"github.com/omokpang/omokpang/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting OmokPang server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()

	// Database
	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		logger.Fatal("invalid database configuration", zap.Error(err))
	}
	db, err := postgres.Open(dsn, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	// Event bus and room snapshots
	var (
		redisClient *goredis.Client
		eventBus    ports.EventBus
		roomStore   ports.RoomStore
	)
	if cfg.Redis.Disabled {
		logger.Warn("Redis disabled, using in-memory events and room snapshots")
		eventBus = eventmem.NewInMemoryEventBus(logger)
		roomStore = storemem.NewInMemoryRoomStore()
	} else {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		eventBus = redis.NewStreamsEventBus(
			redisClient,
			"omokpang-settlers",
			fmt.Sprintf("omokpang-%d", os.Getpid()),
			logger,
		)
		roomStore = redisstorage.NewRoomStore(redisClient, cfg.Redis.RoomTTL, logger)
	}

	metricsCollector := prometheus.NewCollector(promclient.DefaultRegisterer)

	// Account services
	userRepo := postgres.NewUserRepository(db, logger)
	authService := account.NewAuthService(userRepo, logger)
	pointService := account.NewPointService(userRepo, logger)
	cardService := account.NewCardService(pointService, cfg.Game.RerollCost, nil, logger)
	rankingService := account.NewRankingService(userRepo)
	resultService := account.NewResultService(userRepo, logger)

	// Game
	roomMgr := room.NewManager(
		cardService,
		roomStore,
		eventBus,
		metricsCollector,
		room.NewValidator(),
		room.Rules{
			TurnTimeout:       cfg.Game.TurnTimeout,
			TimeLockTimeout:   cfg.Game.TimeLockTimeout,
			CardSelectTimeout: cfg.Game.CardSelectTimeout,
			ShieldWindow:      cfg.Game.ShieldWindow,
			WinPoints:         cfg.Game.WinPoints,
			LosePoints:        cfg.Game.LosePoints,
		},
		logger,
	)

	matchmaker := matchmaking.NewMatchmaker(func(mode game.Mode, players []ports.Player) error {
		_, err := roomMgr.CreateRoom(mode, players)
		return err
	}, metricsCollector, logger)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		eventBus,
		resultService,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:      cfg.HTTPPort,
		Accounts:  authService,
		Ranking:   rankingService,
		Cards:     cardService,
		Rooms:     roomStore,
		Counter:   roomMgr,
		AuthRate:  cfg.Auth.Rate,
		AuthBurst: cfg.Auth.Burst,
		Logger:    logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(matchmaker, roomMgr, authService, metricsCollector, logger)
	httpServer.SetupWebSocket(wsHandler.HandleConnection)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("OmokPang server started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Bool("redis", !cfg.Redis.Disabled),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Rooms are aborted before connections close so players see room_closed
	if err := roomMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("room manager shutdown error", zap.Error(err))
	}

	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		logger.Error("WebSocket shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	if err := postgres.CloseDB(db); err != nil {
		logger.Error("database close error", zap.Error(err))
	}

	logger.Info("OmokPang server shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
