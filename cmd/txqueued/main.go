package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/alfanzaky/txqueue/config"
	"github.com/alfanzaky/txqueue/internal/codec"
	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/internal/engine"
	apihandler "github.com/alfanzaky/txqueue/internal/handler/api"
	"github.com/alfanzaky/txqueue/internal/queue"
	"github.com/alfanzaky/txqueue/internal/repository/memory"
	"github.com/alfanzaky/txqueue/internal/repository/postgres"
	redisrepo "github.com/alfanzaky/txqueue/internal/repository/redis"
	"github.com/alfanzaky/txqueue/internal/store"
	"github.com/alfanzaky/txqueue/internal/worker"
	"github.com/alfanzaky/txqueue/pkg/auth"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/metrics"
	"github.com/alfanzaky/txqueue/pkg/observability"
)

func main() {
	issueSubject := flag.String("issue-token", "", "Print an access token for this subject and exit")
	issueRole := flag.String("role", "ADMIN", "Role of the issued token")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	if *issueSubject != "" {
		token, err := auth.NewJWTAuthService(cfg.Auth).GenerateAccessToken(*issueSubject, *issueRole)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	// Initialize logger
	logger.Init(cfg.App.Environment)
	defer logger.Close()

	if cfg.App.IsDevelopment() {
		cfg.Print()
	}

	metricsHandler := observability.NewMetricsHandler(cfg.App.Name)
	recorder := metrics.NewQueueRecorder(cfg.Queue.ID)

	// Initialize commit backend
	backend, closeBackend, err := openBackend(cfg, metricsHandler)
	if err != nil {
		logger.Fatal("Failed to initialize commit backend",
			logger.String("backend", cfg.Backend.Kind),
			logger.ErrorField(err),
		)
	}
	defer closeBackend()

	// Restore the queue; durable records left by a previous run are committed first
	q, err := openQueue(cfg.Queue, recorder)
	if err != nil {
		logger.Fatal("Failed to open transaction queue",
			logger.String("dir", cfg.Queue.Dir),
			logger.String("queue_id", cfg.Queue.ID),
			logger.ErrorField(err),
		)
	}

	commitEngine, err := engine.New[domain.Transaction](q, worker.NewCommitFunc(backend),
		engine.WithName[domain.Transaction](cfg.Queue.ID),
		engine.WithRetryPolicy[domain.Transaction](engine.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		engine.WithDeadLetter[domain.Transaction](worker.DeadLetterLogger),
		engine.WithMetrics[domain.Transaction](recorder),
		engine.WithCommitTimeout[domain.Transaction](cfg.Queue.CommitTimeout),
	)
	if err != nil {
		logger.Fatal("Failed to start commit engine", logger.ErrorField(err))
	}
	metricsHandler.RegisterCheck("engine", func(context.Context) error {
		if !commitEngine.Running() {
			return engine.ErrEngineClosed
		}
		return nil
	})

	// Start background queue monitor
	monitor := worker.NewQueueMonitor(commitEngine, worker.QueueMonitorConfig{
		PollingInterval: cfg.Queue.MonitorInterval,
		WarnDepth:       cfg.Queue.WarnDepth,
	})
	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()
	go monitor.Start(monitorCtx)

	// Set Gin mode
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	authService := auth.NewJWTAuthService(cfg.Auth)
	transactionHandler := apihandler.NewTransactionHandler(commitEngine, apihandler.QueueInfo{
		ID:         cfg.Queue.ID,
		Durability: cfg.Queue.Durability,
		Backend:    cfg.Backend.Kind,
	}, cfg.API.MaxRequestSize)

	router := gin.New()
	router.Use(observability.ObservabilityMiddleware())
	router.Use(apihandler.RecoveryMiddleware())
	router.Use(apihandler.CORSMiddleware())

	metricsHandler.Register(router)
	apihandler.SetupRoutes(router, transactionHandler, authService)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			logger.String("port", cfg.App.Port),
			logger.String("environment", cfg.App.Environment),
			logger.String("durability", cfg.Queue.Durability),
			logger.String("backend", cfg.Backend.Kind),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	monitorCancel()

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	// Stop accepting producers before draining the engine
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	if err := commitEngine.Close(ctx); err != nil {
		logger.Error("Commit engine did not drain before deadline",
			logger.Int("depth", commitEngine.Depth()),
			logger.ErrorField(err),
		)
	}

	logger.Info("Server exited", logger.Int("remaining_transactions", commitEngine.Depth()))
}

func openQueue(cfg config.QueueConfig, observer queue.Observer) (queue.Queue[domain.Transaction], error) {
	if cfg.Durability == config.DurabilityNone {
		logger.Warn("Queue durability disabled, unprocessed transactions are lost on restart")
		return queue.NewNonDurable[domain.Transaction](), nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}
	s, err := store.Open(cfg.Dir, cfg.ID,
		store.WithAtomicWrite(cfg.AtomicWrite),
		store.WithSync(cfg.Sync),
	)
	if err != nil {
		return nil, err
	}

	c, err := codec.NewBinaryCodec[domain.Transaction]()
	if err != nil {
		return nil, err
	}

	if cfg.Durability == config.DurabilityPartial {
		return queue.OpenPartiallyDurable[domain.Transaction](s, c, queue.WithObserver(observer))
	}
	return queue.OpenFullyDurable[domain.Transaction](s, c, queue.WithObserver(observer))
}

func openBackend(cfg *config.Config, health *observability.MetricsHandler) (domain.CommitRepository, func(), error) {
	switch cfg.Backend.Kind {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		repo := redisrepo.NewCommitRepository(rdb, cfg.Backend.RedisPrefix)
		if err := repo.Ping(context.Background()); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		health.RegisterCheck("redis", repo.Ping)
		logger.Info("Redis connection established", logger.String("addr", cfg.Redis.GetRedisAddr()))
		return repo, func() { _ = rdb.Close() }, nil

	case config.BackendPostgres:
		db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db.SetMaxIdleConns(cfg.Database.MaxIdle)
		db.SetMaxOpenConns(cfg.Database.MaxOpen)
		db.SetConnMaxLifetime(cfg.Database.MaxLife)

		repo := postgres.NewCommitRepository(db, cfg.Backend.Table)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		health.RegisterCheck("postgres", repo.Ping)
		logger.Info("Database connection established", logger.String("table", cfg.Backend.Table))
		return repo, func() { _ = db.Close() }, nil

	default:
		logger.Warn("Using in-memory commit backend")
		return memory.NewCommitRepository(), func() {}, nil
	}
}
