// Package main реализует точку входа службы заметок.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	rediscache "opennotes/internal/notes/adapters/cache"
	"opennotes/internal/notes/adapters/grpc"
	httpapi "opennotes/internal/notes/adapters/http"
	"opennotes/internal/notes/adapters/http/notes"
	prefhttp "opennotes/internal/notes/adapters/http/preferences"
	"opennotes/internal/notes/adapters/postgres"
	"opennotes/internal/notes/adapters/redis"
	"opennotes/internal/notes/app"
	"opennotes/internal/notes/config"
	"opennotes/internal/notes/db"
	"opennotes/internal/notes/i18n"
	"opennotes/internal/notes/preferences"
	"opennotes/internal/notes/remote"
	"opennotes/internal/notes/resilience"
	"opennotes/internal/notes/session"
	pkgredis "opennotes/pkg/db/redis"
	"opennotes/pkg/logger"
	"opennotes/pkg/shutdown"
)

// Константы для переменных окружения.
const (
	EnvLoggerMode  = "NOTES_LOGGER_MODE"
	EnvLoggerLevel = "NOTES_LOGGER_LEVEL"
)

// Константы для сообщений об ошибках.
const (
	ErrInitLogger           = "failed to initialize logger"
	ErrSyncLogger           = "failed to sync logger"
	ErrLoadConfig           = "failed to load configuration"
	ErrInitLoggerWithConfig = "failed to initialize logger with configuration settings"
	ErrInitDB               = "failed to initialize database"
	ErrInitRedis            = "failed to initialize redis client"
	ErrStartStore           = "failed to start note store"
	ErrStartGRPC            = "failed to start gRPC server"
	ErrStartHTTP            = "failed to start HTTP server"
)

// Константы для игнорируемых ошибок.
const (
	ErrSyncStderr = "sync /dev/stderr: invalid argument"
	ErrSyncStdout = "sync /dev/stdout: invalid argument"
)

// Константы для сообщений сервиса.
const (
	LogServiceStarted      = "note service started"
	LogServiceShutdownDone = "note service shutdown complete"
	LogInitialLoadFailed   = "initial note load failed, serving empty collection"
	LogInitRepo            = "initializing repositories"
	LogInitStore           = "initializing note store"
	LogInitSessions        = "initializing editing sessions"
	LogInitHandlers        = "initializing HTTP handlers"
	LogStartingHTTP        = "starting HTTP server"
	LogStartingGRPC        = "starting gRPC server"
	LogClosingSessions     = "flushing editing sessions"
	LogStoppingStore       = "stopping note store"
	LogStoppingHTTP        = "stopping HTTP server"
	LogStoppingGRPC        = "stopping gRPC server"
	LogClosingRedis        = "closing redis connection"
	LogClosingDB           = "closing database connections"
)

const readinessInterval = 5 * time.Second

func main() {
	env := logger.Development
	if strings.ToLower(os.Getenv(EnvLoggerMode)) == "production" {
		env = logger.Production
	}

	log, err := logger.NewLogger(env, os.Getenv(EnvLoggerLevel))
	if err != nil {
		panic(ErrInitLogger + ": " + err.Error())
	}

	logger.SetGlobalLogger(log)

	ctx := logger.NewRequestIDContext(context.Background(), "")

	var exitCode int

	func() {
		defer func() {
			if err := log.Sync(); err != nil {
				errMsg := err.Error()
				if strings.Contains(errMsg, ErrSyncStderr) || strings.Contains(errMsg, ErrSyncStdout) {
					return
				}
				if _, writeErr := fmt.Fprintf(os.Stderr, "%s: %v\n", ErrSyncLogger, err); writeErr != nil {
					panic(writeErr)
				}
			}
		}()

		cfg, err := config.Load(ctx)
		if err != nil {
			log.Error(ctx, ErrLoadConfig, zap.Error(err))
			exitCode = 1
			return
		}

		finalLogger, err := logger.NewLogger(cfg.Logging.GetEnvironment(), cfg.Logging.Level)
		if err != nil {
			log.Error(ctx, ErrInitLoggerWithConfig, zap.Error(err))
			exitCode = 1
			return
		}
		logger.SetGlobalLogger(finalLogger)
		log = finalLogger
		ctx = logger.NewContext(ctx, log)

		database, err := db.New(ctx, &cfg.Postgres)
		if err != nil {
			log.Error(ctx, ErrInitDB, zap.Error(err))
			exitCode = 1
			return
		}

		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis.ClientConfig())
		if err != nil {
			log.Error(ctx, ErrInitRedis, zap.Error(err))
			if closeErr := database.Close(ctx); closeErr != nil {
				log.Warn(ctx, LogClosingDB, zap.Error(closeErr))
			}
			exitCode = 1
			return
		}

		log.Info(ctx, LogServiceStarted,
			zap.String("environment", string(cfg.Logging.GetEnvironment())),
			zap.String("log_level", cfg.Logging.Level),
			zap.String("startup_time", time.Now().Format(time.RFC3339)))

		log.Info(ctx, LogInitRepo)
		repo := resilience.NewGuardedRepository(postgres.NewNoteRepository(database.Pool()), resilience.Config{
			ErrorThreshold:   cfg.Realtime.BreakerErrorThreshold,
			SuccessThreshold: cfg.Realtime.BreakerSuccessThreshold,
			Timeout:          cfg.Realtime.BreakerTimeout,
		})
		feed := redis.NewChangeFeed(redisClient.Raw(), cfg.Realtime.Channel)

		log.Info(ctx, LogInitStore)
		store := app.NewSyncStore(remote.NewStore(repo, feed))
		if err := store.Start(ctx); err != nil {
			if !errors.Is(err, app.ErrInitialLoad) {
				log.Error(ctx, ErrStartStore, zap.Error(err))
				closeAll(ctx, redisClient, database)
				exitCode = 1
				return
			}
			log.Warn(ctx, LogInitialLoadFailed, zap.Error(err))
		}

		log.Info(ctx, LogStartingGRPC)
		grpcServer := grpc.New(&cfg.GRPC)
		if err := grpcServer.Start(ctx); err != nil {
			log.Error(ctx, ErrStartGRPC, zap.Error(err))
			if stopErr := store.Stop(ctx); stopErr != nil {
				log.Warn(ctx, LogStoppingStore, zap.Error(stopErr))
			}
			closeAll(ctx, redisClient, database)
			exitCode = 1
			return
		}

		log.Info(ctx, LogInitSessions)
		sessions := session.NewManager(store, session.Config{
			Debounce:     cfg.Sessions.Debounce,
			IdleTimeout:  cfg.Sessions.IdleTimeout,
			ReapInterval: cfg.Sessions.ReapInterval,
		})
		runCtx, stopRun := context.WithCancel(ctx)
		defer stopRun()
		go sessions.Run(runCtx)

		log.Info(ctx, LogInitHandlers)
		catalog := i18n.MustLoad()
		prefService := preferences.NewService(
			rediscache.NewRedisCache(redisClient.Raw(), "", cfg.Realtime.PreferencesTTL),
			cfg.Realtime.PreferencesTTL,
		)
		prefHandler := prefhttp.NewHandler(prefService, catalog)
		notesHandler := notes.NewHandler(store, sessions, prefHandler, catalog)

		fiberApp := fiber.New(fiber.Config{
			ReadTimeout: cfg.HTTP.ReadTimeout,
			IdleTimeout: cfg.HTTP.IdleTimeout,
		})
		httpapi.SetupRouter(fiberApp, ctx, httpapi.Handlers{Notes: notesHandler, Preferences: prefHandler})

		log.Info(ctx, LogStartingHTTP, zap.String("address", cfg.HTTP.GetAddress()))
		go func() {
			if err := fiberApp.Listen(cfg.HTTP.GetAddress(), fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
				log.Error(ctx, ErrStartHTTP, zap.Error(err))
			}
		}()

		go grpcServer.TrackReadiness(runCtx, store.Ready, readinessInterval)

		shutdown.Wait(ctx, cfg.Shutdown.GetTimeout(), shutdown.Sequence(
			func(ctx context.Context) error {
				log.Info(ctx, LogStoppingHTTP)
				notesHandler.Close()
				return fiberApp.ShutdownWithContext(ctx)
			},
			func(ctx context.Context) error {
				stopRun()
				log.Info(ctx, LogClosingSessions, zap.Int("sessions", sessions.Len()))
				return sessions.CloseAll(ctx)
			},
			func(ctx context.Context) error {
				log.Info(ctx, LogStoppingStore)
				return store.Stop(ctx)
			},
			func(ctx context.Context) error {
				log.Info(ctx, LogStoppingGRPC)
				return grpcServer.Stop(ctx)
			},
			func(ctx context.Context) error {
				log.Info(ctx, LogClosingRedis)
				return redisClient.Close(ctx)
			},
			func(ctx context.Context) error {
				log.Info(ctx, LogClosingDB)
				return database.Close(ctx)
			},
		))

		log.Info(ctx, LogServiceShutdownDone)
	}()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func closeAll(ctx context.Context, redisClient *pkgredis.Client, database *db.DB) {
	log := logger.Log(ctx)
	if err := redisClient.Close(ctx); err != nil {
		log.Warn(ctx, LogClosingRedis, zap.Error(err))
	}
	if err := database.Close(ctx); err != nil {
		log.Warn(ctx, LogClosingDB, zap.Error(err))
	}
}
