package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opennotes/internal/notes/adapters/postgres"
	"opennotes/internal/notes/adapters/redis"
	"opennotes/internal/notes/config"
	"opennotes/internal/notes/db"
	"opennotes/internal/notes/ports/services"
	"opennotes/internal/notes/remote"
	pkgredis "opennotes/pkg/db/redis"
	"opennotes/pkg/logger"
)

// Константы для сообщений утилиты.
const (
	ErrInitLogger  = "failed to initialize logger"
	ErrLoadConfig  = "failed to load configuration"
	ErrOpenBackend = "failed to open note backend"
	LogCloseFailed = "failed to close backend"
)

// Backend открывает удаленное хранилище и возвращает функцию его закрытия.
type Backend func(ctx context.Context, cfg *config.Config) (services.RemoteStore, func(context.Context) error, error)

type cli struct {
	verbose bool
	cfg     *config.Config
	backend Backend
}

func newRootCmd(backend Backend) *cobra.Command {
	c := &cli{backend: backend}

	root := &cobra.Command{
		Use:           "notesctl",
		Short:         "Maintenance tool for the OpenNotes note table",
		Long:          `notesctl applies migrations, inspects the shared note table and follows its change channel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if c.verbose {
				level = "debug"
			}
			log, err := logger.NewLogger(logger.Development, level)
			if err != nil {
				return fmt.Errorf("%s: %w", ErrInitLogger, err)
			}
			logger.SetGlobalLogger(log)

			ctx := logger.NewContext(cmd.Context(), log)
			cmd.SetContext(ctx)

			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", ErrLoadConfig, err)
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newMigrateCmd(c),
		newListCmd(c),
		newAddCmd(c),
		newWatchCmd(c),
		newPurgeCmd(c),
	)
	return root
}

// withStore открывает хранилище на время выполнения fn.
func (c *cli) withStore(ctx context.Context, fn func(store services.RemoteStore) error) (err error) {
	store, closeFn, err := c.backend(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrOpenBackend, err)
	}
	defer func() {
		if closeErr := closeFn(context.WithoutCancel(ctx)); closeErr != nil {
			logger.Log(ctx).Warn(ctx, LogCloseFailed, zap.Error(closeErr))
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(store)
}

// connectBackend подключается к PostgreSQL и Redis без применения миграций.
func connectBackend(ctx context.Context, cfg *config.Config) (services.RemoteStore, func(context.Context) error, error) {
	database, err := db.Connect(ctx, &cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}

	client, err := pkgredis.NewClient(ctx, cfg.Redis.ClientConfig())
	if err != nil {
		return nil, nil, errors.Join(err, database.Close(ctx))
	}

	store := remote.NewStore(
		postgres.NewNoteRepository(database.Pool()),
		redis.NewChangeFeed(client.Raw(), cfg.Realtime.Channel),
	)
	closeFn := func(ctx context.Context) error {
		return errors.Join(client.Close(ctx), database.Close(ctx))
	}
	return store, closeFn, nil
}
