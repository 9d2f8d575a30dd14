// Package db предоставляет функционал для работы с базой данных сервиса заметок.
package db

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"opennotes/internal/notes/config"
	"opennotes/pkg/db/postgres"
	"opennotes/pkg/logger"
)

// Константы для сообщений logger.
const (
	LogDBInitializing    = "initializing notes database"
	LogDBInitialized     = "notes database initialized successfully"
	LogMigrationStarting = "starting database migrations for notes service"
)

// Константы для сообщений об ошибках.
const (
	ErrDBMigrations      = "failed to apply notes database migrations"
	ErrDBConnection      = "failed to connect to notes database"
	ErrGetPath           = "failed to get path"
	ErrDBCheckConnection = "error checking the database connection"
)

const filePrefix = "file://"

// DB представляет соединение с базой данных сервиса заметок.
type DB struct {
	database *postgres.Database
}

// MigrationsPath возвращает file:// URL каталога миграций.
func MigrationsPath(dir string) (string, error) {
	if strings.HasPrefix(dir, filePrefix) {
		return dir, nil
	}
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("%s: %w", ErrGetPath, err)
		}
		dir = abs
	}
	return filePrefix + filepath.ToSlash(dir), nil
}

// Migrate применяет миграции из каталога cfg.MigrationsDir и возвращает
// итоговую версию схемы.
func Migrate(ctx context.Context, cfg *config.PostgresConfig) (postgres.Version, error) {
	path, err := MigrationsPath(cfg.MigrationsDir)
	if err != nil {
		return postgres.Version{}, fmt.Errorf("%s: %w", ErrDBMigrations, err)
	}

	logger.Log(ctx).Info(ctx, LogMigrationStarting, zap.String("migrations_path", path))
	version, err := postgres.MigrateDSN(ctx, cfg.GetConnectionURL(), path)
	if err != nil {
		return postgres.Version{}, fmt.Errorf("%s: %w", ErrDBMigrations, err)
	}
	return version, nil
}

// Connect открывает пул без применения миграций.
func Connect(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	logger.Log(ctx).Info(ctx, LogDBInitializing,
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Int("min_conn", cfg.MinConn),
		zap.Int("max_conn", cfg.MaxConn))

	database, err := postgres.New(ctx, postgres.PoolConfig{
		DSN:             cfg.GetDSN(),
		MinConns:        cfg.MinConn,
		MaxConns:        cfg.MaxConn,
		MaxConnLifetime: cfg.MaxConnLifetime,
		MaxConnIdleTime: cfg.MaxConnIdleTime,
		ApplicationName: cfg.ApplicationName,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrDBConnection, err)
	}

	logger.Log(ctx).Info(ctx, LogDBInitialized)
	return &DB{database: database}, nil
}

// New инициализирует соединение с базой данных, предварительно применив миграции.
func New(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	if _, err := Migrate(ctx, cfg); err != nil {
		return nil, err
	}
	return Connect(ctx, cfg)
}

// Close закрывает соединение с базой данных.
func (db *DB) Close(ctx context.Context) error {
	return db.database.Close(ctx)
}

// Pool возвращает пул соединений с базой данных.
func (db *DB) Pool() *pgxpool.Pool {
	return db.database.Pool()
}

// Ping проверяет соединение с базой данных.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.database.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", ErrDBCheckConnection, err)
	}
	return nil
}
