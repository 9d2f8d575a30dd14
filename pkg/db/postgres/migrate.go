package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"opennotes/pkg/logger"
)

// Константы для сообщений об ошибках миграций.
const (
	ErrCreateMigrationInstance = "failed to create migration instance"
	ErrApplyMigrations         = "failed to apply migrations"
	ErrReadVersion             = "failed to read schema version"
)

// LogMigrateCloseFailed сообщает об ошибке освобождения ресурсов мигратора.
const LogMigrateCloseFailed = "failed to close migration instance"

// Version описывает состояние схемы после миграций. Нулевой Number
// означает, что ни одной миграции не применено.
type Version struct {
	Number uint
	Dirty  bool
}

// MigrateDSN применяет миграции из migrationsPath (URL вида file://...) и
// возвращает итоговую версию. Отсутствие новых миграций ошибкой не считается.
func MigrateDSN(ctx context.Context, dsn string, migrationsPath string) (Version, error) {
	log := logger.Log(ctx).With(zap.String("path", migrationsPath))

	m, err := migrate.New(migrationsPath, dsn)
	if err != nil {
		log.Error(ctx, ErrCreateMigrationInstance, zap.Error(err))
		return Version{}, fmt.Errorf("%s: %w", ErrCreateMigrationInstance, err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn(ctx, LogMigrateCloseFailed, zap.NamedError("source_error", srcErr), zap.NamedError("database_error", dbErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error(ctx, ErrApplyMigrations, zap.Error(err))
		return Version{}, fmt.Errorf("%s: %w", ErrApplyMigrations, err)
	}

	number, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Error(ctx, ErrReadVersion, zap.Error(err))
		return Version{}, fmt.Errorf("%s: %w", ErrReadVersion, err)
	}

	log.Info(ctx, LogMigrationsApplied, zap.Uint("version", number), zap.Bool("dirty", dirty))
	return Version{Number: number, Dirty: dirty}, nil
}
