// Package cache defines the key-value cache contract.
package cache

import (
	"context"
	"time"
)

// Cache определяет интерфейс для работы с кэшем.
// Отсутствующий ключ читается как пустая строка без ошибки.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// GetMany возвращает значения в порядке keys.
	GetMany(ctx context.Context, keys ...string) ([]string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetMany записывает все значения одной транзакцией.
	SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
