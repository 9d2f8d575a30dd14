// Package realtime defines the change channel contract.
package realtime

import (
	"context"

	"opennotes/internal/notes/domain/entities"
)

// ChangeFeed публикует и доставляет события изменения строк.
type ChangeFeed interface {
	Publish(ctx context.Context, event entities.ChangeEvent) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a live subscription to the change channel.
// Events is closed after Close returns.
type Subscription interface {
	Events() <-chan entities.ChangeEvent
	Close() error
}
