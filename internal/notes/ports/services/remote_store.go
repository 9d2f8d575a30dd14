// Package services defines service interfaces for the notes service.
package services

import (
	"context"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/realtime"
)

// RemoteStore is the boundary to the shared note table and its change channel.
// Every committed write is announced on the channel, including writes made
// through this instance.
type RemoteStore interface {
	List(ctx context.Context) ([]*entities.Note, error)
	Insert(ctx context.Context, content string, color entities.Color) (*entities.Note, error)
	Update(ctx context.Context, id string, update entities.NoteUpdate) (*entities.Note, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
	Subscribe(ctx context.Context) (realtime.Subscription, error)
}
