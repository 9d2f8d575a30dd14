// Package repositories defines repository interfaces for the notes service.
package repositories

import (
	"context"
	"time"

	"opennotes/internal/notes/domain/entities"
)

// NoteRepository определяет операции над таблицей notes.
type NoteRepository interface {
	// ListOrdered возвращает все заметки, отсортированные по updated_at по убыванию.
	ListOrdered(ctx context.Context) ([]*entities.Note, error)
	// Insert сохраняет заметку с уже назначенными id и временными метками.
	Insert(ctx context.Context, note *entities.Note) (*entities.Note, error)
	// Update применяет изменения и updatedAt, возвращает строку после фиксации.
	Update(ctx context.Context, id string, update entities.NoteUpdate, updatedAt time.Time) (*entities.Note, error)
	// Delete удаляет строку по id и сообщает, была ли она удалена.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteAll удаляет все строки с created_at >= since и возвращает их id.
	DeleteAll(ctx context.Context, since time.Time) ([]string, error)
}
