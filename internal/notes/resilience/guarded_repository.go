package resilience

import (
	"context"
	"errors"
	"time"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/repositories"
)

// GuardedRepository пропускает вызовы репозитория через Circuit Breaker.
type GuardedRepository struct {
	next    repositories.NoteRepository
	breaker *CircuitBreaker
}

// NewGuardedRepository оборачивает репозиторий. Отсутствие заметки и отмена
// контекста вызывающим отказами хранилища не считаются.
func NewGuardedRepository(next repositories.NoteRepository, config Config) *GuardedRepository {
	if config.IsFailure == nil {
		config.IsFailure = IsStorageFailure
	}
	return &GuardedRepository{
		next:    next,
		breaker: NewCircuitBreaker("notes-repository", config),
	}
}

// IsStorageFailure отделяет отказы хранилища от ожидаемых результатов.
func IsStorageFailure(err error) bool {
	return !errors.Is(err, entities.ErrNoteNotFound) && !errors.Is(err, context.Canceled)
}

// Breaker возвращает используемый Circuit Breaker.
func (g *GuardedRepository) Breaker() *CircuitBreaker {
	return g.breaker
}

// ListOrdered implements repositories.NoteRepository.
func (g *GuardedRepository) ListOrdered(ctx context.Context) ([]*entities.Note, error) {
	var notes []*entities.Note
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		notes, err = g.next.ListOrdered(ctx)
		return err
	})
	return notes, err
}

// Insert implements repositories.NoteRepository.
func (g *GuardedRepository) Insert(ctx context.Context, note *entities.Note) (*entities.Note, error) {
	var saved *entities.Note
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		saved, err = g.next.Insert(ctx, note)
		return err
	})
	return saved, err
}

// Update implements repositories.NoteRepository.
func (g *GuardedRepository) Update(ctx context.Context, id string, update entities.NoteUpdate, updatedAt time.Time) (*entities.Note, error) {
	var saved *entities.Note
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		saved, err = g.next.Update(ctx, id, update, updatedAt)
		return err
	})
	return saved, err
}

// Delete implements repositories.NoteRepository.
func (g *GuardedRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = g.next.Delete(ctx, id)
		return err
	})
	return deleted, err
}

// DeleteAll implements repositories.NoteRepository.
func (g *GuardedRepository) DeleteAll(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ids, err = g.next.DeleteAll(ctx, since)
		return err
	})
	return ids, err
}
