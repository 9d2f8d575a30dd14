// Package remote реализует границу удаленного хранилища заметок:
// таблица notes плюс канал изменений, в который объявляется каждая
// зафиксированная запись.
package remote

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/realtime"
	"opennotes/internal/notes/ports/repositories"
	"opennotes/internal/notes/ports/services"
	"opennotes/pkg/logger"
)

// Константы для логирования.
const (
	LogPublishFailed = "write committed but change event was not published"
	LogDeletedAll    = "all notes deleted"
)

// deleteAllSince выражает безусловное удаление через фильтр по created_at.
var deleteAllSince = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Store реализует services.RemoteStore.
type Store struct {
	repo  repositories.NoteRepository
	feed  realtime.ChangeFeed
	now   func() time.Time
	newID func() string
}

// Option настраивает Store.
type Option func(*Store)

// WithClock задает источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator задает генератор идентификаторов.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore создает удаленное хранилище.
func NewStore(repo repositories.NoteRepository, feed realtime.ChangeFeed, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		feed:  feed,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ services.RemoteStore = (*Store)(nil)

// List implements services.RemoteStore.
func (s *Store) List(ctx context.Context) ([]*entities.Note, error) {
	return s.repo.ListOrdered(ctx)
}

// Insert назначает id и временные метки и сохраняет заметку с обрезанным содержимым.
func (s *Store) Insert(ctx context.Context, content string, color entities.Color) (*entities.Note, error) {
	now := s.timestamp()
	note := &entities.Note{
		ID:        s.newID(),
		Content:   strings.TrimSpace(content),
		ColorTag:  color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	saved, err := s.repo.Insert(ctx, note)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.EventInsert, *saved)
	return saved, nil
}

// Update применяет изменения и обновляет updated_at.
func (s *Store) Update(ctx context.Context, id string, update entities.NoteUpdate) (*entities.Note, error) {
	saved, err := s.repo.Update(ctx, id, update, s.timestamp())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.EventUpdate, *saved)
	return saved, nil
}

// Delete удаляет заметку. Событие публикуется, только если строка существовала.
func (s *Store) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	if deleted {
		s.publish(ctx, entities.EventDelete, entities.Note{ID: id})
	}
	return nil
}

// DeleteAll удаляет все заметки и публикует DELETE для каждой.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	ids, err := s.repo.DeleteAll(ctx, deleteAllSince)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.publish(ctx, entities.EventDelete, entities.Note{ID: id})
	}

	logger.Log(ctx).Info(ctx, LogDeletedAll, zap.Int("count", len(ids)))
	return len(ids), nil
}

// Subscribe implements services.RemoteStore.
func (s *Store) Subscribe(ctx context.Context) (realtime.Subscription, error) {
	return s.feed.Subscribe(ctx)
}

// publish не возвращает ошибку: запись уже зафиксирована.
func (s *Store) publish(ctx context.Context, eventType entities.EventType, record entities.Note) {
	event := entities.NewChangeEvent(eventType, record)
	if err := s.feed.Publish(ctx, event); err != nil {
		logger.Log(ctx).Warn(ctx, LogPublishFailed,
			zap.String("event_type", string(eventType)),
			zap.String("noteID", record.ID),
			zap.Error(err))
	}
}

// timestamp округляет время до микросекунд, как его хранит Postgres.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
