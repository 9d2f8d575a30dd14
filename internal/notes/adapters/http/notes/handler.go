// Package notes содержит HTTP-обработчики заметок, сессий редактирования и
// потока изменений.
package notes

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"opennotes/internal/notes/adapters/http/dto"
	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/session"
)

// DefaultKeepAlive интервал комментариев keep-alive в потоке событий.
const DefaultKeepAlive = 15 * time.Second

// NoteStore is the synchronization store as seen by the handlers.
type NoteStore interface {
	List(ctx context.Context) ([]*entities.Note, error)
	Add(ctx context.Context, content string, color entities.Color) (*entities.Note, error)
	Update(ctx context.Context, id string, update entities.NoteUpdate) (*entities.Note, error)
	Remove(ctx context.Context, id string) error
	RemoveAll(ctx context.Context) (int, error)
	SetSearchFilter(query string)
	SearchFilter() string
	FilteredBy(query string) []*entities.Note
	Get(id string) (*entities.Note, bool)
	Len() int
	Loading() bool
	Ready() bool
	Watch() (<-chan struct{}, func())
}

// Sessions is the editing session manager as seen by the handlers.
type Sessions interface {
	Open(ctx context.Context, noteID string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Close(ctx context.Context, id string) error
	ConfirmDelete(ctx context.Context, id string) error
	DiscardNote(ctx context.Context, noteID string) bool
	DiscardAll(ctx context.Context) int
}

// LocaleResolver выбирает язык ответа для запроса.
type LocaleResolver interface {
	Locale(c fiber.Ctx) string
}

// Translator переводит ключи сообщений.
type Translator interface {
	T(locale, key string) string
}

// Handler обработчик HTTP-запросов для работы с заметками.
type Handler struct {
	store     NoteStore
	sessions  Sessions
	locales   LocaleResolver
	messages  Translator
	validate  *dto.Validator
	keepAlive time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// Option настраивает Handler.
type Option func(*Handler)

// WithKeepAlive задает интервал keep-alive потока событий.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// NewHandler создает новый экземпляр обработчика заметок.
func NewHandler(store NoteStore, sessions Sessions, locales LocaleResolver, messages Translator, opts ...Option) *Handler {
	h := &Handler{
		store:     store,
		sessions:  sessions,
		locales:   locales,
		messages:  messages,
		validate:  dto.NewValidator(),
		keepAlive: DefaultKeepAlive,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Close завершает открытые потоки событий. Вызывается перед остановкой сервера.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// confirmed сообщает, передан ли параметр confirm=true.
func confirmed(c fiber.Ctx) bool {
	ok, err := strconv.ParseBool(c.Query("confirm"))
	return err == nil && ok
}

// searchQuery возвращает параметр q и признак его наличия.
func searchQuery(c fiber.Ctx) (string, bool) {
	if !c.RequestCtx().QueryArgs().Has("q") {
		return "", false
	}
	return c.Query("q"), true
}
