package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"opennotes/internal/notes/domain/entities"
	"opennotes/pkg/logger"
)

// Значения по умолчанию.
const (
	DefaultDebounce     = 200 * time.Millisecond
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultReapInterval = time.Minute
)

// Константы для логирования.
const (
	LogOpened        = "editing session opened"
	LogReaped        = "idle editing session closed"
	LogReapFailed    = "failed to close idle editing session"
	LogOrphaned      = "note of editing session disappeared"
	LogClosedAll     = "all editing sessions closed"
	LogDiscardedAll  = "all editing sessions discarded"
	LogDiscardedNote = "editing session of deleted note discarded"
)

// NoteStore is the subset of the sync store the manager needs.
type NoteStore interface {
	NoteWriter
	Get(id string) (*entities.Note, bool)
}

// Config содержит настройки менеджера сессий.
type Config struct {
	Debounce     time.Duration
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

// Manager владеет открытыми сессиями. На одну заметку приходится не более
// одной сессии.
type Manager struct {
	store NoteStore
	cfg   Config
	newID func() string

	mu       sync.Mutex
	sessions map[string]*Session
	byNote   map[string]string
}

// NewManager создает менеджер. Нулевые значения конфигурации заменяются значениями по умолчанию.
func NewManager(store NoteStore, cfg Config) *Manager {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}
	return &Manager{
		store:    store,
		cfg:      cfg,
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
		byNote:   make(map[string]string),
	}
}

// Open открывает сессию для заметки или возвращает уже открытую.
func (m *Manager) Open(ctx context.Context, noteID string) (*Session, error) {
	note, ok := m.store.Get(noteID)
	if !ok {
		return nil, ErrNoteNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byNote[noteID]; ok {
		if s := m.sessions[id]; s != nil && !s.Closed() {
			return s, nil
		}
		m.forgetLocked(id)
	}

	s := newSession(ctx, m.newID(), note, m.store, m.cfg.Debounce)
	m.sessions[s.id] = s
	m.byNote[noteID] = s.id

	logger.Log(ctx).Debug(ctx, LogOpened, zap.String("sessionID", s.id), zap.String("noteID", noteID))
	return s, nil
}

// Get возвращает открытую сессию по идентификатору.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Closed() {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close закрывает сессию с сохранением или удалением пустой заметки.
func (m *Manager) Close(ctx context.Context, id string) error {
	s, err := m.take(id)
	if err != nil {
		return err
	}
	return s.Close(ctx)
}

// ConfirmDelete подтверждает удаление заметки сессии.
func (m *Manager) ConfirmDelete(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := s.ConfirmDelete(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.forgetLocked(id)
	m.mu.Unlock()
	return nil
}

// DiscardAll закрывает все сессии без сохранения.
func (m *Manager) DiscardAll(ctx context.Context) int {
	sessions := m.drain()
	for _, s := range sessions {
		s.Discard()
	}
	logger.Log(ctx).Info(ctx, LogDiscardedAll, zap.Int("count", len(sessions)))
	return len(sessions)
}

// DiscardNote закрывает без сохранения сессию заметки, если она открыта.
func (m *Manager) DiscardNote(ctx context.Context, noteID string) bool {
	m.mu.Lock()
	id, ok := m.byNote[noteID]
	s := m.sessions[id]
	if ok {
		m.forgetLocked(id)
	}
	m.mu.Unlock()

	if s == nil {
		return false
	}
	s.Discard()
	logger.Log(ctx).Debug(ctx, LogDiscardedNote, zap.String("sessionID", id), zap.String("noteID", noteID))
	return true
}

// CloseAll закрывает все сессии с сохранением. Используется при остановке.
func (m *Manager) CloseAll(ctx context.Context) error {
	sessions := m.drain()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.Close(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	logger.Log(ctx).Info(ctx, LogClosedAll, zap.Int("count", len(sessions)))
	return errors.Join(errs...)
}

// Len возвращает количество открытых сессий.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run периодически закрывает простаивающие сессии и отбрасывает сессии
// заметок, которых больше нет. Завершается при отмене ctx.
func (m *Manager) Run(ctx context.Context) {
	ctx = logger.NewContext(ctx, logger.Log(ctx).Named("session-reaper"))
	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(ctx, time.Now())
		}
	}
}

// Reap выполняет один проход очистки относительно now.
func (m *Manager) Reap(ctx context.Context, now time.Time) {
	log := logger.Log(ctx).With(zap.String("method", "Manager.Reap"))

	m.mu.Lock()
	var idle, orphaned []*Session
	for id, s := range m.sessions {
		switch {
		case s.Closed():
			m.forgetLocked(id)
		case !m.noteExists(s.noteID):
			orphaned = append(orphaned, s)
			m.forgetLocked(id)
		case now.Sub(s.IdleSince()) >= m.cfg.IdleTimeout:
			idle = append(idle, s)
			m.forgetLocked(id)
		}
	}
	m.mu.Unlock()

	for _, s := range orphaned {
		log.Info(ctx, LogOrphaned, zap.String("sessionID", s.id), zap.String("noteID", s.noteID))
		s.Discard()
	}
	for _, s := range idle {
		if err := s.Close(ctx); err != nil {
			log.Warn(ctx, LogReapFailed, zap.String("sessionID", s.id), zap.Error(err))
			continue
		}
		log.Info(ctx, LogReaped, zap.String("sessionID", s.id))
	}
}

func (m *Manager) noteExists(id string) bool {
	_, ok := m.store.Get(id)
	return ok
}

func (m *Manager) take(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.forgetLocked(id)
	return s, nil
}

func (m *Manager) drain() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.sessions = make(map[string]*Session)
	m.byNote = make(map[string]string)
	return out
}

func (m *Manager) forgetLocked(id string) {
	if s, ok := m.sessions[id]; ok {
		if m.byNote[s.noteID] == id {
			delete(m.byNote, s.noteID)
		}
		delete(m.sessions, id)
	}
}
