// Package session реализует сессии редактирования заметок: буфер, отложенное
// автосохранение, сброс или удаление при закрытии и удаление с подтверждением.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"opennotes/internal/notes/domain/entities"
	"opennotes/pkg/logger"
)

// Ошибки сессий.
var (
	ErrSessionClosed      = errors.New("editing session is closed")
	ErrSessionNotFound    = errors.New("editing session not found")
	ErrDeleteNotRequested = errors.New("delete was not requested")
	ErrNoteNotFound       = entities.ErrNoteNotFound
	ErrInvalidColor       = entities.ErrInvalidColor
)

// Константы для логирования.
const (
	LogCommitFailed    = "debounced commit failed"
	LogCommitted       = "debounced commit applied"
	LogCloseFlush      = "flushing session on close"
	LogCloseDeleteNote = "deleting blank note on close"
	LogDeleteConfirmed = "note deleted by confirmation"
	LogDiscarded       = "session discarded"
	LogFinalFlushFail  = "final flush failed"
	ErrFinalFlush      = "failed to flush session"
	ErrFinalDelete     = "failed to delete blank note"
	ErrConfirmDelete   = "failed to delete note"
)

// State is the lifecycle state of a session.
type State string

// Состояния сессии.
const (
	StateIdle       State = "idle"
	StateDirty      State = "dirty"
	StateCommitting State = "committing"
	StateClosed     State = "closed"
)

// NoteWriter is the subset of the sync store a session writes through.
type NoteWriter interface {
	Update(ctx context.Context, id string, update entities.NoteUpdate) (*entities.Note, error)
	Remove(ctx context.Context, id string) error
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID              string         `json:"session_id"`
	NoteID          string         `json:"note_id"`
	Content         string         `json:"content"`
	ColorTag        entities.Color `json:"color_tag"`
	State           State          `json:"state"`
	DeleteRequested bool           `json:"delete_requested"`
	LastError       string         `json:"last_error,omitempty"`
	LastActivity    time.Time      `json:"last_activity"`
}

// Session буферизует правки одной заметки.
type Session struct {
	id       string
	noteID   string
	writer   NoteWriter
	debounce time.Duration
	ctx      context.Context
	log      *logger.Logger

	mu               sync.Mutex
	content          string
	color            entities.Color
	persistedContent string
	persistedColor   entities.Color
	dirty            bool
	closed           bool
	deleteRequested  bool
	generation       uint64
	timer            *time.Timer
	inflight         chan struct{}
	lastErr          error
	lastActivity     time.Time
}

func newSession(ctx context.Context, id string, note *entities.Note, writer NoteWriter, debounce time.Duration) *Session {
	return &Session{
		id:               id,
		noteID:           note.ID,
		writer:           writer,
		debounce:         debounce,
		ctx:              context.WithoutCancel(ctx),
		log:              logger.Log(ctx).With(zap.String("sessionID", id), zap.String("noteID", note.ID)),
		content:          note.Content,
		color:            note.ColorTag,
		persistedContent: note.Content,
		persistedColor:   note.ColorTag,
		lastActivity:     time.Now(),
	}
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string { return s.id }

// NoteID возвращает идентификатор заметки.
func (s *Session) NoteID() string { return s.noteID }

// SetContent заменяет содержимое буфера и перезапускает таймер.
func (s *Session) SetContent(content string) error {
	return s.edit(func() { s.content = content })
}

// SetColor заменяет цвет буфера и перезапускает таймер.
func (s *Session) SetColor(color entities.Color) error {
	if !color.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return s.edit(func() { s.color = color })
}

// Edit применяет содержимое и цвет одной правкой. Nil означает "не менять".
func (s *Session) Edit(content *string, color *entities.Color) error {
	if color != nil && !color.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColor, *color)
	}
	return s.edit(func() {
		if content != nil {
			s.content = *content
		}
		if color != nil {
			s.color = *color
		}
	})
}

func (s *Session) edit(apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	apply()
	s.dirty = true
	s.lastActivity = time.Now()
	s.armLocked()
	return nil
}

// armLocked перезапускает таймер. Устаревшие срабатывания отсекает generation.
func (s *Session) armLocked() {
	s.generation++
	gen := s.generation
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen) })
}

func (s *Session) disarmLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation || s.inflight != nil {
		s.mu.Unlock()
		return
	}

	trimmed := strings.TrimSpace(s.content)
	color := s.color
	if trimmed == "" {
		s.mu.Unlock()
		return
	}
	if !s.differsLocked() {
		s.dirty = false
		s.mu.Unlock()
		return
	}

	done := make(chan struct{})
	s.inflight = done
	s.mu.Unlock()

	_, err := s.writer.Update(s.ctx, s.noteID, entities.NoteUpdate{Content: &trimmed, ColorTag: &color})

	s.mu.Lock()
	s.lastErr = err
	if err != nil {
		s.log.Warn(s.ctx, LogCommitFailed, zap.Error(err))
	} else {
		s.persistedContent, s.persistedColor = trimmed, color
		if !s.differsLocked() {
			s.dirty = false
		}
		s.log.Debug(s.ctx, LogCommitted)
	}
	s.inflight = nil
	// правки, пришедшие во время коммита, сохраняет следующее срабатывание;
	// неудачный коммит без новых правок не повторяется
	if gen != s.generation && s.dirty && !s.closed && s.differsLocked() {
		s.armLocked()
	}
	s.mu.Unlock()
	close(done)
}

func (s *Session) differsLocked() bool {
	return strings.TrimSpace(s.content) != s.persistedContent || s.color != s.persistedColor
}

// Close отменяет таймер, дожидается текущего коммита и выполняет итоговое
// действие: удаляет заметку с пустым содержимым или сохраняет отличия.
// Возвращает управление только после завершения этой попытки. Если ctx
// истекает раньше коммита, Close возвращает ctx.Err(), а итоговое действие
// выполняется в фоне, когда коммит завершится.
func (s *Session) Close(ctx context.Context) error {
	inflight, err := s.markClosed()
	if err != nil {
		return err
	}

	if inflight != nil {
		select {
		case <-inflight:
		case <-ctx.Done():
			detached := context.WithoutCancel(ctx)
			go func() {
				<-inflight
				_ = s.finish(detached)
			}()
			return ctx.Err()
		}
	}
	return s.finish(ctx)
}

// finish выполняет итоговое действие закрытой сессии.
func (s *Session) finish(ctx context.Context) error {
	s.mu.Lock()
	trimmed := strings.TrimSpace(s.content)
	color := s.color
	differs := s.differsLocked()
	s.mu.Unlock()

	log := logger.Log(ctx).With(zap.String("sessionID", s.id), zap.String("noteID", s.noteID))

	if trimmed == "" {
		log.Debug(ctx, LogCloseDeleteNote)
		if err := s.writer.Remove(ctx, s.noteID); err != nil {
			s.recordErr(err)
			log.Error(ctx, LogFinalFlushFail, zap.Error(err))
			return fmt.Errorf("%s: %w", ErrFinalDelete, err)
		}
		return nil
	}

	if !differs {
		return nil
	}

	log.Debug(ctx, LogCloseFlush)
	if _, err := s.writer.Update(ctx, s.noteID, entities.NoteUpdate{Content: &trimmed, ColorTag: &color}); err != nil {
		s.recordErr(err)
		log.Error(ctx, LogFinalFlushFail, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrFinalFlush, err)
	}

	s.mu.Lock()
	s.persistedContent, s.persistedColor = trimmed, color
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// markClosed помечает сессию закрытой и возвращает канал текущего коммита.
func (s *Session) markClosed() (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.closed = true
	s.disarmLocked()
	return s.inflight, nil
}

// reopenLocked возвращает сессию в работу после несостоявшегося удаления.
func (s *Session) reopenLocked(err error) {
	s.closed = false
	s.lastErr = err
	if s.dirty && s.differsLocked() {
		s.armLocked()
	}
}

// RequestDelete отмечает, что пользователь запросил удаление.
func (s *Session) RequestDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.deleteRequested = true
	s.lastActivity = time.Now()
	return nil
}

// CancelDelete снимает запрос на удаление.
func (s *Session) CancelDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.deleteRequested = false
	s.lastActivity = time.Now()
	return nil
}

// ConfirmDelete удаляет заметку, если удаление было запрошено, и закрывает
// сессию без сохранения буфера. При ошибке удаления или истечении ctx
// сессия остается открытой.
func (s *Session) ConfirmDelete(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.deleteRequested {
		s.mu.Unlock()
		return ErrDeleteNotRequested
	}
	s.mu.Unlock()

	inflight, err := s.markClosed()
	if err != nil {
		return err
	}
	if inflight != nil {
		select {
		case <-inflight:
		case <-ctx.Done():
			s.mu.Lock()
			s.reopenLocked(ctx.Err())
			s.mu.Unlock()
			return ctx.Err()
		}
	}

	log := logger.Log(ctx).With(zap.String("sessionID", s.id), zap.String("noteID", s.noteID))

	if err := s.writer.Remove(ctx, s.noteID); err != nil {
		s.mu.Lock()
		s.reopenLocked(err)
		s.mu.Unlock()
		log.Error(ctx, ErrConfirmDelete, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrConfirmDelete, err)
	}

	log.Info(ctx, LogDeleteConfirmed)
	return nil
}

// Discard закрывает сессию без сохранения и без ожидания.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.disarmLocked()
	s.log.Debug(s.ctx, LogDiscarded)
}

// Closed сообщает, закрыта ли сессия.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IdleSince возвращает время последней активности.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// State возвращает текущее состояние.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.closed:
		return StateClosed
	case s.inflight != nil:
		return StateCommitting
	case s.dirty:
		return StateDirty
	default:
		return StateIdle
	}
}

// Snapshot возвращает копию состояния сессии.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:              s.id,
		NoteID:          s.noteID,
		Content:         s.content,
		ColorTag:        s.color,
		State:           s.stateLocked(),
		DeleteRequested: s.deleteRequested,
		LastActivity:    s.lastActivity,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

func (s *Session) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
