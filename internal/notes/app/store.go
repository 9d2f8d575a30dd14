// Package app implements the synchronization store: the canonical in-memory
// note collection kept consistent with the remote store and its change channel.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/realtime"
	"opennotes/internal/notes/ports/services"
	"opennotes/pkg/logger"
)

// Ошибки уровня бизнес-логики.
var (
	ErrBlankContent   = errors.New("note content must not be blank")
	ErrInvalidColor   = entities.ErrInvalidColor
	ErrNoteNotFound   = entities.ErrNoteNotFound
	ErrAlreadyStarted = errors.New("sync store already started")
	ErrInitialLoad    = errors.New("initial load failed")
)

// Константы для сообщений об ошибках.
const (
	ErrListNotes   = "failed to list notes"
	ErrAddNote     = "failed to add note"
	ErrUpdateNote  = "failed to update note"
	ErrRemoveNote  = "failed to remove note"
	ErrRemoveAll   = "failed to remove all notes"
	ErrSubscribe   = "failed to subscribe to changes"
)

// Константы для логирования.
const (
	LogStarted         = "sync store started"
	LogStopped         = "sync store stopped"
	LogStopTimeout     = "sync store stop interrupted before reconciliation loop exited"
	LogChangeApplied   = "change event applied"
	LogChangeIgnored   = "change event ignored"
	LogListCompleted   = "notes loaded"
	LogUnknownEvent    = "unknown change event type"
	LogUnsubscribeFail = "failed to close changes subscription"
)

// SyncStore владеет каноническим списком заметок. Все изменения списка
// выполняются под одним мьютексом и никогда не охватывают удаленный вызов.
type SyncStore struct {
	remote services.RemoteStore

	mu       sync.RWMutex
	notes    collection
	loading  int
	journal  []func(c *collection) bool
	loaded   bool
	filter   string
	watchers map[int]chan struct{}
	nextID   int

	runMu    sync.Mutex
	sub      realtime.Subscription
	loopDone chan struct{}
}

// NewSyncStore создает хранилище поверх удаленного хранилища.
func NewSyncStore(remote services.RemoteStore) *SyncStore {
	return &SyncStore{
		remote:   remote,
		watchers: make(map[int]chan struct{}),
	}
}

// Start подписывается на канал изменений, запускает цикл согласования и
// выполняет начальную загрузку. Подписка предшествует загрузке, а события,
// пришедшие во время загрузки, повторяются поверх полученного списка.
// Ошибка начальной загрузки оборачивает ErrInitialLoad, подписка при этом
// остается активной.
func (s *SyncStore) Start(ctx context.Context) error {
	log := logger.Log(ctx).With(zap.String("method", "SyncStore.Start"))

	s.runMu.Lock()
	if s.sub != nil {
		s.runMu.Unlock()
		return ErrAlreadyStarted
	}

	sub, err := s.remote.Subscribe(ctx)
	if err != nil {
		s.runMu.Unlock()
		log.Error(ctx, ErrSubscribe, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrSubscribe, err)
	}

	s.sub = sub
	s.loopDone = make(chan struct{})
	loopCtx := logger.NewContext(context.WithoutCancel(ctx), logger.Log(ctx).Named("sync-store"))
	go s.reconcile(loopCtx, sub, s.loopDone)
	s.runMu.Unlock()

	log.Info(ctx, LogStarted)

	if _, err := s.List(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialLoad, err)
	}
	return nil
}

// Stop закрывает подписку и ждет завершения цикла согласования.
func (s *SyncStore) Stop(ctx context.Context) error {
	log := logger.Log(ctx).With(zap.String("method", "SyncStore.Stop"))

	s.runMu.Lock()
	sub, done := s.sub, s.loopDone
	s.sub, s.loopDone = nil, nil
	s.runMu.Unlock()

	if sub == nil {
		return nil
	}

	err := sub.Close()
	if err != nil {
		log.Warn(ctx, LogUnsubscribeFail, zap.Error(err))
	}

	select {
	case <-done:
		log.Info(ctx, LogStopped)
	case <-ctx.Done():
		log.Warn(ctx, LogStopTimeout)
		return ctx.Err()
	}
	return err
}

// Ready сообщает, что хранилище подписано и хотя бы раз загружено.
func (s *SyncStore) Ready() bool {
	s.runMu.Lock()
	subscribed := s.sub != nil
	s.runMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return subscribed && s.loaded
}

func (s *SyncStore) reconcile(ctx context.Context, sub realtime.Subscription, done chan struct{}) {
	defer close(done)
	for event := range sub.Events() {
		s.ApplyChange(ctx, event)
	}
}

// List загружает все заметки и заменяет локальный список. Изменения,
// примененные за время загрузки, повторяются поверх нового списка.
// При ошибке прежний список сохраняется.
func (s *SyncStore) List(ctx context.Context) ([]*entities.Note, error) {
	log := logger.Log(ctx).With(zap.String("method", "SyncStore.List"))

	s.beginLoad()
	notes, err := s.remote.List(ctx)
	if err != nil {
		s.mu.Lock()
		s.endLoadLocked()
		s.mu.Unlock()
		s.notify()
		log.Error(ctx, ErrListNotes, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrListNotes, err)
	}

	s.mu.Lock()
	s.notes.replace(notes)
	for _, replay := range s.journal {
		replay(&s.notes)
	}
	s.endLoadLocked()
	s.loaded = true
	snapshot := s.notes.snapshot()
	s.mu.Unlock()
	s.notify()

	log.Debug(ctx, LogListCompleted, zap.Int("count", len(snapshot)))
	return snapshot, nil
}

// Add создает заметку с обрезанным содержимым. Пустой цвет означает белый.
// Новая заметка встает в начало списка.
func (s *SyncStore) Add(ctx context.Context, content string, color entities.Color) (*entities.Note, error) {
	log := logger.Log(ctx).With(zap.String("method", "SyncStore.Add"))

	if color == "" {
		color = entities.DefaultColor
	}
	if !color.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}

	note, err := s.remote.Insert(ctx, content, color)
	if err != nil {
		log.Error(ctx, ErrAddNote, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrAddNote, err)
	}

	insert := func(c *collection) bool { return c.insertIfAbsent(note.Clone()) }
	s.mutate(insert, insert)
	return note.Clone(), nil
}

// Update применяет изменения к удаленной записи и безусловно заменяет
// локальную копию ответом удаленного хранилища.
func (s *SyncStore) Update(ctx context.Context, id string, update entities.NoteUpdate) (*entities.Note, error) {
	log := logger.Log(ctx).With(zap.String("method", "SyncStore.Update"), zap.String("noteID", id))

	if update.Content != nil && entities.IsBlank(*update.Content) {
		return nil, ErrBlankContent
	}
	if update.ColorTag != nil && !update.ColorTag.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, *update.ColorTag)
	}

	note, err := s.remote.Update(ctx, id, update)
	if err != nil {
		log.Error(ctx, ErrUpdateNote, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrUpdateNote, err)
	}

	s.mutate(
		func(c *collection) bool { return c.put(note.Clone()) },
		func(c *collection) bool { return c.upsert(note.Clone()) },
	)
	return note.Clone(), nil
}

// Remove удаляет заметку удаленно, затем локально.
func (s *SyncStore) Remove(ctx context.Context, id string) error {
	log := logger.Log(ctx).With(zap.String("method", "SyncStore.Remove"), zap.String("noteID", id))

	if err := s.remote.Delete(ctx, id); err != nil {
		log.Error(ctx, ErrRemoveNote, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrRemoveNote, err)
	}

	remove := func(c *collection) bool { return c.remove(id) }
	s.mutate(remove, remove)
	return nil
}

// RemoveAll удаляет все заметки и очищает локальный список.
func (s *SyncStore) RemoveAll(ctx context.Context) (int, error) {
	log := logger.Log(ctx).With(zap.String("method", "SyncStore.RemoveAll"))

	count, err := s.remote.DeleteAll(ctx)
	if err != nil {
		log.Error(ctx, ErrRemoveAll, zap.Error(err))
		return 0, fmt.Errorf("%s: %w", ErrRemoveAll, err)
	}

	var cleared []string
	s.mutate(
		func(c *collection) bool {
			cleared = c.ids()
			return c.clear()
		},
		func(c *collection) bool {
			changed := false
			for _, id := range cleared {
				changed = c.remove(id) || changed
			}
			return changed
		},
	)
	return count, nil
}

// ApplyChange сливает событие канала изменений с локальным списком.
// Слияние идемпотентно: повторное событие не меняет состояние.
func (s *SyncStore) ApplyChange(ctx context.Context, event entities.ChangeEvent) bool {
	log := logger.Log(ctx).With(
		zap.String("method", "SyncStore.ApplyChange"),
		zap.String("event_type", string(event.EventType)),
		zap.String("noteID", event.Record.ID),
	)

	record := event.Record.Clone()
	var apply func(c *collection) bool
	switch event.EventType {
	case entities.EventInsert:
		apply = func(c *collection) bool { return c.insertIfAbsent(record) }
	case entities.EventUpdate:
		apply = func(c *collection) bool { return c.upsert(record) }
	case entities.EventDelete:
		apply = func(c *collection) bool { return c.remove(record.ID) }
	default:
		log.Warn(ctx, LogUnknownEvent)
		return false
	}

	changed := s.mutate(apply, apply)
	if changed {
		log.Debug(ctx, LogChangeApplied)
	} else {
		log.Debug(ctx, LogChangeIgnored)
	}
	return changed
}

// SetSearchFilter сохраняет строку поиска.
func (s *SyncStore) SetSearchFilter(query string) {
	s.mu.Lock()
	changed := s.filter != query
	s.filter = query
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// SearchFilter возвращает текущую строку поиска.
func (s *SyncStore) SearchFilter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Filtered возвращает копию списка, отфильтрованную сохраненной строкой поиска.
func (s *SyncStore) Filtered() []*entities.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes.filtered(s.filter)
}

// FilteredBy возвращает копию списка, отфильтрованную query.
func (s *SyncStore) FilteredBy(query string) []*entities.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes.filtered(query)
}

// Notes возвращает копию канонического списка.
func (s *SyncStore) Notes() []*entities.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes.snapshot()
}

// Len возвращает количество заметок.
func (s *SyncStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes.len()
}

// Get возвращает копию заметки по id.
func (s *SyncStore) Get(id string) (*entities.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.notes.get(id)
	return n.Clone(), n != nil
}

// Loading сообщает, выполняется ли загрузка списка.
func (s *SyncStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Watch возвращает канал уведомлений об изменении списка, флага загрузки или
// строки поиска. Уведомления схлопываются: читатель перечитывает состояние.
func (s *SyncStore) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// mutate применяет apply к списку. Пока идет загрузка, replay запоминается
// и повторяется поверх загруженного снимка.
func (s *SyncStore) mutate(apply, replay func(c *collection) bool) bool {
	s.mu.Lock()
	changed := apply(&s.notes)
	if s.loading > 0 {
		s.journal = append(s.journal, replay)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

func (s *SyncStore) beginLoad() {
	s.mu.Lock()
	if s.loading == 0 {
		s.journal = nil
	}
	s.loading++
	s.mu.Unlock()
	s.notify()
}

// endLoadLocked сбрасывает журнал, когда завершается последняя загрузка.
func (s *SyncStore) endLoadLocked() {
	s.loading--
	if s.loading == 0 {
		s.journal = nil
	}
}

func (s *SyncStore) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
