package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/session"
)

const testDebounce = 40 * time.Millisecond

var errWrite = errors.New("write failed")

type call struct {
	op      string
	id      string
	content string
	color   entities.Color
}

// recordingStore записывает вызовы и хранит заметки в памяти.
type recordingStore struct {
	mu         sync.Mutex
	notes      map[string]*entities.Note
	calls      []call
	failures   map[string][]error
	updateGate chan struct{}
}

func newRecordingStore(notes ...*entities.Note) *recordingStore {
	s := &recordingStore{notes: make(map[string]*entities.Note), failures: make(map[string][]error)}
	for _, n := range notes {
		s.notes[n.ID] = n.Clone()
	}
	return s
}

func (s *recordingStore) failNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

func (s *recordingStore) popFailure(op string) error {
	if errs := s.failures[op]; len(errs) > 0 {
		s.failures[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (s *recordingStore) Get(id string) (*entities.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n.Clone(), ok
}

func (s *recordingStore) Update(_ context.Context, id string, update entities.NoteUpdate) (*entities.Note, error) {
	s.mu.Lock()
	gate := s.updateGate
	c := call{op: "Update", id: id}
	if update.Content != nil {
		c.content = *update.Content
	}
	if update.ColorTag != nil {
		c.color = *update.ColorTag
	}
	s.calls = append(s.calls, c)
	err := s.popFailure("Update")
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, entities.ErrNoteNotFound
	}
	n = update.Apply(n)
	s.notes[id] = n
	return n.Clone(), nil
}

func (s *recordingStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{op: "Remove", id: id})
	if err := s.popFailure("Remove"); err != nil {
		return err
	}
	delete(s.notes, id)
	return nil
}

func (s *recordingStore) recorded() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func (s *recordingStore) countOps(op string) int {
	n := 0
	for _, c := range s.recorded() {
		if c.op == op {
			n++
		}
	}
	return n
}

func testNote(id, content string) *entities.Note {
	now := time.Now()
	return &entities.Note{ID: id, Content: content, ColorTag: entities.ColorWhite, CreatedAt: now, UpdatedAt: now}
}

func newManager(store session.NoteStore) *session.Manager {
	return session.NewManager(store, session.Config{Debounce: testDebounce, IdleTimeout: time.Hour, ReapInterval: time.Hour})
}

func openSession(t *testing.T, store *recordingStore, noteID string) *session.Session {
	t.Helper()
	s, err := newManager(store).Open(context.Background(), noteID)
	require.NoError(t, err)
	return s
}

func TestSession_DebounceCoalescesEdits(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	for _, text := range []string{"abcd", "abcde", "abcdef", "abcdefg"} {
		require.NoError(t, s.SetContent(text))
		time.Sleep(testDebounce / 4)
	}

	assert.Eventually(t, func() bool { return store.countOps("Update") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testDebounce)

	calls := store.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "abcdefg", calls[0].content)
	assert.Equal(t, session.StateIdle, s.State())
}

func TestSession_SingleEditCommitsOnce(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent("abcd"))
	assert.Equal(t, session.StateDirty, s.State())

	time.Sleep(3 * testDebounce)

	calls := store.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, call{op: "Update", id: "n1", content: "abcd", color: entities.ColorWhite}, calls[0])
}

func TestSession_CommitTrimsAndSkipsUnchanged(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent("  abc  "))
	time.Sleep(3 * testDebounce)
	assert.Empty(t, store.recorded(), "trimmed buffer equals persisted content")

	require.NoError(t, s.SetContent("  xyz  "))
	time.Sleep(3 * testDebounce)
	calls := store.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "xyz", calls[0].content)
}

func TestSession_BlankBufferIsNotCommitted(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent("   "))
	time.Sleep(3 * testDebounce)

	assert.Empty(t, store.recorded())
}

func TestSession_ColorChangeCommits(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetColor(entities.ColorPastelYellow))
	assert.ErrorIs(t, s.SetColor("neon"), session.ErrInvalidColor)

	assert.Eventually(t, func() bool { return store.countOps("Update") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, entities.ColorPastelYellow, store.recorded()[0].color)
	assert.Equal(t, "abc", store.recorded()[0].content)
}

func TestSession_CloseBlankDeletesNote(t *testing.T) {
	store := newRecordingStore(testNote("n1", "persisted text"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent(" \n\t "))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, []call{{op: "Remove", id: "n1"}}, store.recorded())
	_, ok := store.Get("n1")
	assert.False(t, ok)
}

func TestSession_CloseFlushesPendingEdit(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent("abc final"))
	require.NoError(t, s.Close(context.Background()))

	calls := store.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "abc final", calls[0].content)

	time.Sleep(3 * testDebounce)
	assert.Len(t, store.recorded(), 1, "cancelled timer must not commit after close")
}

func TestSession_CloseWithoutChangesDoesNothing(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.Close(context.Background()))

	assert.Empty(t, store.recorded())
}

func TestSession_CloseTwice(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.Close(context.Background()))

	assert.ErrorIs(t, s.Close(context.Background()), session.ErrSessionClosed)
	assert.ErrorIs(t, s.SetContent("x"), session.ErrSessionClosed)
	assert.ErrorIs(t, s.RequestDelete(), session.ErrSessionClosed)
	assert.Equal(t, session.StateClosed, s.State())
}

func TestSession_CloseRetriesAfterFailedCommit(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")
	store.failNext("Update", errWrite)

	require.NoError(t, s.SetContent("abcd"))
	assert.Eventually(t, func() bool { return store.countOps("Update") == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Snapshot().LastError != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "abcd", s.Snapshot().Content, "buffer is not rolled back")
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, store.countOps("Update"), "failed commit is not retried on its own")

	require.NoError(t, s.Close(context.Background()))

	calls := store.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "abcd", calls[1].content)
}

func TestSession_CloseFinalFlushFailure(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")
	store.failNext("Update", errWrite)

	require.NoError(t, s.SetContent("abcd"))
	err := s.Close(context.Background())

	require.ErrorIs(t, err, errWrite)
	assert.Equal(t, session.StateClosed, s.State())
}

func TestSession_CloseWaitsForInflightCommit(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	gate := make(chan struct{})
	store.mu.Lock()
	store.updateGate = gate
	store.mu.Unlock()
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent("abcd"))
	assert.Eventually(t, func() bool { return s.State() == session.StateCommitting }, time.Second, 5*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- s.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("close returned before in-flight commit settled")
	case <-time.After(2 * testDebounce):
	}

	close(gate)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close did not return")
	}
	assert.Equal(t, 1, store.countOps("Update"), "committed value needs no final flush")
}

func TestSession_CloseDeadlineStillDeletesBlankNote(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	gate := make(chan struct{})
	store.mu.Lock()
	store.updateGate = gate
	store.mu.Unlock()
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent("abcd"))
	require.Eventually(t, func() bool { return s.State() == session.StateCommitting }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.SetContent("   "))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Close(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.Closed())
	assert.Zero(t, store.countOps("Remove"))

	close(gate)
	assert.Eventually(t, func() bool {
		_, ok := store.Get("n1")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.countOps("Remove"))
	assert.ErrorIs(t, s.Close(context.Background()), session.ErrSessionClosed)
}

func TestSession_DeleteConfirmation(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm without request fails", func(t *testing.T) {
		store := newRecordingStore(testNote("n1", "abc"))
		s := openSession(t, store, "n1")

		assert.ErrorIs(t, s.ConfirmDelete(ctx), session.ErrDeleteNotRequested)

		require.NoError(t, s.RequestDelete())
		require.NoError(t, s.CancelDelete())
		assert.ErrorIs(t, s.ConfirmDelete(ctx), session.ErrDeleteNotRequested)
		assert.Empty(t, store.recorded())
		assert.False(t, s.Closed())
	})

	t.Run("confirmed delete removes without flushing", func(t *testing.T) {
		store := newRecordingStore(testNote("n1", "abc"))
		s := openSession(t, store, "n1")

		require.NoError(t, s.SetContent("unsaved edit"))
		require.NoError(t, s.RequestDelete())
		assert.True(t, s.Snapshot().DeleteRequested)
		require.NoError(t, s.ConfirmDelete(ctx))

		time.Sleep(3 * testDebounce)
		assert.Equal(t, []call{{op: "Remove", id: "n1"}}, store.recorded())
		assert.True(t, s.Closed())
	})

	t.Run("deadline while commit is in flight keeps session open", func(t *testing.T) {
		store := newRecordingStore(testNote("n1", "abc"))
		gate := make(chan struct{})
		store.mu.Lock()
		store.updateGate = gate
		store.mu.Unlock()
		s := openSession(t, store, "n1")

		require.NoError(t, s.SetContent("abcd"))
		require.Eventually(t, func() bool { return s.State() == session.StateCommitting }, time.Second, 5*time.Millisecond)
		require.NoError(t, s.RequestDelete())

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, s.ConfirmDelete(short), context.DeadlineExceeded)
		assert.False(t, s.Closed())
		assert.Zero(t, store.countOps("Remove"))

		close(gate)
		require.NoError(t, s.ConfirmDelete(ctx))
		_, ok := store.Get("n1")
		assert.False(t, ok)
	})

	t.Run("failed delete keeps session open", func(t *testing.T) {
		store := newRecordingStore(testNote("n1", "abc"))
		s := openSession(t, store, "n1")
		store.failNext("Remove", errWrite)

		require.NoError(t, s.RequestDelete())
		err := s.ConfirmDelete(ctx)

		require.ErrorIs(t, err, errWrite)
		assert.False(t, s.Closed())
		require.NoError(t, s.ConfirmDelete(ctx))
	})
}

func TestSession_Discard(t *testing.T) {
	store := newRecordingStore(testNote("n1", "abc"))
	s := openSession(t, store, "n1")

	require.NoError(t, s.SetContent("pending"))
	s.Discard()
	s.Discard()

	time.Sleep(3 * testDebounce)
	assert.Empty(t, store.recorded())
	assert.ErrorIs(t, s.Close(context.Background()), session.ErrSessionClosed)
}
