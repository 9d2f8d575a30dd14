package app_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/realtime"
)

var errRemote = errors.New("remote unavailable")

type fakeSubscription struct {
	events chan entities.ChangeEvent
	once   sync.Once
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan entities.ChangeEvent, 16), closed: make(chan struct{})}
}

func (s *fakeSubscription) Events() <-chan entities.ChangeEvent { return s.events }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() {
		close(s.closed)
		close(s.events)
	})
	return nil
}

func (s *fakeSubscription) push(ev entities.ChangeEvent) {
	s.events <- ev
}

// fakeRemote хранит строки в памяти и не публикует событий сам.
type fakeRemote struct {
	mu       sync.Mutex
	rows     map[string]*entities.Note
	clock    time.Time
	seq      int
	calls    []string
	failures map[string]error
	listGate chan struct{}
	sub      *fakeSubscription
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		rows:     make(map[string]*entities.Note),
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		failures: make(map[string]error),
		sub:      newFakeSubscription(),
	}
}

func (f *fakeRemote) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRemote) record(call string) error {
	f.calls = append(f.calls, call)
	if err, ok := f.failures[call]; ok {
		delete(f.failures, call)
		return err
	}
	return nil
}

func (f *fakeRemote) failNext(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[call] = err
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) seed(contents ...string) []*entities.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entities.Note, 0, len(contents))
	for _, c := range contents {
		f.seq++
		now := f.tick()
		n := &entities.Note{ID: fmt.Sprintf("n%d", f.seq), Content: c, ColorTag: entities.DefaultColor, CreatedAt: now, UpdatedAt: now}
		f.rows[n.ID] = n
		out = append(out, n.Clone())
	}
	return out
}

func (f *fakeRemote) List(context.Context) ([]*entities.Note, error) {
	f.mu.Lock()
	gate := f.listGate
	err := f.record("List")
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entities.Note, 0, len(f.rows))
	for _, n := range f.rows {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeRemote) Insert(_ context.Context, content string, color entities.Color) (*entities.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Insert"); err != nil {
		return nil, err
	}
	f.seq++
	now := f.tick()
	n := &entities.Note{ID: fmt.Sprintf("n%d", f.seq), Content: strings.TrimSpace(content), ColorTag: color, CreatedAt: now, UpdatedAt: now}
	f.rows[n.ID] = n
	return n.Clone(), nil
}

func (f *fakeRemote) Update(_ context.Context, id string, update entities.NoteUpdate) (*entities.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Update"); err != nil {
		return nil, err
	}
	n, ok := f.rows[id]
	if !ok {
		return nil, entities.ErrNoteNotFound
	}
	n = update.Apply(n)
	n.UpdatedAt = f.tick()
	f.rows[id] = n
	return n.Clone(), nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Delete"); err != nil {
		return err
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRemote) DeleteAll(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteAll"); err != nil {
		return 0, err
	}
	n := len(f.rows)
	f.rows = make(map[string]*entities.Note)
	return n, nil
}

func (f *fakeRemote) Subscribe(context.Context) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Subscribe"); err != nil {
		return nil, err
	}
	return f.sub, nil
}
