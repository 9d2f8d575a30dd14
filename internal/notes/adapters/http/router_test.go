package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "opennotes/internal/notes/adapters/cache"
	httpapi "opennotes/internal/notes/adapters/http"
	"opennotes/internal/notes/adapters/http/notes"
	prefhttp "opennotes/internal/notes/adapters/http/preferences"
	"opennotes/internal/notes/app"
	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/i18n"
	"opennotes/internal/notes/ports/realtime"
	"opennotes/internal/notes/preferences"
	"opennotes/internal/notes/resilience"
	"opennotes/internal/notes/session"
)

// memoryRemote хранит строки в памяти и умеет отказывать по запросу.
type memoryRemote struct {
	mu       sync.Mutex
	rows     map[string]*entities.Note
	seq      int
	clock    time.Time
	failures map[string]error
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{
		rows:     make(map[string]*entities.Note),
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		failures: make(map[string]error),
	}
}

func (r *memoryRemote) failNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = err
}

func (r *memoryRemote) fail(op string) error {
	if err, ok := r.failures[op]; ok {
		delete(r.failures, op)
		return err
	}
	return nil
}

func (r *memoryRemote) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryRemote) List(context.Context) ([]*entities.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("List"); err != nil {
		return nil, err
	}
	out := make([]*entities.Note, 0, len(r.rows))
	for _, n := range r.rows {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memoryRemote) Insert(_ context.Context, content string, color entities.Color) (*entities.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Insert"); err != nil {
		return nil, err
	}
	r.seq++
	now := r.tick()
	n := &entities.Note{ID: fmt.Sprintf("note-%d", r.seq), Content: strings.TrimSpace(content), ColorTag: color, CreatedAt: now, UpdatedAt: now}
	r.rows[n.ID] = n
	return n.Clone(), nil
}

func (r *memoryRemote) Update(_ context.Context, id string, update entities.NoteUpdate) (*entities.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Update"); err != nil {
		return nil, err
	}
	n, ok := r.rows[id]
	if !ok {
		return nil, entities.ErrNoteNotFound
	}
	n = update.Apply(n)
	n.UpdatedAt = r.tick()
	r.rows[id] = n
	return n.Clone(), nil
}

func (r *memoryRemote) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Delete"); err != nil {
		return err
	}
	delete(r.rows, id)
	return nil
}

func (r *memoryRemote) DeleteAll(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("DeleteAll"); err != nil {
		return 0, err
	}
	n := len(r.rows)
	r.rows = make(map[string]*entities.Note)
	return n, nil
}

func (r *memoryRemote) Subscribe(context.Context) (realtime.Subscription, error) {
	return &idleSubscription{events: make(chan entities.ChangeEvent)}, nil
}

type idleSubscription struct {
	once   sync.Once
	events chan entities.ChangeEvent
}

func (s *idleSubscription) Events() <-chan entities.ChangeEvent { return s.events }

func (s *idleSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type testServer struct {
	app      *fiber.App
	remote   *memoryRemote
	store    *app.SyncStore
	sessions *session.Manager
	redis    *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	remote := newMemoryRemote()
	store := app.NewSyncStore(remote)
	require.NoError(t, store.Start(ctx))
	t.Cleanup(func() { _ = store.Stop(ctx) })

	sessions := session.NewManager(store, session.Config{Debounce: time.Hour})

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	prefService := preferences.NewService(rediscache.NewRedisCache(client, "", 0), 0)

	catalog := i18n.MustLoad()
	prefHandler := prefhttp.NewHandler(prefService, catalog)
	notesHandler := notes.NewHandler(store, sessions, prefHandler, catalog)

	fiberApp := fiber.New()
	httpapi.SetupRouter(fiberApp, ctx, httpapi.Handlers{Notes: notesHandler, Preferences: prefHandler})

	return &testServer{app: fiberApp, remote: remote, store: store, sessions: sessions, redis: srv}
}

type response struct {
	status int
	body   map[string]any
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func noteIDs(t *testing.T, r response) []string {
	t.Helper()
	list, ok := r.body["notes"].([]any)
	require.True(t, ok, "notes is a list")
	ids := make([]string, 0, len(list))
	for _, item := range list {
		ids = append(ids, item.(map[string]any)["id"].(string))
	}
	return ids
}

func noteField(r response, field string) any {
	return r.body["note"].(map[string]any)[field]
}

func TestHealthAndPalette(t *testing.T) {
	s := newTestServer(t)

	health := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, health.status)
	assert.Equal(t, true, health.body["ready"])

	palette := s.do(t, http.MethodGet, "/api/v1/palette", nil)
	assert.Equal(t, http.StatusOK, palette.status)
	assert.Len(t, palette.body["colors"], 10)
	assert.Equal(t, "white", palette.body["default"])

	missing := s.do(t, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, missing.status)
}

func TestNotesCRUD(t *testing.T) {
	s := newTestServer(t)

	created := s.do(t, http.MethodPost, "/api/v1/notes", map[string]any{"content": "  hello  ", "color_tag": "pastel-blue"})
	require.Equal(t, http.StatusCreated, created.status)
	id := noteField(created, "id").(string)
	assert.Equal(t, "hello", noteField(created, "content"))
	assert.Equal(t, "pastel-blue", noteField(created, "color_tag"))
	assert.Nil(t, created.body["session_id"])

	empty := s.do(t, http.MethodPost, "/api/v1/notes", nil)
	require.Equal(t, http.StatusCreated, empty.status)
	assert.Equal(t, "white", noteField(empty, "color_tag"))

	list := s.do(t, http.MethodGet, "/api/v1/notes", nil)
	require.Equal(t, http.StatusOK, list.status)
	assert.Equal(t, []string{noteField(empty, "id").(string), id}, noteIDs(t, list), "newest first")
	assert.Equal(t, false, list.body["loading"])

	got := s.do(t, http.MethodGet, "/api/v1/notes/"+id, nil)
	assert.Equal(t, http.StatusOK, got.status)

	updated := s.do(t, http.MethodPatch, "/api/v1/notes/"+id, map[string]any{"content": "hello world"})
	require.Equal(t, http.StatusOK, updated.status)
	assert.Equal(t, "hello world", noteField(updated, "content"))
	assert.Equal(t, "pastel-blue", noteField(updated, "color_tag"))

	list = s.do(t, http.MethodGet, "/api/v1/notes", nil)
	assert.Equal(t, id, noteIDs(t, list)[0], "updated note moves to the front")

	t.Run("validation", func(t *testing.T) {
		blank := s.do(t, http.MethodPatch, "/api/v1/notes/"+id, map[string]any{"content": "   "})
		assert.Equal(t, http.StatusBadRequest, blank.status)

		nothing := s.do(t, http.MethodPatch, "/api/v1/notes/"+id, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, nothing.status)

		badColor := s.do(t, http.MethodPatch, "/api/v1/notes/"+id, map[string]any{"color_tag": "neon"})
		assert.Equal(t, http.StatusBadRequest, badColor.status)
		assert.Contains(t, badColor.body["fields"], "color_tag")

		badCreate := s.do(t, http.MethodPost, "/api/v1/notes", map[string]any{"color_tag": "neon"})
		assert.Equal(t, http.StatusBadRequest, badCreate.status)
	})

	t.Run("not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/notes/missing", nil).status)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, "/api/v1/notes/missing", map[string]any{"content": "x"}).status)
	})

	t.Run("delete requires confirmation", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/v1/notes/"+id, nil).status)
		assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/notes/"+id+"?confirm=true", nil).status)

		_, ok := s.store.Get(id)
		assert.False(t, ok)
	})
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	for _, content := range []string{"Buy milk", "Call mom", "milkshake recipe"} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/notes", map[string]any{"content": content}).status)
	}

	byQuery := s.do(t, http.MethodGet, "/api/v1/notes?q=MILK", nil)
	assert.Len(t, noteIDs(t, byQuery), 2)
	assert.Equal(t, "MILK", byQuery.body["filter"])
	assert.Equal(t, "", s.store.SearchFilter(), "query parameter does not change the stored filter")

	stored := s.do(t, http.MethodPut, "/api/v1/notes/search", map[string]any{"query": "call"})
	require.Equal(t, http.StatusOK, stored.status)
	assert.Len(t, noteIDs(t, stored), 1)

	assert.Len(t, noteIDs(t, s.do(t, http.MethodGet, "/api/v1/notes", nil)), 1)
	assert.Len(t, noteIDs(t, s.do(t, http.MethodGet, "/api/v1/notes?q=", nil)), 3, "empty q overrides the stored filter")
	assert.Equal(t, 3, s.store.Len(), "filtering never removes notes")
}

func TestReload(t *testing.T) {
	s := newTestServer(t)

	_, err := s.remote.Insert(context.Background(), "written elsewhere", entities.ColorGray)
	require.NoError(t, err)

	reloaded := s.do(t, http.MethodPost, "/api/v1/notes/reload", nil)
	require.Equal(t, http.StatusOK, reloaded.status)
	assert.Len(t, noteIDs(t, reloaded), 1)

	s.remote.failNext("List", fmt.Errorf("list: %w", resilience.ErrCircuitOpen))
	unavailable := s.do(t, http.MethodPost, "/api/v1/notes/reload", nil)
	assert.Equal(t, http.StatusServiceUnavailable, unavailable.status)
	assert.Equal(t, 1, s.store.Len(), "failed reload keeps the collection")
}

func TestDeleteAll(t *testing.T) {
	s := newTestServer(t)

	for _, content := range []string{"one", "two"} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/notes", map[string]any{"content": content}).status)
	}
	opened := s.do(t, http.MethodPost, "/api/v1/notes", map[string]any{"content": "three", "open": true})
	require.Equal(t, http.StatusCreated, opened.status)
	require.NotEmpty(t, opened.body["session_id"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/v1/notes", nil).status)

	s.remote.failNext("DeleteAll", fmt.Errorf("connection refused"))
	failed := s.do(t, http.MethodDelete, "/api/v1/notes?confirm=true", nil, "Accept-Language", "en-US")
	assert.Equal(t, http.StatusInternalServerError, failed.status)
	assert.Equal(t, "Failed to delete notes", failed.body["error"])
	assert.Equal(t, 3, s.store.Len())

	require.NoError(t, s.redis.Set("open_notes_locale:c1", "id"))

	done := s.do(t, http.MethodDelete, "/api/v1/notes?confirm=true", nil, prefhttp.HeaderClientID, "c1")
	require.Equal(t, http.StatusOK, done.status)
	assert.Equal(t, float64(3), done.body["deleted"])
	assert.Equal(t, float64(1), done.body["discarded_sessions"])
	assert.Equal(t, "Semua catatan telah dihapus", done.body["message"])
	assert.Equal(t, 0, s.store.Len())
	assert.Equal(t, 0, s.sessions.Len())
}

func TestSessions(t *testing.T) {
	s := newTestServer(t)

	opened := s.do(t, http.MethodPost, "/api/v1/notes", map[string]any{"open": true})
	require.Equal(t, http.StatusCreated, opened.status)
	noteID := noteField(opened, "id").(string)
	sessionID := opened.body["session_id"].(string)
	base := "/api/v1/sessions/" + sessionID

	t.Run("reopen returns the same session", func(t *testing.T) {
		again := s.do(t, http.MethodPost, "/api/v1/notes/"+noteID+"/sessions", nil)
		require.Equal(t, http.StatusCreated, again.status)
		assert.Equal(t, sessionID, again.body["session"].(map[string]any)["session_id"])
	})

	t.Run("edit and close flushes", func(t *testing.T) {
		edited := s.do(t, http.MethodPatch, base, map[string]any{"content": "draft", "color_tag": "pastel-green"})
		require.Equal(t, http.StatusOK, edited.status)
		snap := edited.body["session"].(map[string]any)
		assert.Equal(t, "dirty", snap["state"])
		assert.Equal(t, "draft", snap["content"])

		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, base, map[string]any{"color_tag": "neon"}).status)

		assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, base, nil).status)

		n, ok := s.store.Get(noteID)
		require.True(t, ok)
		assert.Equal(t, "draft", n.Content)
		assert.Equal(t, entities.ColorPastelGreen, n.ColorTag)

		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, base, nil).status)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, base, nil).status)
	})

	t.Run("delete confirmation", func(t *testing.T) {
		opened := s.do(t, http.MethodPost, "/api/v1/notes/"+noteID+"/sessions", nil)
		require.Equal(t, http.StatusCreated, opened.status)
		base := "/api/v1/sessions/" + opened.body["session"].(map[string]any)["session_id"].(string)

		assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, base+"/delete", nil).status)

		requested := s.do(t, http.MethodPost, base+"/delete-request", nil)
		require.Equal(t, http.StatusOK, requested.status)
		assert.Equal(t, true, requested.body["session"].(map[string]any)["delete_requested"])

		cancelled := s.do(t, http.MethodDelete, base+"/delete-request", nil)
		require.Equal(t, http.StatusOK, cancelled.status)
		assert.Equal(t, false, cancelled.body["session"].(map[string]any)["delete_requested"])

		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/delete-request", nil).status)
		assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, base+"/delete", nil).status)

		_, ok := s.store.Get(noteID)
		assert.False(t, ok)
	})

	t.Run("blank note closed without typing is deleted", func(t *testing.T) {
		opened := s.do(t, http.MethodPost, "/api/v1/notes", map[string]any{"open": true})
		require.Equal(t, http.StatusCreated, opened.status)
		id := noteField(opened, "id").(string)

		assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/sessions/"+opened.body["session_id"].(string), nil).status)
		_, ok := s.store.Get(id)
		assert.False(t, ok)
	})

	t.Run("unknown note", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/notes/missing/sessions", nil).status)
	})
}

func TestPreferencesAndMessages(t *testing.T) {
	s := newTestServer(t)

	got := s.do(t, http.MethodGet, "/api/v1/preferences", nil)
	require.Equal(t, http.StatusOK, got.status)
	assert.Equal(t, "default", got.body["client_id"])
	assert.Equal(t, map[string]any{"theme": "light", "locale": "en"}, got.body["preferences"])

	updated := s.do(t, http.MethodPut, "/api/v1/preferences", map[string]any{"theme": "dark"}, prefhttp.HeaderClientID, "c1")
	require.Equal(t, http.StatusOK, updated.status)
	assert.Equal(t, map[string]any{"theme": "dark", "locale": "en"}, updated.body["preferences"])

	invalid := s.do(t, http.MethodPut, "/api/v1/preferences", map[string]any{"theme": "blue"}, prefhttp.HeaderClientID, "c1")
	assert.Equal(t, http.StatusBadRequest, invalid.status)

	theme := s.do(t, http.MethodPost, "/api/v1/preferences/theme/toggle", nil, prefhttp.HeaderClientID, "c1")
	assert.Equal(t, "light", theme.body["preferences"].(map[string]any)["theme"])

	locale := s.do(t, http.MethodPost, "/api/v1/preferences/locale/toggle", nil, prefhttp.HeaderClientID, "c1")
	assert.Equal(t, "id", locale.body["preferences"].(map[string]any)["locale"])

	stored, err := s.redis.Get("open_notes_locale:c1")
	require.NoError(t, err)
	assert.Equal(t, "id", stored)

	t.Run("messages follow client preference", func(t *testing.T) {
		msgs := s.do(t, http.MethodGet, "/api/v1/messages", nil, prefhttp.HeaderClientID, "c1")
		require.Equal(t, http.StatusOK, msgs.status)
		assert.Equal(t, "id", msgs.body["locale"])
		assert.Equal(t, "id-ID", msgs.body["date_locale"])
		assert.Equal(t, "Hapus semua", msgs.body["messages"].(map[string]any)["topbar.deleteAll"])
	})

	t.Run("lang parameter wins", func(t *testing.T) {
		msgs := s.do(t, http.MethodGet, "/api/v1/messages?lang=en", nil, prefhttp.HeaderClientID, "c1")
		assert.Equal(t, "en", msgs.body["locale"])
	})

	t.Run("anonymous client negotiates", func(t *testing.T) {
		msgs := s.do(t, http.MethodGet, "/api/v1/messages", nil, "Accept-Language", "id-ID,id;q=0.9")
		assert.Equal(t, "id", msgs.body["locale"])

		msgs = s.do(t, http.MethodGet, "/api/v1/messages", nil)
		assert.Equal(t, "en", msgs.body["locale"])
	})
}
