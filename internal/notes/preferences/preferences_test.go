package preferences_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "opennotes/internal/notes/adapters/cache"
	"opennotes/internal/notes/preferences"
)

func newService(t *testing.T, ttl time.Duration) (*preferences.Service, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return preferences.NewService(rediscache.NewRedisCache(client, "", 0), ttl), s
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults for a new client", func(t *testing.T) {
		svc, _ := newService(t, 0)

		prefs, err := svc.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, preferences.Defaults(), prefs)
		assert.Equal(t, preferences.ThemeLight, prefs.Theme)
		assert.Equal(t, preferences.LocaleEN, prefs.Locale)
	})

	t.Run("stored values", func(t *testing.T) {
		svc, srv := newService(t, 0)
		require.NoError(t, srv.Set("open_notes_theme:c1", "dark"))
		require.NoError(t, srv.Set("open_notes_locale:c1", "id"))

		prefs, err := svc.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, preferences.Preferences{Theme: preferences.ThemeDark, Locale: preferences.LocaleID}, prefs)
	})

	t.Run("corrupted values fall back to defaults", func(t *testing.T) {
		svc, srv := newService(t, 0)
		require.NoError(t, srv.Set("open_notes_theme:c1", "sepia"))
		require.NoError(t, srv.Set("open_notes_locale:c1", "fr"))

		prefs, err := svc.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, preferences.Defaults(), prefs)
	})

	t.Run("empty client id uses default client", func(t *testing.T) {
		svc, srv := newService(t, 0)
		require.NoError(t, srv.Set("open_notes_theme:default", "dark"))

		prefs, err := svc.Get(ctx, "  ")
		require.NoError(t, err)
		assert.Equal(t, preferences.ThemeDark, prefs.Theme)
	})

	t.Run("invalid client id", func(t *testing.T) {
		svc, _ := newService(t, 0)

		_, err := svc.Get(ctx, "has space")
		assert.ErrorIs(t, err, preferences.ErrInvalidClientID)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		svc, srv := newService(t, 0)
		srv.Close()

		_, err := svc.Get(ctx, "c1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), preferences.ErrLoadPreferences)
	})
}

func TestService_Set(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update keeps the other field", func(t *testing.T) {
		svc, srv := newService(t, 0)
		locale := preferences.LocaleID

		prefs, err := svc.Set(ctx, "c1", preferences.Update{Locale: &locale})
		require.NoError(t, err)
		assert.Equal(t, preferences.Preferences{Theme: preferences.ThemeLight, Locale: preferences.LocaleID}, prefs)

		stored, err := srv.Get("open_notes_locale:c1")
		require.NoError(t, err)
		assert.Equal(t, "id", stored)
		assert.False(t, srv.Exists("open_notes_theme:c1"))
	})

	t.Run("validation happens before any write", func(t *testing.T) {
		svc, srv := newService(t, 0)
		theme := preferences.ThemeDark
		bad := preferences.Locale("de")

		_, err := svc.Set(ctx, "c1", preferences.Update{Theme: &theme, Locale: &bad})
		assert.ErrorIs(t, err, preferences.ErrInvalidLocale)
		assert.False(t, srv.Exists("open_notes_theme:c1"))

		badTheme := preferences.Theme("blue")
		_, err = svc.Set(ctx, "c1", preferences.Update{Theme: &badTheme})
		assert.ErrorIs(t, err, preferences.ErrInvalidTheme)
	})

	t.Run("ttl is applied", func(t *testing.T) {
		svc, srv := newService(t, time.Hour)
		theme := preferences.ThemeDark

		_, err := svc.Set(ctx, "c1", preferences.Update{Theme: &theme})
		require.NoError(t, err)
		assert.Equal(t, time.Hour, srv.TTL("open_notes_theme:c1"))
	})
}

func TestService_Toggle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, 0)

	prefs, err := svc.ToggleTheme(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, preferences.ThemeDark, prefs.Theme)

	prefs, err = svc.ToggleTheme(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, preferences.ThemeLight, prefs.Theme)

	prefs, err = svc.ToggleLocale(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, preferences.LocaleID, prefs.Locale)

	prefs, err = svc.ToggleLocale(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, preferences.LocaleEN, prefs.Locale)

	other, err := svc.Get(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, preferences.Defaults(), other, "clients are independent")
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()
	svc, srv := newService(t, 0)

	_, err := svc.ToggleTheme(ctx, "c1")
	require.NoError(t, err)
	require.True(t, srv.Exists("open_notes_theme:c1"))

	require.NoError(t, svc.Reset(ctx, "c1"))

	prefs, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, preferences.Defaults(), prefs)
}
