// Package preferences хранит тему и язык интерфейса для каждого клиента.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"opennotes/internal/notes/ports/cache"
	"opennotes/pkg/logger"
)

// Ключи хранилища настроек.
const (
	ThemeKey  = "open_notes_theme"
	LocaleKey = "open_notes_locale"
)

// DefaultClientID используется, когда клиент не представился.
const DefaultClientID = "default"

// Ошибки настроек.
var (
	ErrInvalidTheme    = errors.New("invalid theme")
	ErrInvalidLocale   = errors.New("invalid locale")
	ErrInvalidClientID = errors.New("invalid client id")
)

// Константы для логирования.
const (
	LogStoredValueInvalid = "stored preference is invalid, using default"
	ErrLoadPreferences    = "failed to load preferences"
	ErrSavePreferences    = "failed to save preferences"
)

// Theme is the color scheme of the interface.
type Theme string

// Темы.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool { return t == ThemeLight || t == ThemeDark }

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Locale is an interface language.
type Locale string

// Языки.
const (
	LocaleEN Locale = "en"
	LocaleID Locale = "id"
)

// Valid reports whether l is a supported locale.
func (l Locale) Valid() bool { return l == LocaleEN || l == LocaleID }

// Toggle returns the other supported locale.
func (l Locale) Toggle() Locale {
	if l == LocaleID {
		return LocaleEN
	}
	return LocaleID
}

// Preferences are the settings of one client.
type Preferences struct {
	Theme  Theme  `json:"theme"`
	Locale Locale `json:"locale"`
}

// Defaults возвращает настройки нового клиента.
func Defaults() Preferences {
	return Preferences{Theme: ThemeLight, Locale: LocaleEN}
}

// Update содержит изменяемые поля. Nil означает "не менять".
type Update struct {
	Theme  *Theme
	Locale *Locale
}

// Service читает и сохраняет настройки через кэш.
type Service struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewService создает сервис настроек. Нулевой ttl означает хранение без срока.
func NewService(c cache.Cache, ttl time.Duration) *Service {
	return &Service{cache: c, ttl: ttl}
}

// Get возвращает настройки клиента. Отсутствующие и поврежденные значения
// заменяются значениями по умолчанию.
func (s *Service) Get(ctx context.Context, clientID string) (Preferences, error) {
	clientID, err := normalizeClientID(clientID)
	if err != nil {
		return Preferences{}, err
	}
	log := logger.Log(ctx).With(zap.String("method", "Service.Get"), zap.String("clientID", clientID))

	values, err := s.cache.GetMany(ctx, key(ThemeKey, clientID), key(LocaleKey, clientID))
	if err != nil {
		return Preferences{}, fmt.Errorf("%s: %w", ErrLoadPreferences, err)
	}
	theme, locale := values[0], values[1]

	prefs := Defaults()
	if theme != "" {
		if t := Theme(theme); t.Valid() {
			prefs.Theme = t
		} else {
			log.Warn(ctx, LogStoredValueInvalid, zap.String("theme", theme))
		}
	}
	if locale != "" {
		if l := Locale(locale); l.Valid() {
			prefs.Locale = l
		} else {
			log.Warn(ctx, LogStoredValueInvalid, zap.String("locale", locale))
		}
	}

	return prefs, nil
}

// Set проверяет и сохраняет переданные поля, возвращает итоговые настройки.
func (s *Service) Set(ctx context.Context, clientID string, update Update) (Preferences, error) {
	if update.Theme != nil && !update.Theme.Valid() {
		return Preferences{}, fmt.Errorf("%w: %q", ErrInvalidTheme, *update.Theme)
	}
	if update.Locale != nil && !update.Locale.Valid() {
		return Preferences{}, fmt.Errorf("%w: %q", ErrInvalidLocale, *update.Locale)
	}

	clientID, err := normalizeClientID(clientID)
	if err != nil {
		return Preferences{}, err
	}

	values := make(map[string]string, 2)
	if update.Theme != nil {
		values[key(ThemeKey, clientID)] = string(*update.Theme)
	}
	if update.Locale != nil {
		values[key(LocaleKey, clientID)] = string(*update.Locale)
	}
	if err := s.cache.SetMany(ctx, values, s.ttl); err != nil {
		return Preferences{}, fmt.Errorf("%s: %w", ErrSavePreferences, err)
	}

	return s.Get(ctx, clientID)
}

// ToggleTheme переключает тему light <-> dark.
func (s *Service) ToggleTheme(ctx context.Context, clientID string) (Preferences, error) {
	current, err := s.Get(ctx, clientID)
	if err != nil {
		return Preferences{}, err
	}
	next := current.Theme.Toggle()
	return s.Set(ctx, clientID, Update{Theme: &next})
}

// ToggleLocale переключает язык en <-> id.
func (s *Service) ToggleLocale(ctx context.Context, clientID string) (Preferences, error) {
	current, err := s.Get(ctx, clientID)
	if err != nil {
		return Preferences{}, err
	}
	next := current.Locale.Toggle()
	return s.Set(ctx, clientID, Update{Locale: &next})
}

// Reset удаляет сохраненные настройки клиента.
func (s *Service) Reset(ctx context.Context, clientID string) error {
	clientID, err := normalizeClientID(clientID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, key(ThemeKey, clientID), key(LocaleKey, clientID)); err != nil {
		return fmt.Errorf("%s: %w", ErrSavePreferences, err)
	}
	return nil
}

const maxClientIDLength = 128

func normalizeClientID(clientID string) (string, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return DefaultClientID, nil
	}
	if len(clientID) > maxClientIDLength || strings.ContainsAny(clientID, " \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}
	return clientID, nil
}

func key(prefix, clientID string) string {
	return prefix + ":" + clientID
}
