// Package preferences содержит HTTP-обработчики настроек клиента и каталога
// сообщений, а также выбор языка ответа.
package preferences

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"opennotes/internal/notes/adapters/http/dto"
	"opennotes/internal/notes/adapters/http/middleware"
	"opennotes/internal/notes/adapters/http/respond"
	"opennotes/internal/notes/i18n"
	prefs "opennotes/internal/notes/preferences"
	"opennotes/pkg/logger"
)

// HeaderClientID заголовок с идентификатором клиента.
const HeaderClientID = "X-Client-ID"

// Константы для логирования.
const (
	LogHandlerGetPreferences    = "handling get preferences request"
	LogHandlerUpdatePreferences = "handling update preferences request"
	LogHandlerToggleTheme       = "handling toggle theme request"
	LogHandlerToggleLocale      = "handling toggle locale request"
	LogPreferencesUnavailable   = "preferences unavailable, negotiating locale"

	ErrMsgInvalidRequestBody = "invalid request body"
)

// Service is the preferences store as seen by the handlers.
type Service interface {
	Get(ctx context.Context, clientID string) (prefs.Preferences, error)
	Set(ctx context.Context, clientID string, update prefs.Update) (prefs.Preferences, error)
	ToggleTheme(ctx context.Context, clientID string) (prefs.Preferences, error)
	ToggleLocale(ctx context.Context, clientID string) (prefs.Preferences, error)
}

// Catalog is the message catalog as seen by the handlers.
type Catalog interface {
	Supported(locale string) bool
	Negotiate(acceptLanguage string) string
	Messages(locale string) (map[string]string, error)
}

// Handler обработчик настроек и сообщений.
type Handler struct {
	service  Service
	catalog  Catalog
	validate *dto.Validator
}

// NewHandler создает новый экземпляр обработчика настроек.
func NewHandler(service Service, catalog Catalog) *Handler {
	return &Handler{service: service, catalog: catalog, validate: dto.NewValidator()}
}

// ClientID возвращает идентификатор клиента из заголовка или клиента по умолчанию.
func ClientID(c fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get(HeaderClientID)); id != "" {
		return id
	}
	return prefs.DefaultClientID
}

// Locale выбирает язык ответа: параметр lang, затем сохраненная настройка
// представившегося клиента, затем Accept-Language.
func (h *Handler) Locale(c fiber.Ctx) string {
	if lang := c.Query("lang"); h.catalog.Supported(lang) {
		return lang
	}

	if strings.TrimSpace(c.Get(HeaderClientID)) != "" {
		ctx := middleware.RequestContext(c)
		p, err := h.service.Get(ctx, ClientID(c))
		if err == nil {
			return string(p.Locale)
		}
		logger.Log(ctx).Warn(ctx, LogPreferencesUnavailable, zap.Error(err))
	}

	return h.catalog.Negotiate(c.Get(fiber.HeaderAcceptLanguage))
}

// GetPreferences возвращает настройки клиента.
func (h *Handler) GetPreferences(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.GetPreferences")).Debug(ctx, LogHandlerGetPreferences)

	clientID := ClientID(c)
	p, err := h.service.Get(ctx, clientID)
	return h.reply(c, clientID, p, err)
}

// UpdatePreferences сохраняет переданные поля.
func (h *Handler) UpdatePreferences(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.UpdatePreferences"))
	log.Debug(ctx, LogHandlerUpdatePreferences)

	var req dto.PreferencesRequest
	if err := c.Bind().JSON(&req); err != nil {
		log.Debug(ctx, ErrMsgInvalidRequestBody, zap.Error(err))
		return respond.Error(c, fmt.Errorf("%w: %s", respond.ErrInvalidBody, err.Error()))
	}
	if err := h.validate.Validate(req); err != nil {
		return respond.Error(c, err)
	}

	clientID := ClientID(c)
	p, err := h.service.Set(ctx, clientID, req.Update())
	return h.reply(c, clientID, p, err)
}

// ToggleTheme переключает тему.
func (h *Handler) ToggleTheme(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.ToggleTheme")).Debug(ctx, LogHandlerToggleTheme)

	clientID := ClientID(c)
	p, err := h.service.ToggleTheme(ctx, clientID)
	return h.reply(c, clientID, p, err)
}

// ToggleLocale переключает язык.
func (h *Handler) ToggleLocale(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.ToggleLocale")).Debug(ctx, LogHandlerToggleLocale)

	clientID := ClientID(c)
	p, err := h.service.ToggleLocale(ctx, clientID)
	return h.reply(c, clientID, p, err)
}

// Messages возвращает каталог сообщений для выбранного языка.
func (h *Handler) Messages(c fiber.Ctx) error {
	locale := h.Locale(c)
	messages, err := h.catalog.Messages(locale)
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.JSON(c, fiber.StatusOK, dto.MessagesResponse{
		Locale:     locale,
		DateLocale: i18n.DateLocale(locale),
		Messages:   messages,
	})
}

func (h *Handler) reply(c fiber.Ctx, clientID string, p prefs.Preferences, err error) error {
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.JSON(c, fiber.StatusOK, dto.PreferencesResponse{ClientID: clientID, Preferences: p})
}
