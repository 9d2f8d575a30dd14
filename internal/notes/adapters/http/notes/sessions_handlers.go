package notes

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"opennotes/internal/notes/adapters/http/dto"
	"opennotes/internal/notes/adapters/http/middleware"
	"opennotes/internal/notes/adapters/http/respond"
	"opennotes/internal/notes/session"
	"opennotes/pkg/logger"
)

// Константы для логирования.
const (
	LogHandlerOpenSession   = "handling open session request"
	LogHandlerEditSession   = "handling edit session request"
	LogHandlerCloseSession  = "handling close session request"
	LogHandlerRequestDelete = "handling delete request"
	LogHandlerCancelDelete  = "handling cancel delete request"
	LogHandlerConfirmDelete = "handling confirm delete request"
	LogSessionCloseFailed   = "editing session close failed"
	LogSessionConfirmFailed = "editing session delete failed"
)

// OpenSession открывает сессию редактирования заметки или возвращает открытую.
func (h *Handler) OpenSession(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.OpenSession")).Debug(ctx, LogHandlerOpenSession)

	s, err := h.sessions.Open(ctx, c.Params("note_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.JSON(c, fiber.StatusCreated, dto.SessionResponse{Session: s.Snapshot()})
}

// GetSession возвращает состояние сессии.
func (h *Handler) GetSession(c fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("session_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.JSON(c, fiber.StatusOK, dto.SessionResponse{Session: s.Snapshot()})
}

// EditSession применяет правку к буферу сессии.
func (h *Handler) EditSession(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.EditSession"))
	log.Debug(ctx, LogHandlerEditSession)

	var req dto.EditSessionRequest
	if err := h.bind(c, &req); err != nil {
		log.Debug(ctx, ErrMsgInvalidRequestBody, zap.Error(err))
		return respond.Error(c, err)
	}
	if req.Content == nil && req.ColorTag == nil {
		return respond.Error(c, respond.ErrEmptyUpdate)
	}

	return h.withSession(c, func(s *session.Session) error {
		return s.Edit(req.Content, req.Color())
	})
}

// CloseSession закрывает сессию: сохраняет отличия или удаляет пустую заметку.
func (h *Handler) CloseSession(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.CloseSession"))
	log.Debug(ctx, LogHandlerCloseSession)

	if err := h.sessions.Close(ctx, c.Params("session_id")); err != nil {
		log.Warn(ctx, LogSessionCloseFailed, zap.Error(err))
		return respond.Error(c, err)
	}
	return respond.NoContent(c)
}

// RequestDelete отмечает запрос на удаление заметки сессии.
func (h *Handler) RequestDelete(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.RequestDelete")).Debug(ctx, LogHandlerRequestDelete)

	return h.withSession(c, (*session.Session).RequestDelete)
}

// CancelDelete снимает запрос на удаление.
func (h *Handler) CancelDelete(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.CancelDelete")).Debug(ctx, LogHandlerCancelDelete)

	return h.withSession(c, (*session.Session).CancelDelete)
}

// ConfirmDelete удаляет заметку после запроса на удаление.
func (h *Handler) ConfirmDelete(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.ConfirmDelete"))
	log.Debug(ctx, LogHandlerConfirmDelete)

	if err := h.sessions.ConfirmDelete(ctx, c.Params("session_id")); err != nil {
		log.Warn(ctx, LogSessionConfirmFailed, zap.Error(err))
		return respond.Error(c, err)
	}
	return respond.NoContent(c)
}

func (h *Handler) withSession(c fiber.Ctx, apply func(*session.Session) error) error {
	s, err := h.sessions.Get(c.Params("session_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	if err := apply(s); err != nil {
		return respond.Error(c, err)
	}
	return respond.JSON(c, fiber.StatusOK, dto.SessionResponse{Session: s.Snapshot()})
}
