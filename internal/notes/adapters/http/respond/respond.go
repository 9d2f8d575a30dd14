// Package respond отправляет JSON-ответы и переводит ошибки в HTTP-статусы.
package respond

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"opennotes/internal/notes/adapters/http/dto"
	"opennotes/internal/notes/app"
	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/preferences"
	"opennotes/internal/notes/resilience"
	"opennotes/internal/notes/session"
)

// Ошибки уровня HTTP.
var (
	ErrConfirmationRequired = errors.New("confirmation required: repeat the request with confirm=true")
	ErrInvalidBody          = errors.New("invalid request body")
	ErrEmptyUpdate          = errors.New("update must change content or color_tag")
)

// Сообщения для статусов, текст ошибки которых не отдается клиенту.
const (
	MsgInternal    = "internal server error"
	MsgUnavailable = "note storage is temporarily unavailable"
)

// Status возвращает HTTP-статус для ошибки.
func Status(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, dto.ErrValidation),
		errors.Is(err, ErrInvalidBody),
		errors.Is(err, ErrEmptyUpdate),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, app.ErrBlankContent),
		errors.Is(err, entities.ErrInvalidColor),
		errors.Is(err, preferences.ErrInvalidTheme),
		errors.Is(err, preferences.ErrInvalidLocale),
		errors.Is(err, preferences.ErrInvalidClientID):
		return fiber.StatusBadRequest
	case errors.Is(err, entities.ErrNoteNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, session.ErrDeleteNotRequested):
		return fiber.StatusConflict
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// Error отправляет ошибку как {"error": "..."}. Текст внутренних ошибок
// заменяется общим сообщением.
func Error(c fiber.Ctx, err error) error {
	status := Status(err)
	body := dto.ErrorResponse{Error: err.Error()}

	var fieldsErr *dto.FieldsError
	if errors.As(err, &fieldsErr) {
		body.Fields = fieldsErr.Fields
	}

	switch status {
	case fiber.StatusInternalServerError:
		body = dto.ErrorResponse{Error: MsgInternal}
	case fiber.StatusServiceUnavailable:
		body = dto.ErrorResponse{Error: MsgUnavailable}
	}

	return JSON(c, status, body)
}

// ErrorMessage отправляет статус для err с заданным текстом.
func ErrorMessage(c fiber.Ctx, err error, message string) error {
	return JSON(c, Status(err), dto.ErrorResponse{Error: message})
}

// JSON отправляет тело с заданным статусом.
func JSON(c fiber.Ctx, status int, body any) error {
	if err := c.Status(status).JSON(body); err != nil {
		return fmt.Errorf("error sending response: %w", err)
	}
	return nil
}

// NoContent отправляет 204.
func NoContent(c fiber.Ctx) error {
	if err := c.SendStatus(fiber.StatusNoContent); err != nil {
		return fmt.Errorf("error sending response: %w", err)
	}
	return nil
}
