// Package middleware содержит промежуточное ПО для HTTP обработчиков.
package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"
)

// RequestContextKey ключ Locals, под которым хранится контекст запроса.
const RequestContextKey = "requestContext"

// HeaderRequestID заголовок с идентификатором запроса.
const HeaderRequestID = "X-Request-ID"

// RequestContext возвращает контекст запроса с логгером и request id.
// Без middleware возвращается context.Background.
func RequestContext(c fiber.Ctx) context.Context {
	if ctx, ok := c.Locals(RequestContextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}
