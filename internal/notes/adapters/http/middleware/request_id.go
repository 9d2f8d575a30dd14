package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"opennotes/pkg/logger"
)

// NewRequestIDMiddleware создает контекст запроса от base и кладет в него
// идентификатор из заголовка X-Request-ID или новый UUID. Контекст не
// привязан к fasthttp.RequestCtx, который переиспользуется после ответа.
func NewRequestIDMiddleware(base context.Context) fiber.Handler {
	if base == nil {
		base = context.Background()
	}
	return func(c fiber.Ctx) error {
		ctx := logger.NewRequestIDContext(base, c.Get(HeaderRequestID))
		id, _ := logger.GetRequestID(ctx)

		c.Locals(RequestContextKey, ctx)
		c.Set(HeaderRequestID, id)

		return c.Next()
	}
}
