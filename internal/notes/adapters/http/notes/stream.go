package notes

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"opennotes/internal/notes/adapters/http/middleware"
	"opennotes/pkg/logger"
)

// Константы для логирования.
const (
	LogStreamOpened = "notes stream opened"
	LogStreamClosed = "notes stream closed"

	// EventNotes имя события с отфильтрованным списком.
	EventNotes = "notes"
)

// Stream отдает список как server-sent events: одно событие notes при
// подключении и после каждого изменения списка.
func (h *Handler) Stream(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.Stream"))
	query, override := searchQuery(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	changes, cancel := h.store.Watch()
	log.Debug(ctx, LogStreamOpened)

	c.RequestCtx().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		err := h.streamTo(ctx, w, changes, query, override)
		log.Debug(ctx, LogStreamClosed, zap.Error(err))
	}))
	return nil
}

// streamTo пишет события, пока клиент не отключится, ctx не завершится или
// Handler не будет закрыт.
func (h *Handler) streamTo(ctx context.Context, w *bufio.Writer, changes <-chan struct{}, query string, override bool) error {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	if err := h.writeNotesEvent(w, query, override); err != nil {
		return err
	}

	for {
		select {
		case <-h.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := h.writeNotesEvent(w, query, override); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) writeNotesEvent(w *bufio.Writer, query string, override bool) error {
	payload, err := json.Marshal(h.listResponse(query, override))
	if err != nil {
		return fmt.Errorf("marshal notes event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventNotes, payload); err != nil {
		return err
	}
	return w.Flush()
}
