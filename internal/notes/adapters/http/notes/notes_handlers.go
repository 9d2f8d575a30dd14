package notes

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"opennotes/internal/notes/adapters/http/dto"
	"opennotes/internal/notes/adapters/http/middleware"
	"opennotes/internal/notes/adapters/http/respond"
	"opennotes/internal/notes/domain/entities"
	"opennotes/pkg/logger"
)

// Константы для логирования.
const (
	LogHandlerListNotes  = "handling list notes request"
	LogHandlerSetSearch  = "handling set search request"
	LogHandlerReload     = "handling reload request"
	LogHandlerCreateNote = "handling create note request"
	LogHandlerGetNote    = "handling get note request"
	LogHandlerUpdateNote = "handling update note request"
	LogHandlerDeleteNote = "handling delete note request"
	LogHandlerDeleteAll  = "handling delete all request"
	LogDiscardedSession  = "open editing session of deleted note discarded"

	ErrMsgInvalidRequestBody = "invalid request body"
	ErrMsgOpenSession        = "note created but editing session could not be opened"
)

// ListNotes возвращает отфильтрованный список. Параметр q заменяет
// сохраненную строку поиска только для этого запроса.
func (h *Handler) ListNotes(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.ListNotes")).Debug(ctx, LogHandlerListNotes)

	return respond.JSON(c, fiber.StatusOK, h.listResponse(searchQuery(c)))
}

func (h *Handler) listResponse(query string, override bool) dto.ListNotesResponse {
	if !override {
		query = h.store.SearchFilter()
	}
	return dto.ListNotesResponse{
		Notes:   dto.FromNotes(h.store.FilteredBy(query)),
		Loading: h.store.Loading(),
		Filter:  query,
	}
}

// SetSearch сохраняет строку поиска.
func (h *Handler) SetSearch(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.SetSearch"))
	log.Debug(ctx, LogHandlerSetSearch)

	var req dto.SearchRequest
	if err := h.bind(c, &req); err != nil {
		log.Debug(ctx, ErrMsgInvalidRequestBody, zap.Error(err))
		return respond.Error(c, err)
	}

	h.store.SetSearchFilter(req.Query)
	return respond.JSON(c, fiber.StatusOK, h.listResponse("", false))
}

// Reload перечитывает список из удаленного хранилища.
func (h *Handler) Reload(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.Reload"))
	log.Debug(ctx, LogHandlerReload)

	if _, err := h.store.List(ctx); err != nil {
		return respond.Error(c, err)
	}
	return respond.JSON(c, fiber.StatusOK, h.listResponse("", false))
}

// CreateNote создает заметку и при open=true открывает для нее сессию.
func (h *Handler) CreateNote(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.CreateNote"))
	log.Debug(ctx, LogHandlerCreateNote)

	var req dto.CreateNoteRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			log.Debug(ctx, ErrMsgInvalidRequestBody, zap.Error(err))
			return respond.Error(c, err)
		}
	}

	note, err := h.store.Add(ctx, req.Content, entities.Color(req.ColorTag))
	if err != nil {
		return respond.Error(c, err)
	}

	resp := dto.NoteResponse{Note: dto.FromNote(note)}
	if req.Open {
		s, err := h.sessions.Open(ctx, note.ID)
		if err != nil {
			log.Error(ctx, ErrMsgOpenSession, zap.String("noteID", note.ID), zap.Error(err))
			return respond.Error(c, err)
		}
		resp.SessionID = s.ID()
	}

	return respond.JSON(c, fiber.StatusCreated, resp)
}

// GetNote возвращает заметку из локального списка.
func (h *Handler) GetNote(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	logger.Log(ctx).With(zap.String("handler", "Handler.GetNote")).Debug(ctx, LogHandlerGetNote)

	note, ok := h.store.Get(c.Params("note_id"))
	if !ok {
		return respond.Error(c, entities.ErrNoteNotFound)
	}
	return respond.JSON(c, fiber.StatusOK, dto.NoteResponse{Note: dto.FromNote(note)})
}

// UpdateNote изменяет содержимое и/или цвет заметки.
func (h *Handler) UpdateNote(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.UpdateNote"))
	log.Debug(ctx, LogHandlerUpdateNote)

	var req dto.UpdateNoteRequest
	if err := h.bind(c, &req); err != nil {
		log.Debug(ctx, ErrMsgInvalidRequestBody, zap.Error(err))
		return respond.Error(c, err)
	}
	update := req.NoteUpdate()
	if update.IsEmpty() {
		return respond.Error(c, respond.ErrEmptyUpdate)
	}

	note, err := h.store.Update(ctx, c.Params("note_id"), update)
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.JSON(c, fiber.StatusOK, dto.NoteResponse{Note: dto.FromNote(note)})
}

// DeleteNote удаляет заметку. Требует confirm=true.
func (h *Handler) DeleteNote(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.DeleteNote"))
	log.Debug(ctx, LogHandlerDeleteNote)

	if !confirmed(c) {
		return respond.Error(c, respond.ErrConfirmationRequired)
	}

	noteID := c.Params("note_id")
	if err := h.store.Remove(ctx, noteID); err != nil {
		return respond.Error(c, err)
	}
	if h.sessions.DiscardNote(ctx, noteID) {
		log.Debug(ctx, LogDiscardedSession, zap.String("noteID", noteID))
	}
	return respond.NoContent(c)
}

// DeleteAll удаляет все заметки и закрывает открытые сессии без сохранения.
// Требует confirm=true. Результат сообщается локализованным текстом.
func (h *Handler) DeleteAll(c fiber.Ctx) error {
	ctx := middleware.RequestContext(c)
	log := logger.Log(ctx).With(zap.String("handler", "Handler.DeleteAll"))
	log.Debug(ctx, LogHandlerDeleteAll)

	if !confirmed(c) {
		return respond.Error(c, respond.ErrConfirmationRequired)
	}

	locale := h.locales.Locale(c)

	count, err := h.store.RemoveAll(ctx)
	if err != nil {
		return respond.ErrorMessage(c, err, h.messages.T(locale, "topbar.deleteAllError"))
	}

	discarded := h.sessions.DiscardAll(ctx)
	return respond.JSON(c, fiber.StatusOK, dto.DeleteAllResponse{
		Deleted:           count,
		DiscardedSessions: discarded,
		Message:           h.messages.T(locale, "topbar.deleteAllSuccess"),
	})
}

// Palette возвращает допустимые цвета.
func (h *Handler) Palette(c fiber.Ctx) error {
	return respond.JSON(c, fiber.StatusOK, dto.PaletteResponse{
		Colors:  entities.PaletteNames(),
		Default: string(entities.DefaultColor),
	})
}

// Health сообщает, подписан ли store и загружен ли список.
func (h *Handler) Health(c fiber.Ctx) error {
	status, code := "ok", fiber.StatusOK
	if !h.store.Ready() {
		status, code = "starting", fiber.StatusServiceUnavailable
	}
	return respond.JSON(c, code, dto.HealthResponse{Status: status, Ready: code == fiber.StatusOK, Notes: h.store.Len()})
}

// bind разбирает JSON-тело и проверяет его валидатором.
func (h *Handler) bind(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return fmt.Errorf("%w: %s", respond.ErrInvalidBody, err.Error())
	}
	if err := h.validate.Validate(req); err != nil {
		return err
	}
	return nil
}
