// Package http содержит компоненты для HTTP сервера.
package http

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"opennotes/internal/notes/adapters/http/middleware"
	"opennotes/internal/notes/adapters/http/notes"
	"opennotes/internal/notes/adapters/http/preferences"
)

// Handlers содержит обработчики, подключаемые к маршрутам.
type Handlers struct {
	Notes       *notes.Handler
	Preferences *preferences.Handler
}

// SetupRouter настраивает маршрутизацию для HTTP сервера. base служит
// родительским контекстом запросов и несет логгер сервиса.
func SetupRouter(app *fiber.App, base context.Context, h Handlers) {
	// Middleware для всех запросов.
	app.Use(middleware.NewRequestIDMiddleware(base))
	app.Use(middleware.NewLoggerMiddleware())
	app.Use(middleware.NewRecoveryMiddleware())

	app.Get("/healthz", h.Notes.Health)

	// API версии 1.
	apiV1 := app.Group("/api/v1")

	notesRoutes := apiV1.Group("/notes")
	notesRoutes.Get("/", h.Notes.ListNotes)
	notesRoutes.Post("/", h.Notes.CreateNote)
	notesRoutes.Delete("/", h.Notes.DeleteAll)
	notesRoutes.Get("/stream", h.Notes.Stream)
	notesRoutes.Put("/search", h.Notes.SetSearch)
	notesRoutes.Post("/reload", h.Notes.Reload)
	notesRoutes.Get("/:note_id", h.Notes.GetNote)
	notesRoutes.Patch("/:note_id", h.Notes.UpdateNote)
	notesRoutes.Delete("/:note_id", h.Notes.DeleteNote)
	notesRoutes.Post("/:note_id/sessions", h.Notes.OpenSession)

	sessionRoutes := apiV1.Group("/sessions")
	sessionRoutes.Get("/:session_id", h.Notes.GetSession)
	sessionRoutes.Patch("/:session_id", h.Notes.EditSession)
	sessionRoutes.Delete("/:session_id", h.Notes.CloseSession)
	sessionRoutes.Post("/:session_id/delete-request", h.Notes.RequestDelete)
	sessionRoutes.Delete("/:session_id/delete-request", h.Notes.CancelDelete)
	sessionRoutes.Post("/:session_id/delete", h.Notes.ConfirmDelete)

	apiV1.Get("/palette", h.Notes.Palette)
	apiV1.Get("/messages", h.Preferences.Messages)

	prefRoutes := apiV1.Group("/preferences")
	prefRoutes.Get("/", h.Preferences.GetPreferences)
	prefRoutes.Put("/", h.Preferences.UpdatePreferences)
	prefRoutes.Post("/theme/toggle", h.Preferences.ToggleTheme)
	prefRoutes.Post("/locale/toggle", h.Preferences.ToggleLocale)

	// Обработчик для несуществующих маршрутов.
	app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "route not found",
		})
	})
}
