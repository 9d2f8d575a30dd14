// Package dto содержит тела запросов и ответов HTTP API заметок.
package dto

import (
	"time"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/preferences"
	"opennotes/internal/notes/session"
)

// CreateNoteRequest содержит данные для создания заметки.
type CreateNoteRequest struct {
	Content  string `json:"content"`
	ColorTag string `json:"color_tag" validate:"omitempty,palette"`
	Open     bool   `json:"open"`
}

// UpdateNoteRequest содержит изменяемые поля заметки.
type UpdateNoteRequest struct {
	Content  *string `json:"content"`
	ColorTag *string `json:"color_tag" validate:"omitempty,palette"`
}

// NoteUpdate конвертирует запрос в доменное обновление.
func (r UpdateNoteRequest) NoteUpdate() entities.NoteUpdate {
	upd := entities.NoteUpdate{Content: r.Content}
	if r.ColorTag != nil {
		c := entities.Color(*r.ColorTag)
		upd.ColorTag = &c
	}
	return upd
}

// SearchRequest задает строку поиска.
type SearchRequest struct {
	Query string `json:"query" validate:"max=512"`
}

// EditSessionRequest содержит правку буфера сессии.
type EditSessionRequest struct {
	Content  *string `json:"content"`
	ColorTag *string `json:"color_tag" validate:"omitempty,palette"`
}

// Color возвращает цвет правки или nil.
func (r EditSessionRequest) Color() *entities.Color {
	if r.ColorTag == nil {
		return nil
	}
	c := entities.Color(*r.ColorTag)
	return &c
}

// PreferencesRequest содержит изменяемые настройки.
type PreferencesRequest struct {
	Theme  *string `json:"theme" validate:"omitempty,theme"`
	Locale *string `json:"locale" validate:"omitempty,locale"`
}

// Update конвертирует запрос в обновление настроек.
func (r PreferencesRequest) Update() preferences.Update {
	var upd preferences.Update
	if r.Theme != nil {
		t := preferences.Theme(*r.Theme)
		upd.Theme = &t
	}
	if r.Locale != nil {
		l := preferences.Locale(*r.Locale)
		upd.Locale = &l
	}
	return upd
}

// Note представляет заметку в ответе.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ColorTag  string    `json:"color_tag"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromNote конвертирует доменную заметку.
func FromNote(n *entities.Note) *Note {
	if n == nil {
		return nil
	}
	return &Note{
		ID:        n.ID,
		Content:   n.Content,
		ColorTag:  string(n.ColorTag),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// FromNotes конвертирует список, сохраняя порядок. Nil превращается в пустой список.
func FromNotes(notes []*entities.Note) []*Note {
	out := make([]*Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, FromNote(n))
	}
	return out
}

// NoteResponse содержит заметку и, если она открыта, идентификатор сессии.
type NoteResponse struct {
	Note      *Note  `json:"note"`
	SessionID string `json:"session_id,omitempty"`
}

// ListNotesResponse содержит отфильтрованный список и флаг загрузки.
type ListNotesResponse struct {
	Notes   []*Note `json:"notes"`
	Loading bool    `json:"loading"`
	Filter  string  `json:"filter"`
}

// DeleteAllResponse содержит локализованное сообщение о массовом удалении.
type DeleteAllResponse struct {
	Deleted           int    `json:"deleted"`
	DiscardedSessions int    `json:"discarded_sessions"`
	Message           string `json:"message"`
}

// SessionResponse содержит состояние сессии редактирования.
type SessionResponse struct {
	Session session.Snapshot `json:"session"`
}

// PaletteResponse содержит допустимые цвета.
type PaletteResponse struct {
	Colors  []string `json:"colors"`
	Default string   `json:"default"`
}

// PreferencesResponse содержит настройки клиента.
type PreferencesResponse struct {
	ClientID    string                  `json:"client_id"`
	Preferences preferences.Preferences `json:"preferences"`
}

// MessagesResponse содержит каталог сообщений для языка.
type MessagesResponse struct {
	Locale     string            `json:"locale"`
	DateLocale string            `json:"date_locale"`
	Messages   map[string]string `json:"messages"`
}

// HealthResponse содержит состояние сервиса.
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
	Notes  int    `json:"notes"`
}

// ErrorResponse содержит текст ошибки.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
