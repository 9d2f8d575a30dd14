// Package entities defines the domain entities for the notes service.
package entities

import (
	"errors"
	"strings"
	"time"
)

// Note представляет собой заметку с цветовой меткой.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ColorTag  Color     `json:"color_tag"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewNote creates a note with trimmed content. The id and timestamps are
// assigned by the remote store on insert.
func NewNote(content string, color Color) *Note {
	if color == "" {
		color = DefaultColor
	}
	return &Note{
		Content:  strings.TrimSpace(content),
		ColorTag: color,
	}
}

// IsBlank reports whether the content is empty or whitespace only.
func (n *Note) IsBlank() bool {
	return IsBlank(n.Content)
}

// Clone returns an independent copy of the note.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// NewerThan reports whether n was updated strictly after other.
func (n *Note) NewerThan(other *Note) bool {
	return n.UpdatedAt.After(other.UpdatedAt)
}

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// NoteUpdate содержит изменяемые поля заметки. Nil означает "не менять".
type NoteUpdate struct {
	Content  *string `json:"content,omitempty"`
	ColorTag *Color  `json:"color_tag,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u NoteUpdate) IsEmpty() bool {
	return u.Content == nil && u.ColorTag == nil
}

// Apply returns a copy of n with the fields of u applied.
func (u NoteUpdate) Apply(n *Note) *Note {
	out := n.Clone()
	if u.Content != nil {
		out.Content = *u.Content
	}
	if u.ColorTag != nil {
		out.ColorTag = *u.ColorTag
	}
	return out
}

// ErrNoteNotFound is returned when no note with the given id exists.
var ErrNoteNotFound = errors.New("note not found")
