package entities

import (
	"errors"
	"fmt"
	"time"
)

// EventType is the kind of row change pushed over the change channel.
type EventType string

// Типы событий канала изменений.
const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ErrInvalidChange is returned for malformed change events.
var ErrInvalidChange = errors.New("invalid change event")

// ChangeEvent описывает одно зафиксированное изменение строки таблицы notes.
// Для DELETE запись содержит как минимум ID.
type ChangeEvent struct {
	EventType       EventType `json:"event_type"`
	Record          Note      `json:"record"`
	CommitTimestamp time.Time `json:"commit_timestamp"`
}

// NewChangeEvent builds an event stamped with the current time.
func NewChangeEvent(t EventType, record Note) ChangeEvent {
	return ChangeEvent{
		EventType:       t,
		Record:          record,
		CommitTimestamp: time.Now().UTC(),
	}
}

// Validate checks the event type and that the record carries an id.
func (e ChangeEvent) Validate() error {
	switch e.EventType {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidChange, e.EventType)
	}
	if e.Record.ID == "" {
		return fmt.Errorf("%w: record without id", ErrInvalidChange)
	}
	return nil
}
