package entities_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opennotes/internal/notes/domain/entities"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    entities.Color
		wantErr bool
	}{
		{name: "empty yields default", input: "", want: entities.ColorWhite},
		{name: "plain color", input: "black", want: entities.ColorBlack},
		{name: "pastel color", input: "pastel-purple", want: entities.ColorPastelPurple},
		{name: "unknown color", input: "neon", wantErr: true},
		{name: "case sensitive", input: "White", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entities.ParseColor(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, entities.ErrInvalidColor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPalette(t *testing.T) {
	p := entities.Palette()
	require.Len(t, p, 10)
	assert.Equal(t, entities.DefaultColor, p[0])

	p[0] = "mutated"
	assert.Equal(t, entities.ColorWhite, entities.Palette()[0], "palette copy must be independent")
	assert.Len(t, entities.PaletteNames(), 10)
}

func TestNewNote(t *testing.T) {
	n := entities.NewNote("  hello  ", "")
	assert.Equal(t, "hello", n.Content)
	assert.Equal(t, entities.ColorWhite, n.ColorTag)
	assert.Empty(t, n.ID)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, entities.IsBlank(""))
	assert.True(t, entities.IsBlank(" \n\t "))
	assert.False(t, entities.IsBlank(" a "))
}

func TestNoteUpdateApply(t *testing.T) {
	base := &entities.Note{ID: "1", Content: "old", ColorTag: entities.ColorGray}
	content := "new"
	color := entities.ColorPastelBlue

	t.Run("content only", func(t *testing.T) {
		got := entities.NoteUpdate{Content: &content}.Apply(base)
		assert.Equal(t, "new", got.Content)
		assert.Equal(t, entities.ColorGray, got.ColorTag)
		assert.Equal(t, "old", base.Content, "source must not change")
	})

	t.Run("color only", func(t *testing.T) {
		got := entities.NoteUpdate{ColorTag: &color}.Apply(base)
		assert.Equal(t, "old", got.Content)
		assert.Equal(t, entities.ColorPastelBlue, got.ColorTag)
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, entities.NoteUpdate{}.IsEmpty())
		assert.False(t, entities.NoteUpdate{Content: &content}.IsEmpty())
	})
}

func TestChangeEvent(t *testing.T) {
	t.Run("wire format", func(t *testing.T) {
		ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		ev := entities.ChangeEvent{
			EventType:       entities.EventDelete,
			Record:          entities.Note{ID: "abc"},
			CommitTimestamp: ts,
		}

		raw, err := json.Marshal(ev)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "DELETE", decoded["event_type"])
		assert.Equal(t, "abc", decoded["record"].(map[string]any)["id"])
		assert.Equal(t, "2024-05-01T10:00:00Z", decoded["commit_timestamp"])
	})

	t.Run("validate", func(t *testing.T) {
		assert.NoError(t, entities.NewChangeEvent(entities.EventInsert, entities.Note{ID: "1"}).Validate())
		assert.ErrorIs(t, entities.NewChangeEvent("TRUNCATE", entities.Note{ID: "1"}).Validate(), entities.ErrInvalidChange)
		assert.ErrorIs(t, entities.NewChangeEvent(entities.EventUpdate, entities.Note{}).Validate(), entities.ErrInvalidChange)
	})
}
