package app

import (
	"strings"

	"opennotes/internal/notes/domain/entities"
)

// collection хранит заметки, уникальные по id и отсортированные по updated_at
// по убыванию. Не потокобезопасна, доступ защищает SyncStore.
type collection struct {
	notes []*entities.Note
}

func (c *collection) replace(notes []*entities.Note) {
	c.notes = make([]*entities.Note, 0, len(notes))
	for _, n := range notes {
		c.upsert(n.Clone())
	}
}

func (c *collection) index(id string) int {
	for i, n := range c.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (c *collection) get(id string) *entities.Note {
	if i := c.index(id); i >= 0 {
		return c.notes[i]
	}
	return nil
}

// insertIfAbsent добавляет заметку, если записи с таким id еще нет.
func (c *collection) insertIfAbsent(n *entities.Note) bool {
	if c.index(n.ID) >= 0 {
		return false
	}
	c.insertSorted(n)
	return true
}

// upsert заменяет запись с тем же id. Версия старше локальной игнорируется.
func (c *collection) upsert(n *entities.Note) bool {
	if i := c.index(n.ID); i >= 0 {
		if c.notes[i].NewerThan(n) {
			return false
		}
		c.removeAt(i)
	}
	c.insertSorted(n)
	return true
}

// put заменяет запись с тем же id без сравнения версий.
func (c *collection) put(n *entities.Note) bool {
	if i := c.index(n.ID); i >= 0 {
		c.removeAt(i)
	}
	c.insertSorted(n)
	return true
}

func (c *collection) remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

func (c *collection) clear() bool {
	changed := len(c.notes) > 0
	c.notes = nil
	return changed
}

func (c *collection) ids() []string {
	out := make([]string, len(c.notes))
	for i, n := range c.notes {
		out[i] = n.ID
	}
	return out
}

func (c *collection) len() int {
	return len(c.notes)
}

// insertSorted ставит заметку перед первой записью с updated_at не новее ее.
func (c *collection) insertSorted(n *entities.Note) {
	pos := len(c.notes)
	for i, existing := range c.notes {
		if !existing.UpdatedAt.After(n.UpdatedAt) {
			pos = i
			break
		}
	}
	c.notes = append(c.notes, nil)
	copy(c.notes[pos+1:], c.notes[pos:])
	c.notes[pos] = n
}

func (c *collection) removeAt(i int) {
	copy(c.notes[i:], c.notes[i+1:])
	c.notes[len(c.notes)-1] = nil
	c.notes = c.notes[:len(c.notes)-1]
}

func (c *collection) snapshot() []*entities.Note {
	out := make([]*entities.Note, len(c.notes))
	for i, n := range c.notes {
		out[i] = n.Clone()
	}
	return out
}

// filtered returns copies of notes whose content contains query, ignoring case.
func (c *collection) filtered(query string) []*entities.Note {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.snapshot()
	}
	out := make([]*entities.Note, 0, len(c.notes))
	for _, n := range c.notes {
		if strings.Contains(strings.ToLower(n.Content), q) {
			out = append(out, n.Clone())
		}
	}
	return out
}
