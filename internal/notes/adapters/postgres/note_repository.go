package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/repositories"
	"opennotes/pkg/logger"
)

// Константы для сообщений об ошибках.
const (
	ErrListNotes      = "failed to list notes"
	ErrScanNote       = "failed to scan note"
	ErrIterateRows    = "error iterating rows"
	ErrInsertNote     = "failed to insert note"
	ErrUpdateNote     = "failed to update note"
	ErrDeleteNote     = "failed to delete note"
	ErrDeleteAllNotes = "failed to delete all notes"
)

const noteColumns = `id, content, color_tag, created_at, updated_at`

const (
	queryListOrdered = `SELECT ` + noteColumns + ` FROM notes ORDER BY updated_at DESC`
	queryInsert      = `INSERT INTO notes (id, content, color_tag, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING ` + noteColumns
	queryUpdate      = `UPDATE notes SET content = COALESCE($2, content), color_tag = COALESCE($3, color_tag), updated_at = GREATEST($4, updated_at + interval '1 microsecond') WHERE id = $1 RETURNING ` + noteColumns
	queryDelete      = `DELETE FROM notes WHERE id = $1`
	queryDeleteAll   = `DELETE FROM notes WHERE created_at >= $1 RETURNING id`
)

// NoteRepository реализует интерфейс repositories.NoteRepository.
type NoteRepository struct {
	pool PgxPoolInterface
}

// NewNoteRepository создает новый репозиторий заметок.
func NewNoteRepository(pool PgxPoolInterface) repositories.NoteRepository {
	return &NoteRepository{pool: pool}
}

// ListOrdered возвращает все заметки, новые сверху.
func (r *NoteRepository) ListOrdered(ctx context.Context) ([]*entities.Note, error) {
	log := logger.Log(ctx).With(zap.String("method", "NoteRepository.ListOrdered"))

	rows, err := r.pool.Query(ctx, queryListOrdered)
	if err != nil {
		log.Error(ctx, ErrListNotes, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrListNotes, err)
	}
	defer rows.Close()

	notes := make([]*entities.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			log.Error(ctx, ErrScanNote, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", ErrScanNote, err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		log.Error(ctx, ErrIterateRows, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrIterateRows, err)
	}

	log.Debug(ctx, "notes listed", zap.Int("count", len(notes)))
	return notes, nil
}

// Insert сохраняет новую заметку.
func (r *NoteRepository) Insert(ctx context.Context, note *entities.Note) (*entities.Note, error) {
	log := logger.Log(ctx).With(zap.String("method", "NoteRepository.Insert"), zap.String("noteID", note.ID))

	saved, err := scanNote(r.pool.QueryRow(ctx, queryInsert,
		note.ID, note.Content, string(note.ColorTag), note.CreatedAt, note.UpdatedAt))
	if err != nil {
		log.Error(ctx, ErrInsertNote, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrInsertNote, err)
	}

	log.Debug(ctx, "note inserted")
	return saved, nil
}

// Update обновляет переданные поля. updated_at строки только растет, даже
// если часы процесса отстают от часов предыдущего писателя.
func (r *NoteRepository) Update(ctx context.Context, id string, update entities.NoteUpdate, updatedAt time.Time) (*entities.Note, error) {
	log := logger.Log(ctx).With(zap.String("method", "NoteRepository.Update"), zap.String("noteID", id))

	saved, err := scanNote(r.pool.QueryRow(ctx, queryUpdate,
		id, nullableContent(update), nullableColor(update), updatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug(ctx, "note not found")
			return nil, entities.ErrNoteNotFound
		}
		log.Error(ctx, ErrUpdateNote, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrUpdateNote, err)
	}

	return saved, nil
}

// Delete удаляет заметку. Отсутствие строки ошибкой не считается.
func (r *NoteRepository) Delete(ctx context.Context, id string) (bool, error) {
	log := logger.Log(ctx).With(zap.String("method", "NoteRepository.Delete"), zap.String("noteID", id))

	result, err := r.pool.Exec(ctx, queryDelete, id)
	if err != nil {
		log.Error(ctx, ErrDeleteNote, zap.Error(err))
		return false, fmt.Errorf("%s: %w", ErrDeleteNote, err)
	}

	deleted := result.RowsAffected() > 0
	if !deleted {
		log.Debug(ctx, "note already absent")
	}
	return deleted, nil
}

// DeleteAll удаляет все заметки, созданные не раньше since.
func (r *NoteRepository) DeleteAll(ctx context.Context, since time.Time) ([]string, error) {
	log := logger.Log(ctx).With(zap.String("method", "NoteRepository.DeleteAll"))

	rows, err := r.pool.Query(ctx, queryDeleteAll, since)
	if err != nil {
		log.Error(ctx, ErrDeleteAllNotes, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrDeleteAllNotes, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Error(ctx, ErrScanNote, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", ErrScanNote, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		log.Error(ctx, ErrIterateRows, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrIterateRows, err)
	}

	log.Info(ctx, "notes deleted", zap.Int("count", len(ids)))
	return ids, nil
}

func scanNote(row pgx.Row) (*entities.Note, error) {
	var (
		note  entities.Note
		color string
	)
	if err := row.Scan(&note.ID, &note.Content, &color, &note.CreatedAt, &note.UpdatedAt); err != nil {
		return nil, err
	}
	note.ColorTag = entities.Color(color)
	return &note, nil
}

func nullableContent(u entities.NoteUpdate) any {
	if u.Content == nil {
		return nil
	}
	return *u.Content
}

func nullableColor(u entities.NoteUpdate) any {
	if u.ColorTag == nil {
		return nil
	}
	return string(*u.ColorTag)
}
