package store

import (
	"database/sql"
	"fmt"

	"github.com/rdouglass/quicknotes/internal/model"
)

type NoteStore struct {
	db *sql.DB
}

func NewNoteStore(db *sql.DB) *NoteStore {
	return &NoteStore{db: db}
}

func scanNote(scanner interface{ Scan(...any) error }) (*model.Note, error) {
	var n model.Note
	var title, content sql.NullString

	err := scanner.Scan(&n.ID, &n.UserID, &title, &content, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	if title.Valid {
		n.Title = &title.String
	}
	if content.Valid {
		n.Content = &content.String
	}
	return &n, nil
}

const noteCols = `id, user_id, title, content, created_at`

// Create inserts a note owned by userID. Nil title or content is stored as NULL.
func (s *NoteStore) Create(userID string, title, content *string) (*model.Note, error) {
	var t, c sql.NullString
	if title != nil {
		t = sql.NullString{String: *title, Valid: true}
	}
	if content != nil {
		c = sql.NullString{String: *content, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO notes (user_id, title, content) VALUES (?, ?, ?)`,
		userID, t, c,
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+noteCols+` FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListByUserID returns the user's notes, most recent first. Ownership is the
// sole access filter; no other user's rows are ever returned.
func (s *NoteStore) ListByUserID(userID string) ([]model.Note, error) {
	rows, err := s.db.Query(
		`SELECT `+noteCols+` FROM notes WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (s *NoteStore) CountByUserID(userID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notes WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}
