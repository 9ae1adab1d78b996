package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/rdouglass/quicknotes/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var confirmedAt sql.NullTime

	err := scanner.Scan(&u.ID, &u.Email, &confirmedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if confirmedAt.Valid {
		u.EmailConfirmedAt = &confirmedAt.Time
	}
	return &u, nil
}

const userCols = `id, email, email_confirmed_at, created_at, updated_at`

// Create inserts a user with a generated UUID. An empty confirmToken means no
// confirmation step is required and the user is confirmed immediately.
func (s *UserStore) Create(email, passwordHash, confirmToken string) (*model.User, error) {
	id := uuid.NewString()

	var err error
	if confirmToken == "" {
		_, err = s.db.Exec(
			`INSERT INTO users (id, email, password_hash, email_confirmed_at) VALUES (?, ?, ?, datetime('now'))`,
			id, email, passwordHash,
		)
	} else {
		_, err = s.db.Exec(
			`INSERT INTO users (id, email, password_hash, confirm_token) VALUES (?, ?, ?, ?)`,
			id, email, passwordHash, confirmToken,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Credentials returns the user's id, password hash, and confirmation state for
// sign-in verification. A missing user is reported as an empty id, not an error.
func (s *UserStore) Credentials(email string) (id, passwordHash string, confirmed bool, err error) {
	var confirmedAt sql.NullTime
	row := s.db.QueryRow(`SELECT id, password_hash, email_confirmed_at FROM users WHERE email = ?`, email)
	err = row.Scan(&id, &passwordHash, &confirmedAt)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("get credentials: %w", err)
	}
	return id, passwordHash, confirmedAt.Valid, nil
}

// ConfirmByToken marks the matching unconfirmed user as confirmed and clears
// the token. Returns nil if the token matches no pending confirmation.
func (s *UserStore) ConfirmByToken(token string) (*model.User, error) {
	var id string
	row := s.db.QueryRow(
		`SELECT id FROM users WHERE confirm_token = ? AND email_confirmed_at IS NULL`,
		token,
	)
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup confirm token: %w", err)
	}

	_, err = s.db.Exec(
		`UPDATE users SET email_confirmed_at = datetime('now'), confirm_token = NULL, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("confirm user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
