package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate")
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// UpsertIngredient inserts an ingredient or replaces the description of an existing
// one with the same name. The row id, and so the table position, of an existing
// ingredient is kept.
func UpsertIngredient(db DBExecutor, name, description string) (int64, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return 0, fmt.Errorf("ingredient name must be non-empty")
	}

	var id int64
	err := db.QueryRow(`INSERT INTO ingredients (name, description)
			  VALUES (?, ?)
			  ON CONFLICT(name) DO UPDATE SET description = excluded.description
			  RETURNING id`, trimmedName, strings.TrimSpace(description)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert ingredient: %w", err)
	}
	return id, nil
}

// ListIngredients returns every ingredient in insertion order.
func ListIngredients(db DBExecutor) ([]Ingredient, error) {
	rows, err := db.Query(`SELECT id, name, description, added_at FROM ingredients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ingredient
	for rows.Next() {
		var in Ingredient
		var added sql.NullTime
		if err := rows.Scan(&in.ID, &in.Name, &in.Description, &added); err != nil {
			return nil, err
		}
		if added.Valid {
			in.AddedAt = added.Time
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountIngredients returns the number of rows in the reference table.
func CountIngredients(db DBExecutor) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM ingredients`).Scan(&n)
	return n, err
}

// CreateUser inserts a new user. ErrDuplicate is returned when the username or
// email is already taken.
func CreateUser(db DBExecutor, u User) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id must be non-empty")
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO users (id, username, email, password_hash, confirmed, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Confirmed, time.Now().UTC())
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("create user %s: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, confirmed, created_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var created sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Confirmed, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if created.Valid {
		u.CreatedAt = created.Time
	}
	return &u, nil
}

// GetUserByUsername looks a user up by username.
func GetUserByUsername(db DBExecutor, username string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

// GetUser looks a user up by id.
func GetUser(db DBExecutor, id string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// CreateConfirmation stores an email confirmation token for a user.
func CreateConfirmation(db DBExecutor, token, userID string) error {
	if token == "" || userID == "" {
		return fmt.Errorf("token and userID must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO confirmations (token, user_id, created_at) VALUES (?, ?, ?)`, token, userID, time.Now().UTC())
	return err
}

// ConsumeConfirmation deletes the token, marks its user as confirmed and returns
// the user id. Tokens are single use.
func ConsumeConfirmation(db DBExecutor, token string) (string, error) {
	var userID string
	err := db.QueryRow(`DELETE FROM confirmations WHERE token = ? RETURNING user_id`, token).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := db.Exec(`UPDATE users SET confirmed = 1 WHERE id = ?`, userID); err != nil {
		return "", err
	}
	return userID, nil
}

// InsertScan records an analysis and returns its id.
func InsertScan(db DBExecutor, s Scan) (int64, error) {
	if strings.TrimSpace(s.Image) == "" {
		return 0, fmt.Errorf("scan image must be non-empty")
	}
	if s.Matches == "" {
		s.Matches = "[]"
	}
	if s.ScannedAt.IsZero() {
		s.ScannedAt = time.Now().UTC()
	}
	res, err := db.Exec(`INSERT INTO scans (user_id, image, extracted_text, matches, error, scanned_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Image, s.ExtractedText, s.Matches, s.Error, s.ScannedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListScans returns the scans recorded for userID, oldest first.
func ListScans(db DBExecutor, userID string) ([]Scan, error) {
	rows, err := db.Query(`SELECT id, user_id, image, extracted_text, matches, error, scanned_at FROM scans WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Scan
	for rows.Next() {
		var s Scan
		if err := rows.Scan(&s.ID, &s.UserID, &s.Image, &s.ExtractedText, &s.Matches, &s.Error, &s.ScannedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
