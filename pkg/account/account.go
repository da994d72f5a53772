// Package account manages local user accounts and the login/register screen flow.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/japaniel/labelscan/pkg/db"
)

const minPasswordLen = 6

var (
	// ErrInvalidCredentials is returned when the username or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when the username or email is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidToken is returned for unknown or already used confirmation tokens.
	ErrInvalidToken = errors.New("invalid confirmation token")
)

// ValidationError describes a rejected registration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service registers, authenticates and confirms users.
type Service struct {
	DB     *sql.DB
	Logger *zap.Logger
	// Cost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	Cost int
}

// NewService creates a Service on conn.
func NewService(conn *sql.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{DB: conn, Logger: logger}
}

// Registration is the outcome of Register. Token confirms the email address.
type Registration struct {
	User  *db.User
	Token string
}

// Register creates an unconfirmed user and a confirmation token.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Registration, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, &ValidationError{Field: "email", Reason: err.Error()}
	}
	if len(password) < minPasswordLen {
		return nil, &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := db.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        addr.Address,
		PasswordHash: string(hash),
	}
	token := uuid.NewString()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()
	if err := db.CreateUser(tx, u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	if err := db.CreateConfirmation(tx, token, u.ID); err != nil {
		return nil, fmt.Errorf("create confirmation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.Logger.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return &Registration{User: &u, Token: token}, nil
}

// Login checks the password of username.
func (s *Service) Login(ctx context.Context, username, password string) (*db.User, error) {
	u, err := db.GetUserByUsername(s.DB, strings.TrimSpace(username))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.Logger.Debug("password mismatch", zap.String("username", u.Username))
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Confirm consumes a confirmation token and returns the confirmed user.
func (s *Service) Confirm(ctx context.Context, token string) (*db.User, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	// The token is only spent when the user row is updated too.
	userID, err := db.ConsumeConfirmation(tx, strings.TrimSpace(token))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	u, err := db.GetUser(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.Logger.Info("email confirmed", zap.String("user_id", userID))
	return u, nil
}

func (s *Service) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}
