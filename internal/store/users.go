package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PRADEEP131204/Medimate/domain"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, username, name, password, role, created_at FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) Get(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, username, name, role, created_at FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

// ListByRole returns users with the given role ordered by name. The
// doctor's prescription form uses it to pick a patient.
func (s *UserStore) ListByRole(ctx context.Context, role string) ([]domain.User, error) {
	var users []domain.User
	err := s.db.SelectContext(ctx, &users,
		`SELECT id, username, name, role, created_at FROM users WHERE role = ? ORDER BY name`, role)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return users, nil
}

// Create inserts a user, ignoring duplicates by username so seeding is
// idempotent across restarts.
func (s *UserStore) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, username, name, password, role) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, u.Password, u.Role)
	if err != nil {
		return domain.User{}, fmt.Errorf("store: create user: %w", err)
	}
	return s.GetByUsername(ctx, u.Username)
}
