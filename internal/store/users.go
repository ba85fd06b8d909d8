package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yugal82/sports-screening-server/internal/models"
)

const userColumns = "id, name, email, phone, city, role, created_at, updated_at"

// GetUser retrieves a user profile by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserProfile updates the editable profile fields
func (s *Store) UpdateUserProfile(ctx context.Context, id, name, phone, city string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		UPDATE users SET name = $1, phone = $2, city = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+userColumns,
		name, phone, city, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
