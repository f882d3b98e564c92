package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateUser inserts a user. A taken email yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.Cart == nil {
		user.Cart = models.Cart{}
	}
	query := `
		INSERT INTO users (name, email, password_hash, cart)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, user, query, user.Name, user.Email, user.PasswordHash, user.Cart)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE email = $1", email); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdateUserPassword replaces the password hash
func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetSelectedAddress points the user at addressID, or clears it when nil
func (s *Store) SetSelectedAddress(ctx context.Context, userID int64, addressID *int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET selected_address_id = $1 WHERE id = $2", addressID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateCart locks the user's row, hands the current cart to fn and writes
// the result back when fn reports a change.
func (s *Store) UpdateCart(ctx context.Context, userID int64, fn func(models.Cart) (models.Cart, bool, error)) (models.Cart, error) {
	var result models.Cart
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var cart models.Cart
		if err := tx.GetContext(ctx, &cart, "SELECT cart FROM users WHERE id = $1 FOR UPDATE", userID); err != nil {
			return notFound(err)
		}
		if cart == nil {
			cart = models.Cart{}
		}

		next, changed, err := fn(cart)
		if err != nil {
			return err
		}
		result = next
		if !changed {
			return nil
		}

		if _, err := tx.ExecContext(ctx, "UPDATE users SET cart = $1 WHERE id = $2", next, userID); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		return nil
	})
	return result, err
}
