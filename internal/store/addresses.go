package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const insertAddress = `
	INSERT INTO addresses (
		user_id, label, full_name, phone, street, landmark, city, state, postal_code,
		country, formatted_address, latitude, longitude, place_id, map_url, is_default
	) VALUES (
		:user_id, :label, :full_name, :phone, :street, :landmark, :city, :state, :postal_code,
		:country, :formatted_address, :latitude, :longitude, :place_id, :map_url, :is_default
	) RETURNING id, created_at`

const updateAddress = `
	UPDATE addresses SET
		label = :label, full_name = :full_name, phone = :phone, street = :street,
		landmark = :landmark, city = :city, state = :state, postal_code = :postal_code,
		country = :country, formatted_address = :formatted_address, latitude = :latitude,
		longitude = :longitude, place_id = :place_id, map_url = :map_url, is_default = :is_default
	WHERE id = :id AND user_id = :user_id`

// ListAddresses returns a user's addresses in creation order
func (s *Store) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	var addresses []models.Address
	err := s.db.SelectContext(ctx, &addresses,
		"SELECT * FROM addresses WHERE user_id = $1 ORDER BY id", userID)
	return addresses, err
}

// GetAddress retrieves one of the user's addresses
func (s *Store) GetAddress(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	var addr models.Address
	err := s.db.GetContext(ctx, &addr,
		"SELECT * FROM addresses WHERE id = $1 AND user_id = $2", addressID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &addr, nil
}

// CreateAddress inserts an address. A default address clears the flag on the
// user's other addresses in the same transaction.
func (s *Store) CreateAddress(ctx context.Context, addr *models.Address) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if addr.IsDefault {
			if err := clearDefault(ctx, tx, addr.UserID, 0); err != nil {
				return err
			}
		}

		query, args, err := tx.BindNamed(insertAddress, addr)
		if err != nil {
			return err
		}
		return tx.QueryRowxContext(ctx, query, args...).Scan(&addr.ID, &addr.CreatedAt)
	})
}

// UpdateAddress rewrites an address owned by addr.UserID
func (s *Store) UpdateAddress(ctx context.Context, addr *models.Address) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if addr.IsDefault {
			if err := clearDefault(ctx, tx, addr.UserID, addr.ID); err != nil {
				return err
			}
		}

		res, err := tx.NamedExecContext(ctx, updateAddress, addr)
		if err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}
		return requireRow(res)
	})
}

// DeleteAddress removes one address and clears the user's selection if it
// pointed at it.
func (s *Store) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	_, err := s.RemoveAddresses(ctx, userID, []int64{addressID})
	return err
}

// RemoveAddresses deletes the given addresses of one user. It reports whether
// the user's selected address was among them and has been cleared.
func (s *Store) RemoveAddresses(ctx context.Context, userID int64, addressIDs []int64) (bool, error) {
	if len(addressIDs) == 0 {
		return false, nil
	}

	var cleared bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In("DELETE FROM addresses WHERE user_id = ? AND id IN (?)", userID, addressIDs)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("failed to delete addresses: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		query, args, err = sqlx.In(
			"UPDATE users SET selected_address_id = NULL WHERE id = ? AND selected_address_id IN (?)", userID, addressIDs)
		if err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("failed to clear selected address: %w", err)
		}
		n, _ := res.RowsAffected()
		cleared = n > 0
		return nil
	})
	return cleared, err
}

// ListAddressOwners returns the ids of users holding at least one address
// with coordinates.
func (s *Store) ListAddressOwners(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT user_id FROM addresses
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY user_id`)
	return ids, err
}

func clearDefault(ctx context.Context, tx *sqlx.Tx, userID, exceptID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND id <> $2 AND is_default",
		userID, exceptID)
	if err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
