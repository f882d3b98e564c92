package store

import (
	"context"

	"storefront/internal/models"
)

// CreatePromo inserts a promo code. A taken code yields ErrDuplicate.
func (s *Store) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, type, value)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, promo, query, promo.Code, promo.Type, promo.Value)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetPromoByCode looks up a promo by its stored (upper-case) code
func (s *Store) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := s.db.GetContext(ctx, &promo, "SELECT * FROM promo_codes WHERE code = $1", code); err != nil {
		return nil, notFound(err)
	}
	return &promo, nil
}

// ListPromos returns promo codes newest first
func (s *Store) ListPromos(ctx context.Context) ([]models.PromoCode, error) {
	var promos []models.PromoCode
	err := s.db.SelectContext(ctx, &promos, "SELECT * FROM promo_codes ORDER BY created_at DESC, id DESC")
	return promos, err
}

// DeletePromo removes a promo code
func (s *Store) DeletePromo(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM promo_codes WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
