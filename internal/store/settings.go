package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetAdminSettings returns the singleton admin row
func (s *Store) GetAdminSettings(ctx context.Context) (*models.AdminSettings, error) {
	var settings models.AdminSettings
	if err := s.db.GetContext(ctx, &settings, "SELECT * FROM admin_settings WHERE id = 1"); err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}

// CreateAdminSettings inserts the singleton admin row. ErrDuplicate if it exists.
func (s *Store) CreateAdminSettings(ctx context.Context, settings *models.AdminSettings) error {
	if settings.ServiceAreas == nil {
		settings.ServiceAreas = models.ServiceAreas{}
	}
	if settings.DeliveryAgentEmails == nil {
		settings.DeliveryAgentEmails = models.StringList{}
	}

	query := `
		INSERT INTO admin_settings (id, username, password_hash, company_email, company_app_password,
			delivery_agent_emails, service_areas)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, created_at, updated_at`

	rows, err := s.db.QueryxContext(ctx, query,
		settings.Username, settings.PasswordHash, settings.CompanyEmail, settings.CompanyAppPassword,
		settings.DeliveryAgentEmails, settings.ServiceAreas)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrDuplicate
	}
	return rows.Scan(&settings.ID, &settings.CreatedAt, &settings.UpdatedAt)
}

// UpdateAdminCredentials rewrites the credential columns of the admin row
func (s *Store) UpdateAdminCredentials(ctx context.Context, settings *models.AdminSettings) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE admin_settings SET username = $1, password_hash = $2, company_email = $3,
			company_app_password = $4, delivery_agent_emails = $5, updated_at = NOW()
		WHERE id = 1`,
		settings.Username, settings.PasswordHash, settings.CompanyEmail,
		settings.CompanyAppPassword, settings.DeliveryAgentEmails)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MutateServiceAreas locks the admin row, applies fn to the current areas and
// stores the result.
func (s *Store) MutateServiceAreas(ctx context.Context, fn func(models.ServiceAreas) (models.ServiceAreas, error)) (models.ServiceAreas, error) {
	var result models.ServiceAreas
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var areas models.ServiceAreas
		if err := tx.GetContext(ctx, &areas, "SELECT service_areas FROM admin_settings WHERE id = 1 FOR UPDATE"); err != nil {
			return notFound(err)
		}

		next, err := fn(areas)
		if err != nil {
			return err
		}
		if next == nil {
			next = models.ServiceAreas{}
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE admin_settings SET service_areas = $1, updated_at = NOW() WHERE id = 1", next); err != nil {
			return fmt.Errorf("failed to save service areas: %w", err)
		}
		result = next
		return nil
	})
	return result, err
}

// GetChargeConfig returns the singleton charge configuration
func (s *Store) GetChargeConfig(ctx context.Context) (*models.ChargeConfig, error) {
	var cfg models.ChargeConfig
	if err := s.db.GetContext(ctx, &cfg, "SELECT config FROM charge_settings WHERE id = 1"); err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

// SaveChargeConfig upserts the singleton charge configuration
func (s *Store) SaveChargeConfig(ctx context.Context, cfg models.ChargeConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO charge_settings (id, config) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()`, cfg)
	return err
}

// MutateChargeConfig locks the charge row and stores fn's result.
func (s *Store) MutateChargeConfig(ctx context.Context, fn func(models.ChargeConfig) (models.ChargeConfig, error)) (*models.ChargeConfig, error) {
	var result models.ChargeConfig
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var cfg models.ChargeConfig
		if err := tx.GetContext(ctx, &cfg, "SELECT config FROM charge_settings WHERE id = 1 FOR UPDATE"); err != nil {
			return notFound(err)
		}

		next, err := fn(cfg)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE charge_settings SET config = $1, updated_at = NOW() WHERE id = 1", next); err != nil {
			return fmt.Errorf("failed to save charges: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
