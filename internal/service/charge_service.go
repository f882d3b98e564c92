package service

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OtherChargePatch edits one surcharge. Nil fields are left unchanged.
type OtherChargePatch struct {
	Name    *string  `json:"name"`
	Percent *float64 `json:"percent"`
}

// ChargeService manages the singleton charge configuration.
type ChargeService struct {
	charges ChargeRepository
	newID   func() string
	logger  *zap.Logger
}

func NewChargeService(charges ChargeRepository) *ChargeService {
	return &ChargeService{
		charges: charges,
		newID:   func() string { return uuid.New().String() },
		logger:  util.ComponentLogger("charges"),
	}
}

// Get returns the configuration, NotFound when none was saved.
func (s *ChargeService) Get(ctx context.Context) (*models.ChargeConfig, error) {
	cfg, err := s.charges.GetChargeConfig(ctx)
	if err != nil {
		return nil, translate(err, "charges")
	}
	return cfg, nil
}

// Effective returns the configuration, or a zero one when none was saved.
func (s *ChargeService) Effective(ctx context.Context) (models.ChargeConfig, error) {
	cfg, err := s.charges.GetChargeConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return models.ChargeConfig{}, nil
	}
	if err != nil {
		return models.ChargeConfig{}, translate(err, "charges")
	}
	return *cfg, nil
}

// Save replaces the whole configuration.
func (s *ChargeService) Save(ctx context.Context, cfg models.ChargeConfig) (*models.ChargeConfig, error) {
	ctx, span := util.StartSpan(ctx, "ChargeService.Save")
	defer span.End()

	if cfg.DeliveryCharge.FreeUptoKm < 0 || cfg.DeliveryCharge.RatePerKm < 0 {
		return nil, apperr.Validation("delivery charge values must be >= 0")
	}
	if cfg.OtherCharges == nil {
		cfg.OtherCharges = []models.OtherCharge{}
	}
	for i := range cfg.OtherCharges {
		oc := &cfg.OtherCharges[i]
		oc.Name = strings.TrimSpace(oc.Name)
		if err := validateOtherCharge(*oc); err != nil {
			return nil, err
		}
		if oc.ID == "" {
			oc.ID = s.newID()
		}
	}

	if err := s.charges.SaveChargeConfig(ctx, cfg); err != nil {
		return nil, util.RecordError(span, translate(err, "charges"))
	}

	s.logger.Info("Charges saved",
		zap.Float64("free_upto_km", cfg.DeliveryCharge.FreeUptoKm),
		zap.Float64("rate_per_km", cfg.DeliveryCharge.RatePerKm),
		zap.Int("other_charges", len(cfg.OtherCharges)))
	return &cfg, nil
}

// UpdateOtherCharge edits the surcharge with id.
func (s *ChargeService) UpdateOtherCharge(ctx context.Context, id string, patch OtherChargePatch) (*models.ChargeConfig, error) {
	cfg, err := s.charges.MutateChargeConfig(ctx, func(cfg models.ChargeConfig) (models.ChargeConfig, error) {
		i := indexOfCharge(cfg.OtherCharges, id)
		if i < 0 {
			return cfg, apperr.NotFound("other charge not found")
		}
		oc := cfg.OtherCharges[i]
		if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" {
			oc.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Percent != nil {
			oc.Percent = *patch.Percent
		}
		if err := validateOtherCharge(oc); err != nil {
			return cfg, err
		}
		cfg.OtherCharges[i] = oc
		return cfg, nil
	})
	if err != nil {
		return nil, translate(err, "charges")
	}
	return cfg, nil
}

// DeleteOtherCharge removes the surcharge with id.
func (s *ChargeService) DeleteOtherCharge(ctx context.Context, id string) (*models.ChargeConfig, error) {
	cfg, err := s.charges.MutateChargeConfig(ctx, func(cfg models.ChargeConfig) (models.ChargeConfig, error) {
		i := indexOfCharge(cfg.OtherCharges, id)
		if i < 0 {
			return cfg, apperr.NotFound("other charge not found")
		}
		cfg.OtherCharges = append(cfg.OtherCharges[:i:i], cfg.OtherCharges[i+1:]...)
		return cfg, nil
	})
	if err != nil {
		return nil, translate(err, "charges")
	}
	return cfg, nil
}

func indexOfCharge(charges []models.OtherCharge, id string) int {
	for i, oc := range charges {
		if oc.ID == id {
			return i
		}
	}
	return -1
}

func validateOtherCharge(oc models.OtherCharge) error {
	if oc.Name == "" {
		return apperr.Validation("charge name is required")
	}
	if oc.Percent < 0 || oc.Percent > 100 {
		return apperr.Validation("percent must be between 0 and 100")
	}
	return nil
}
