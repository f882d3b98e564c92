package service

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CreatePromoRequest registers a promo code.
type CreatePromoRequest struct {
	Code  string  `json:"code" binding:"required"`
	Type  string  `json:"type" binding:"required"`
	Value float64 `json:"value"`
}

// PromoService validates and manages promo codes. Codes are stored upper-case.
type PromoService struct {
	promos PromoRepository
	logger *zap.Logger
}

func NewPromoService(promos PromoRepository) *PromoService {
	return &PromoService{
		promos: promos,
		logger: util.ComponentLogger("promos"),
	}
}

func (s *PromoService) Create(ctx context.Context, req CreatePromoRequest) (*models.PromoCode, error) {
	ctx, span := util.StartSpan(ctx, "PromoService.Create")
	defer span.End()

	code := normalizeCode(req.Code)
	if code == "" {
		return nil, apperr.Validation("code is required")
	}
	switch req.Type {
	case models.PromoTypePercent:
		if req.Value < 0 || req.Value > 100 {
			return nil, apperr.Validation("percent value must be between 0 and 100")
		}
	case models.PromoTypeFlat:
		if req.Value < 0 {
			return nil, apperr.Validation("flat value must be >= 0")
		}
	default:
		return nil, apperr.Validation("type must be %q or %q", models.PromoTypePercent, models.PromoTypeFlat)
	}

	promo := &models.PromoCode{Code: code, Type: req.Type, Value: req.Value}
	if err := s.promos.CreatePromo(ctx, promo); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("promo code already exists")
		}
		return nil, util.RecordError(span, translate(err, "promo code"))
	}

	s.logger.Info("Promo created", zap.String("code", code), zap.String("type", promo.Type))
	return promo, nil
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.promos.ListPromos(ctx)
	if err != nil {
		return nil, translate(err, "promo codes")
	}
	if promos == nil {
		promos = []models.PromoCode{}
	}
	return promos, nil
}

func (s *PromoService) Delete(ctx context.Context, id int64) error {
	return translate(s.promos.DeletePromo(ctx, id), "promo code")
}

// Validate looks a code up case-insensitively.
func (s *PromoService) Validate(ctx context.Context, code string) (*models.PromoCode, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, apperr.Validation("promo code is required")
	}
	promo, err := s.promos.GetPromoByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("invalid promo code")
		}
		return nil, translate(err, "promo code")
	}
	return promo, nil
}

// ComputeDiscount returns the discount promo grants on subtotal.
func (s *PromoService) ComputeDiscount(promo models.PromoCode, subtotal float64) float64 {
	return pricing.PromoDiscount(promo, subtotal)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
