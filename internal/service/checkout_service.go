package service

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/geo"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/util"

	"go.uber.org/zap"
)

type cartReader interface {
	Get(ctx context.Context, userID int64) (*CartView, error)
}

type selectedAddressSource interface {
	Selected(ctx context.Context, userID int64) (*models.Address, error)
}

type chargeSource interface {
	Effective(ctx context.Context) (models.ChargeConfig, error)
}

type promoValidator interface {
	Validate(ctx context.Context, code string) (*models.PromoCode, error)
}

// Quote is a priced cart.
type Quote struct {
	pricing.Breakdown
	Items       []CartLine `json:"items"`
	PromoCode   string     `json:"promoCode,omitempty"`
	NearestArea string     `json:"nearestArea,omitempty"`
}

// CheckoutService prices a user's cart for checkout.
type CheckoutService struct {
	carts     cartReader
	addresses selectedAddressSource
	areas     AreaSource
	charges   chargeSource
	promos    promoValidator
	logger    *zap.Logger
}

func NewCheckoutService(
	carts cartReader,
	addresses selectedAddressSource,
	areas AreaSource,
	charges chargeSource,
	promos promoValidator,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		addresses: addresses,
		areas:     areas,
		charges:   charges,
		promos:    promos,
		logger:    util.ComponentLogger("checkout"),
	}
}

// PriceCart computes the checkout total of the synced cart. Delivery is
// charged from the selected address to the nearest service area; an address
// without coordinates is not charged.
func (s *CheckoutService) PriceCart(ctx context.Context, userID int64, promoCode string) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PriceCart")
	defer span.End()

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	quote := &Quote{Items: cart.Lines}

	var discount float64
	if promoCode != "" {
		promo, err := s.promos.Validate(ctx, promoCode)
		if err != nil {
			return nil, err
		}
		quote.PromoCode = promo.Code
		discount = pricing.PromoDiscount(*promo, cart.Subtotal)
	}

	distance, nearest, err := s.deliveryDistance(ctx, userID)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	quote.NearestArea = nearest

	charges, err := s.charges.Effective(ctx)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	quote.Breakdown = pricing.ComputeTotal(cart.Subtotal, distance, charges, discount)

	s.logger.Debug("Cart priced",
		zap.Int64("user_id", userID),
		zap.Float64("subtotal", quote.Subtotal),
		zap.Float64("total", quote.Total))
	return quote, nil
}

func (s *CheckoutService) deliveryDistance(ctx context.Context, userID int64) (*float64, string, error) {
	addr, err := s.addresses.Selected(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if addr == nil || !addr.HasCoordinates() {
		return nil, "", nil
	}

	areas, err := s.areas.List(ctx)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}

	nearest, ok := geo.NearestArea(*addr.Latitude, *addr.Longitude, areas)
	if !ok {
		return nil, "", nil
	}
	d := nearest.DistanceKm
	return &d, nearest.Area.Label, nil
}
