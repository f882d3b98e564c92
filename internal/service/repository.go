package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/store"
)

// UserRepository persists customer accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
	SetSelectedAddress(ctx context.Context, userID int64, addressID *int64) error
}

// CartRepository applies read-modify-write updates to a user's cart.
type CartRepository interface {
	UpdateCart(ctx context.Context, userID int64, fn func(models.Cart) (models.Cart, bool, error)) (models.Cart, error)
}

type AddressRepository interface {
	ListAddresses(ctx context.Context, userID int64) ([]models.Address, error)
	GetAddress(ctx context.Context, userID, addressID int64) (*models.Address, error)
	CreateAddress(ctx context.Context, addr *models.Address) error
	UpdateAddress(ctx context.Context, addr *models.Address) error
	DeleteAddress(ctx context.Context, userID, addressID int64) error
	RemoveAddresses(ctx context.Context, userID int64, addressIDs []int64) (bool, error)
	ListAddressOwners(ctx context.Context) ([]int64, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type PromoRepository interface {
	CreatePromo(ctx context.Context, promo *models.PromoCode) error
	GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
	ListPromos(ctx context.Context) ([]models.PromoCode, error)
	DeletePromo(ctx context.Context, id int64) error
}

// SettingsRepository owns the singleton admin row.
type SettingsRepository interface {
	GetAdminSettings(ctx context.Context) (*models.AdminSettings, error)
	CreateAdminSettings(ctx context.Context, settings *models.AdminSettings) error
	UpdateAdminCredentials(ctx context.Context, settings *models.AdminSettings) error
	MutateServiceAreas(ctx context.Context, fn func(models.ServiceAreas) (models.ServiceAreas, error)) (models.ServiceAreas, error)
}

type ChargeRepository interface {
	GetChargeConfig(ctx context.Context) (*models.ChargeConfig, error)
	SaveChargeConfig(ctx context.Context, cfg models.ChargeConfig) error
	MutateChargeConfig(ctx context.Context, fn func(models.ChargeConfig) (models.ChargeConfig, error)) (*models.ChargeConfig, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListPlacedOrdersSince(ctx context.Context, since time.Time) ([]models.Order, error)
	MarkOrderPaid(ctx context.Context, gatewayOrderID, paymentID, signature string) (*models.Order, error)
	DeletePendingOrder(ctx context.Context, gatewayOrderID string) (bool, error)
	RecordRefund(ctx context.Context, orderID int64, status string, refund *models.Refund) (*models.Order, error)
	UpdateDeliveryStatus(ctx context.Context, orderID int64, status string) (*models.Order, error)
}

// KeyValueStore is a TTL key-value store.
type KeyValueStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, keys ...string) error
}

type IdempotencyStore interface {
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
}

// Locker hands out owner tokens for short-lived exclusive sections.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error)
	RefundPayment(ctx context.Context, paymentID string, req gateway.RefundRequest) (*gateway.Refund, error)
}

// Mailer renders template with data and sends it to every recipient.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, template string, data map[string]any) error
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error
	PublishOrderDeliveryStatusChanged(ctx context.Context, event *models.OrderDeliveryStatusChangedEvent) error
}

// translate turns store sentinels into domain errors and wraps the rest.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict("%s already exists", what)
	case apperr.As(err) != nil:
		return err
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
