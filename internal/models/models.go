package models

import "time"

// ServiceArea is an admin-defined circular delivery zone.
type ServiceArea struct {
	Label            string  `json:"label"`
	FormattedAddress string  `json:"formattedAddress,omitempty"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	PlaceID          string  `json:"placeId,omitempty"`
	MapURL           string  `json:"mapUrl,omitempty"`
	RadiusKm         float64 `json:"radiusKm"`
}

// Address is a customer delivery address. Latitude/Longitude are nil only
// for legacy manual entries.
type Address struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"userId"`
	Label            string    `db:"label" json:"label,omitempty"`
	FullName         string    `db:"full_name" json:"fullName"`
	Phone            string    `db:"phone" json:"phone"`
	Street           string    `db:"street" json:"street,omitempty"`
	Landmark         string    `db:"landmark" json:"landmark,omitempty"`
	City             string    `db:"city" json:"city,omitempty"`
	State            string    `db:"state" json:"state,omitempty"`
	PostalCode       string    `db:"postal_code" json:"postalCode,omitempty"`
	Country          string    `db:"country" json:"country,omitempty"`
	FormattedAddress string    `db:"formatted_address" json:"formattedAddress,omitempty"`
	Latitude         *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64  `db:"longitude" json:"longitude,omitempty"`
	PlaceID          string    `db:"place_id" json:"placeId,omitempty"`
	MapURL           string    `db:"map_url" json:"mapUrl,omitempty"`
	IsDefault        bool      `db:"is_default" json:"isDefault"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// HasCoordinates reports whether both coordinates are present.
func (a Address) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Snapshot copies the address into an immutable order snapshot.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Label:            a.Label,
		FullName:         a.FullName,
		Phone:            a.Phone,
		Street:           a.Street,
		Landmark:         a.Landmark,
		City:             a.City,
		State:            a.State,
		PostalCode:       a.PostalCode,
		Country:          a.Country,
		FormattedAddress: a.FormattedAddress,
		Latitude:         a.Latitude,
		Longitude:        a.Longitude,
		MapURL:           a.MapURL,
	}
}

// User is a storefront customer.
type User struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Email             string    `db:"email" json:"email"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	SelectedAddressID *int64    `db:"selected_address_id" json:"selectedAddress,omitempty"`
	Cart              Cart      `db:"cart" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

// Product is a catalog entry priced per size.
type Product struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Image         string    `db:"image" json:"image"`
	QuantityPrice PriceMap  `db:"quantity_price" json:"quantity_price"`
	Category      string    `db:"category" json:"category"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// DeliveryCharge is the distance tier of the charge configuration.
type DeliveryCharge struct {
	FreeUptoKm float64 `json:"freeUptoKm"`
	RatePerKm  float64 `json:"ratePerKm"`
}

// OtherCharge is a percentage-of-subtotal surcharge.
type OtherCharge struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// ChargeConfig is the singleton pricing configuration.
type ChargeConfig struct {
	DeliveryCharge DeliveryCharge `json:"deliveryCharge"`
	OtherCharges   []OtherCharge  `json:"otherCharges"`
}

// Promo code types
const (
	PromoTypePercent = "percent"
	PromoTypeFlat    = "flat"
)

type PromoCode struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Type      string    `db:"type" json:"type"`
	Value     float64   `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AdminSettings is the singleton admin record. Secret columns hold sealed values.
type AdminSettings struct {
	ID                  int64        `db:"id" json:"-"`
	Username            string       `db:"username" json:"-"`
	PasswordHash        string       `db:"password_hash" json:"-"`
	CompanyEmail        string       `db:"company_email" json:"-"`
	CompanyAppPassword  string       `db:"company_app_password" json:"-"`
	DeliveryAgentEmails StringList   `db:"delivery_agent_emails" json:"-"`
	ServiceAreas        ServiceAreas `db:"service_areas" json:"deliverableAreas"`
	CreatedAt           time.Time    `db:"created_at" json:"-"`
	UpdatedAt           time.Time    `db:"updated_at" json:"-"`
}

// OrderLineSnapshot is an order item frozen at creation time.
type OrderLineSnapshot struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// AddressSnapshot is the delivery address copied into an order.
type AddressSnapshot struct {
	Label            string   `json:"label,omitempty"`
	FullName         string   `json:"fullName"`
	Phone            string   `json:"phone"`
	Street           string   `json:"street,omitempty"`
	Landmark         string   `json:"landmark,omitempty"`
	City             string   `json:"city,omitempty"`
	State            string   `json:"state,omitempty"`
	PostalCode       string   `json:"postalCode,omitempty"`
	Country          string   `json:"country,omitempty"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	MapURL           string   `json:"mapUrl,omitempty"`
}

// Refund is the gateway refund metadata recorded on an order.
type Refund struct {
	RefundID    string    `json:"refundId"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Order is a customer order with snapshot items and address.
type Order struct {
	ID               int64           `db:"id" json:"id"`
	UserID           int64           `db:"user_id" json:"userId"`
	Name             string          `db:"name" json:"name"`
	Email            string          `db:"email" json:"email"`
	Items            OrderLines      `db:"items" json:"items"`
	TotalPrice       float64         `db:"total_price" json:"totalPrice"`
	DeliveryAddress  AddressSnapshot `db:"delivery_address" json:"deliveryAddress"`
	Status           string          `db:"status" json:"status"`
	DeliveryStatus   string          `db:"delivery_status" json:"deliveryStatus"`
	GatewayOrderID   *string         `db:"gateway_order_id" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string         `db:"gateway_payment_id" json:"gatewayPaymentId,omitempty"`
	GatewaySignature *string         `db:"gateway_signature" json:"-"`
	Refund           *Refund         `db:"refund" json:"refund,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Order statuses
const (
	OrderStatusPending           = "Pending"
	OrderStatusPaid              = "Paid"
	OrderStatusRefunded          = "Refunded"
	OrderStatusPartiallyRefunded = "Partially Refunded"
)

// Delivery statuses
const (
	DeliveryStatusReceived       = "Received"
	DeliveryStatusPreparing      = "Preparing"
	DeliveryStatusOutForDelivery = "Out for Delivery"
	DeliveryStatusDelivered      = "Delivered"
)

// RefundStatusProcessed is the gateway status of a settled refund.
const RefundStatusProcessed = "processed"

var orderStatuses = []string{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusRefunded,
	OrderStatusPartiallyRefunded,
}

var deliveryStatuses = []string{
	DeliveryStatusReceived,
	DeliveryStatusPreparing,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
}

func IsValidOrderStatus(s string) bool {
	return contains(orderStatuses, s)
}

func IsValidDeliveryStatus(s string) bool {
	return contains(deliveryStatuses, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
