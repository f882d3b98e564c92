package models

import "time"

// Event types
const (
	EventTypeOrderPlaced                = "ORDER_PLACED"
	EventTypeOrderPaid                  = "ORDER_PAID"
	EventTypeOrderRefunded              = "ORDER_REFUNDED"
	EventTypeOrderDeliveryStatusChanged = "ORDER_DELIVERY_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when a Pending order is stored
type OrderPlacedEvent struct {
	BaseEvent
	OrderID        int64   `json:"order_id"`
	UserID         int64   `json:"user_id"`
	TotalPrice     float64 `json:"total_price"`
	GatewayOrderID string  `json:"gateway_order_id,omitempty"`
}

// OrderPaidEvent published when a payment callback is verified
type OrderPaidEvent struct {
	BaseEvent
	OrderID          int64   `json:"order_id"`
	UserID           int64   `json:"user_id"`
	TotalPrice       float64 `json:"total_price"`
	GatewayOrderID   string  `json:"gateway_order_id"`
	GatewayPaymentID string  `json:"gateway_payment_id"`
}

// OrderRefundedEvent published after a gateway refund is recorded
type OrderRefundedEvent struct {
	BaseEvent
	OrderID  int64   `json:"order_id"`
	Status   string  `json:"status"`
	RefundID string  `json:"refund_id"`
	Amount   float64 `json:"amount"`
}

// OrderDeliveryStatusChangedEvent published when admin moves the delivery track
type OrderDeliveryStatusChangedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	DeliveryStatus string `json:"delivery_status"`
}
