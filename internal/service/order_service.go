package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

type addressLookup interface {
	Get(ctx context.Context, userID, addressID int64) (*models.Address, error)
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	Items           []OrderItemRequest      `json:"items" binding:"required,min=1,dive"`
	TotalPrice      float64                 `json:"totalPrice"`
	AddressID       *int64                  `json:"addressId,omitempty"`
	DeliveryAddress *models.AddressSnapshot `json:"deliveryAddress,omitempty"`
	GatewayOrderID  string                  `json:"razorpay_order_id,omitempty"`
}

// OrderItemRequest is one line as shown to the customer at checkout
type OrderItemRequest struct {
	ProductID   int64   `json:"productId" binding:"required"`
	ProductName string  `json:"productName" binding:"required"`
	Size        string  `json:"size" binding:"required"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	Price       float64 `json:"price" binding:"min=0"`
}

// OrderService owns order creation and the status transitions that follow payment.
type OrderService struct {
	orders      OrderRepository
	users       UserRepository
	addresses   addressLookup
	idempotency IdempotencyStore
	locker      Locker
	gateway     PaymentGateway
	publisher   EventPublisher
	lockTTL     time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderRepository,
	users UserRepository,
	addresses addressLookup,
	idempotency IdempotencyStore,
	locker Locker,
	gateway PaymentGateway,
	publisher EventPublisher,
	lockTTL time.Duration,
) *OrderService {
	return &OrderService{
		orders:      orders,
		users:       users,
		addresses:   addresses,
		idempotency: idempotency,
		locker:      locker,
		gateway:     gateway,
		publisher:   publisher,
		lockTTL:     lockTTL,
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// PlaceOrder stores a Pending order with snapshot lines and address. A
// repeated idempotency key returns the order created by the first request.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, req *PlaceOrderRequest, idempotencyKey string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	var idemKey string
	if idempotencyKey != "" {
		idemKey = fmt.Sprintf("order:%d:%s", userID, idempotencyKey)
		existing, err := s.replayed(ctx, idemKey)
		if err != nil {
			return nil, util.RecordError(span, err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
	}

	lines, err := validateOrderItems(req)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}

	snapshot, err := s.deliverySnapshot(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Items:           lines,
		TotalPrice:      req.TotalPrice,
		DeliveryAddress: snapshot,
		Status:          models.OrderStatusPending,
		DeliveryStatus:  models.DeliveryStatusReceived,
	}
	if gid := strings.TrimSpace(req.GatewayOrderID); gid != "" {
		order.GatewayOrderID = &gid
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("an order already exists for this payment")
		}
		return nil, util.RecordError(span, fmt.Errorf("failed to create order: %w", err))
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed", zap.Int64("order_id", order.ID), zap.Int64("user_id", userID))

	if idemKey != "" {
		if err := s.idempotency.SetIdempotencyKey(ctx, idemKey, order.ID, idempotencyTTL); err != nil {
			s.logger.Error("Failed to store idempotency key", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:  s.newEvent(models.EventTypeOrderPlaced),
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
	}
	if order.GatewayOrderID != nil {
		event.GatewayOrderID = *order.GatewayOrderID
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, nil
}

// Get retrieves an order by ID
func (s *OrderService) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, "order")
	}
	return order, nil
}

// GetForUser retrieves an order owned by userID
func (s *OrderService) GetForUser(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

// ListForUser returns a customer's orders newest first
func (s *OrderService) ListForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.orders.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, translate(err, "orders")
	}
	return nonNilOrders(orders), nil
}

// ListAll returns every order newest first
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, translate(err, "orders")
	}
	return nonNilOrders(orders), nil
}

// SetDeliveryStatus overwrites the delivery status with any valid value.
func (s *OrderService) SetDeliveryStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetDeliveryStatus")
	defer span.End()

	if !models.IsValidDeliveryStatus(status) {
		return nil, apperr.Validation("invalid delivery status %q", status)
	}

	order, err := s.orders.UpdateDeliveryStatus(ctx, orderID, status)
	if err != nil {
		return nil, util.RecordError(span, translate(err, "order"))
	}

	s.logger.Info("Delivery status updated", zap.Int64("order_id", orderID), zap.String("delivery_status", status))

	event := &models.OrderDeliveryStatusChangedEvent{
		BaseEvent:      s.newEvent(models.EventTypeOrderDeliveryStatusChanged),
		OrderID:        orderID,
		DeliveryStatus: status,
	}
	if err := s.publisher.PublishOrderDeliveryStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish DeliveryStatusChanged event", zap.Error(err))
	}
	return order, nil
}

// UpdateStatus applies an admin status change. Refund statuses go through
// Refund. Pending and Paid are only set by placement and a verified payment,
// so asking for either succeeds only when the order is already there.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string, refundAmount *float64) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, apperr.Validation("invalid order status %q", status)
	}

	switch status {
	case models.OrderStatusRefunded:
		return s.Refund(ctx, orderID, refundAmount)
	case models.OrderStatusPartiallyRefunded:
		if refundAmount == nil {
			return nil, apperr.Validation("refund amount is required for a partial refund")
		}
		return s.Refund(ctx, orderID, refundAmount)
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, "order")
	}
	if order.Status != status {
		return nil, apperr.Conflict("order cannot move from %s to %s", order.Status, status)
	}
	return order, nil
}

// Refund refunds a Paid order through the gateway, fully or by amount. Only
// one refund per order can be in flight; the stored status changes only if
// the order is still Paid.
func (s *OrderService) Refund(ctx context.Context, orderID int64, amount *float64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Refund")
	defer span.End()

	if amount != nil && *amount <= 0 {
		return nil, apperr.Validation("refund amount must be > 0")
	}

	lockKey := fmt.Sprintf("refund:%d", orderID)
	token, ok, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to acquire refund lock: %w", err))
	}
	if !ok {
		util.RefundsTotal.WithLabelValues("locked").Inc()
		return nil, apperr.Conflict("a refund is already in progress for this order")
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Error("Failed to release refund lock", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, "order")
	}
	if order.Status != models.OrderStatusPaid {
		util.RefundsTotal.WithLabelValues("rejected").Inc()
		return nil, apperr.Conflict("only paid orders can be refunded, order is %s", order.Status)
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		util.RefundsTotal.WithLabelValues("rejected").Inc()
		return nil, apperr.Conflict("order has no payment to refund")
	}
	if amount != nil && *amount > order.TotalPrice {
		return nil, apperr.Validation("refund amount exceeds order total")
	}

	req := gateway.RefundRequest{Speed: gateway.RefundSpeedOptimum}
	status := models.OrderStatusRefunded
	if amount != nil {
		paise := pricing.ToMinorUnits(*amount)
		req.Amount = &paise
		status = models.OrderStatusPartiallyRefunded
	}

	result, err := s.gateway.RefundPayment(ctx, *order.GatewayPaymentID, req)
	if err != nil {
		util.RefundsTotal.WithLabelValues("gateway_error").Inc()
		s.logger.Error("Gateway refund failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, util.RecordError(span, apperr.ExternalService(err, "refund failed"))
	}

	refund := &models.Refund{
		RefundID:    result.ID,
		Amount:      pricing.FromMinorUnits(result.Amount),
		Status:      result.Status,
		ProcessedAt: s.now().UTC(),
	}
	if result.CreatedAt > 0 {
		refund.ProcessedAt = time.Unix(result.CreatedAt, 0).UTC()
	}

	updated, err := s.orders.RecordRefund(ctx, orderID, status, refund)
	if err != nil {
		// the gateway already refunded, so the mismatch must be visible
		util.ContextLogger(ctx).Error("Refund issued but order not updated",
			zap.Int64("order_id", orderID),
			zap.String("refund_id", refund.RefundID),
			zap.Error(err))
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Conflict("order is no longer paid")
		}
		return nil, util.RecordError(span, err)
	}

	util.RefundsTotal.WithLabelValues("refunded").Inc()
	s.logger.Info("Order refunded",
		zap.Int64("order_id", orderID),
		zap.String("status", status),
		zap.Float64("amount", refund.Amount))

	event := &models.OrderRefundedEvent{
		BaseEvent: s.newEvent(models.EventTypeOrderRefunded),
		OrderID:   orderID,
		Status:    status,
		RefundID:  refund.RefundID,
		Amount:    refund.Amount,
	}
	if err := s.publisher.PublishOrderRefunded(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderRefunded event", zap.Error(err))
	}

	return updated, nil
}

func (s *OrderService) replayed(ctx context.Context, idemKey string) (*models.Order, error) {
	value, ok, err := s.idempotency.GetIdempotencyKey(ctx, idemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if !ok {
		return nil, nil
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, nil
	}
	order, err := s.orders.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return order, err
}

func (s *OrderService) deliverySnapshot(ctx context.Context, userID int64, req *PlaceOrderRequest) (models.AddressSnapshot, error) {
	var snapshot models.AddressSnapshot
	switch {
	case req.AddressID != nil:
		addr, err := s.addresses.Get(ctx, userID, *req.AddressID)
		if err != nil {
			return snapshot, err
		}
		snapshot = addr.Snapshot()
	case req.DeliveryAddress != nil:
		snapshot = *req.DeliveryAddress
	}

	if strings.TrimSpace(snapshot.FullName) == "" {
		return snapshot, apperr.Validation("delivery address fullName is required")
	}
	return snapshot, nil
}

func (s *OrderService) newEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.now(),
	}
}

func validateOrderItems(req *PlaceOrderRequest) (models.OrderLines, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	if req.TotalPrice < 0 {
		return nil, apperr.Validation("totalPrice must be >= 0")
	}

	lines := make(models.OrderLines, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperr.Validation("quantity for %s must be > 0", item.ProductName)
		}
		if item.Price < 0 {
			return nil, apperr.Validation("price for %s must be >= 0", item.ProductName)
		}
		lines = append(lines, models.OrderLineSnapshot{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return lines, nil
}

func nonNilOrders(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	return orders
}
