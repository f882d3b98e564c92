package service

import (
	"context"
	"errors"
	"fmt"
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

// VerifyPaymentRequest is the gateway checkout callback.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature        string `json:"razorpay_signature" binding:"required"`
}

// PaymentService creates gateway payment intents and reconciles callbacks
// with Pending orders.
type PaymentService struct {
	orders    OrderRepository
	gateway   PaymentGateway
	publisher EventPublisher
	secret    string
	currency  string
	now       func() time.Time
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	orders OrderRepository,
	gateway PaymentGateway,
	publisher EventPublisher,
	secret, currency string,
) *PaymentService {
	return &PaymentService{
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		secret:    secret,
		currency:  currency,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// CreatePaymentIntent opens a gateway order for amount rupees.
func (ps *PaymentService) CreatePaymentIntent(ctx context.Context, amount float64) (*gateway.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePaymentIntent")
	defer span.End()

	if amount <= 0 {
		return nil, apperr.Validation("amount must be > 0")
	}

	req := gateway.CreateOrderRequest{
		Amount:   pricing.ToMinorUnits(amount),
		Currency: ps.currency,
		Receipt:  fmt.Sprintf("receipt_%d", ps.now().UnixMilli()),
	}

	order, err := ps.gateway.CreateOrder(ctx, req)
	if err != nil {
		util.PaymentIntentsTotal.WithLabelValues("error").Inc()
		ps.logger.Error("Failed to create payment intent", zap.Int64("amount", req.Amount), zap.Error(err))
		return nil, util.RecordError(span, apperr.ExternalService(err, "failed to create payment order"))
	}

	util.PaymentIntentsTotal.WithLabelValues("created").Inc()
	ps.logger.Info("Payment intent created",
		zap.String("gateway_order_id", order.ID),
		zap.Int64("amount", order.Amount))
	return order, nil
}

// ConfirmPayment verifies the callback signature and marks the matching
// Pending order Paid. A bad signature deletes the order if it is still
// Pending. Replaying the callback of a Paid order with the same payment id
// returns the order unchanged.
func (ps *PaymentService) ConfirmPayment(ctx context.Context, req VerifyPaymentRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmPayment")
	defer span.End()

	gid := strings.TrimSpace(req.GatewayOrderID)
	pid := strings.TrimSpace(req.GatewayPaymentID)
	if gid == "" || pid == "" || req.Signature == "" {
		return nil, apperr.Validation("order id, payment id and signature are required")
	}

	if !gateway.VerifySignature(ps.secret, gid, pid, req.Signature) {
		return nil, ps.reject(ctx, gid)
	}

	order, err := ps.orders.MarkOrderPaid(ctx, gid, pid, req.Signature)
	if errors.Is(err, store.ErrNotFound) {
		return ps.settled(ctx, gid, pid)
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to mark order paid: %w", err))
	}

	util.PaymentVerificationsTotal.WithLabelValues("verified").Inc()
	ps.logger.Info("Payment verified",
		zap.Int64("order_id", order.ID),
		zap.String("gateway_order_id", gid),
		zap.String("gateway_payment_id", pid))

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: ps.now(),
		},
		OrderID:          order.ID,
		UserID:           order.UserID,
		TotalPrice:       order.TotalPrice,
		GatewayOrderID:   gid,
		GatewayPaymentID: pid,
	}
	if err := ps.publisher.PublishOrderPaid(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return order, nil
}

func (ps *PaymentService) reject(ctx context.Context, gid string) error {
	util.PaymentVerificationsTotal.WithLabelValues("invalid_signature").Inc()

	deleted, err := ps.orders.DeletePendingOrder(ctx, gid)
	if err != nil {
		ps.logger.Error("Failed to discard unverified order", zap.String("gateway_order_id", gid), zap.Error(err))
	}
	ps.logger.Warn("Payment signature mismatch",
		zap.String("gateway_order_id", gid),
		zap.Bool("pending_order_deleted", deleted))

	return apperr.VerificationFailure("payment verification failed")
}

// settled handles a valid callback for an order that is no longer Pending.
func (ps *PaymentService) settled(ctx context.Context, gid, pid string) (*models.Order, error) {
	order, err := ps.orders.GetOrderByGatewayOrderID(ctx, gid)
	if err != nil {
		util.PaymentVerificationsTotal.WithLabelValues("order_missing").Inc()
		return nil, translate(err, "order")
	}

	if order.Status == models.OrderStatusPaid && order.GatewayPaymentID != nil && *order.GatewayPaymentID == pid {
		util.PaymentVerificationsTotal.WithLabelValues("replay").Inc()
		ps.logger.Info("Payment callback replayed", zap.Int64("order_id", order.ID))
		return order, nil
	}

	util.PaymentVerificationsTotal.WithLabelValues("conflict").Inc()
	return nil, apperr.Conflict("order is already %s", order.Status)
}
