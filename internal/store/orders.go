package store

import (
	"context"
	"time"

	"storefront/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, name, email, items, total_price, delivery_address,
			status, delivery_status, gateway_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, order, query,
		order.UserID, order.Name, order.Email, order.Items, order.TotalPrice, order.DeliveryAddress,
		order.Status, order.DeliveryStatus, order.GatewayOrderID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// GetOrderByGatewayOrderID retrieves the order bound to a gateway payment intent
func (s *Store) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE gateway_order_id = $1", gatewayOrderID)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// ListOrdersByUserID retrieves orders for a user
func (s *Store) ListOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return orders, err
}

// ListOrders retrieves every order, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC, id DESC")
	return orders, err
}

// ListPlacedOrdersSince returns non-Pending orders created at or after since.
// A zero since returns all of them.
func (s *Store) ListPlacedOrdersSince(ctx context.Context, since time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status <> $1 AND created_at >= $2 ORDER BY created_at DESC",
		models.OrderStatusPending, since)
	return orders, err
}

// MarkOrderPaid moves a Pending order to Paid. ErrNotFound means no Pending
// order carries gatewayOrderID.
func (s *Store) MarkOrderPaid(ctx context.Context, gatewayOrderID, paymentID, signature string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, gateway_payment_id = $2, gateway_signature = $3, updated_at = NOW()
		WHERE gateway_order_id = $4 AND status = $5
		RETURNING *`,
		models.OrderStatusPaid, paymentID, signature, gatewayOrderID, models.OrderStatusPending)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// DeletePendingOrder deletes the order for gatewayOrderID only while it is
// still Pending.
func (s *Store) DeletePendingOrder(ctx context.Context, gatewayOrderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM orders WHERE gateway_order_id = $1 AND status = $2",
		gatewayOrderID, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordRefund stores refund metadata on a Paid order. ErrNotFound means the
// order no longer is Paid.
func (s *Store) RecordRefund(ctx context.Context, orderID int64, status string, refund *models.Refund) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, refund = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING *`,
		status, refund, orderID, models.OrderStatusPaid)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// UpdateDeliveryStatus overwrites the delivery status
func (s *Store) UpdateDeliveryStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"UPDATE orders SET delivery_status = $1, updated_at = NOW() WHERE id = $2 RETURNING *",
		status, orderID)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}
