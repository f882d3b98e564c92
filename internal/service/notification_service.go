package service

import (
	"context"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/mailer"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RecipientSource lists the staff mailboxes notified of new orders.
type RecipientSource interface {
	OrderRecipients(ctx context.Context) ([]string, error)
}

// NotificationService sends order emails. Failures never change order state
// and every operation is safe to retry.
type NotificationService struct {
	orders     OrderRepository
	recipients RecipientSource
	mailer     Mailer
	logger     *zap.Logger
}

func NewNotificationService(orders OrderRepository, recipients RecipientSource, mailer Mailer) *NotificationService {
	return &NotificationService{
		orders:     orders,
		recipients: recipients,
		mailer:     mailer,
		logger:     util.ComponentLogger("notifications"),
	}
}

// SendOrderEmails mails the order to staff and a confirmation to the customer.
func (s *NotificationService) SendOrderEmails(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "NotificationService.SendOrderEmails")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return translate(err, "order")
	}
	if order.Status == models.OrderStatusPending {
		return apperr.Conflict("order %d is not paid", orderID)
	}

	data := map[string]any{"Order": order}
	var errs error

	staff, err := s.recipients.OrderRecipients(ctx)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		errs = multierr.Append(errs, fmt.Errorf("load recipients: %w", err))
	}
	if len(staff) > 0 {
		subject := fmt.Sprintf("New order #%d from %s", order.ID, order.Name)
		if err := s.mailer.Send(ctx, staff, subject, mailer.TemplateOrderAdmin, data); err != nil {
			errs = multierr.Append(errs, err)
		}
	} else {
		s.logger.Warn("No staff recipients configured", zap.Int64("order_id", orderID))
	}

	subject := fmt.Sprintf("Your order #%d is confirmed", order.ID)
	if err := s.mailer.Send(ctx, []string{order.Email}, subject, mailer.TemplateOrderCustomer, data); err != nil {
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		s.logger.Error("Order emails failed", zap.Int64("order_id", orderID), zap.Error(errs))
		return util.RecordError(span, apperr.ExternalService(errs, "failed to send order emails"))
	}

	s.logger.Info("Order emails sent", zap.Int64("order_id", orderID), zap.Int("staff_recipients", len(staff)))
	return nil
}

// NotifyDeliveryStatus tells the customer the order's current delivery status.
func (s *NotificationService) NotifyDeliveryStatus(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "NotificationService.NotifyDeliveryStatus")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return translate(err, "order")
	}

	subject := fmt.Sprintf("Order #%d is %s", order.ID, order.DeliveryStatus)
	err = s.mailer.Send(ctx, []string{order.Email}, subject, mailer.TemplateDeliveryStatus, map[string]any{"Order": order})
	if err != nil {
		return util.RecordError(span, apperr.ExternalService(err, "failed to send delivery update"))
	}
	return nil
}
