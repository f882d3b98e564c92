package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ProcessedEventStore records consumed event ids.
type ProcessedEventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

type orderNotifier interface {
	SendOrderEmails(ctx context.Context, orderID int64) error
	NotifyDeliveryStatus(ctx context.Context, orderID int64) error
}

// EventProcessor reacts to order events exactly once per event id.
type EventProcessor struct {
	events   ProcessedEventStore
	notifier orderNotifier
	logger   *zap.Logger
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(events ProcessedEventStore, notifier orderNotifier) *EventProcessor {
	return &EventProcessor{
		events:   events,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// HandleOrderPaid sends the order emails for a verified payment
func (ep *EventProcessor) HandleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	ctx, span := util.StartSpan(ctx, "EventProcessor.HandleOrderPaid")
	defer span.End()

	return util.RecordError(span, ep.once(ctx, event.BaseEvent, func() error {
		ep.logger.Info("Handling order paid",
			zap.Int64("order_id", event.OrderID),
			zap.String("gateway_payment_id", event.GatewayPaymentID))
		return ep.notifier.SendOrderEmails(ctx, event.OrderID)
	}))
}

// HandleDeliveryStatusChanged tells the customer about the new delivery status
func (ep *EventProcessor) HandleDeliveryStatusChanged(ctx context.Context, event *models.OrderDeliveryStatusChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "EventProcessor.HandleDeliveryStatusChanged")
	defer span.End()

	return util.RecordError(span, ep.once(ctx, event.BaseEvent, func() error {
		ep.logger.Info("Handling delivery status change",
			zap.Int64("order_id", event.OrderID),
			zap.String("delivery_status", event.DeliveryStatus))
		return ep.notifier.NotifyDeliveryStatus(ctx, event.OrderID)
	}))
}

func (ep *EventProcessor) once(ctx context.Context, base models.BaseEvent, fn func() error) error {
	processed, err := ep.events.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		util.EventsConsumedTotal.WithLabelValues(base.EventType, "duplicate").Inc()
		ep.logger.Info("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	if err := fn(); err != nil {
		util.EventsConsumedTotal.WithLabelValues(base.EventType, "error").Inc()
		return err
	}

	if err := ep.events.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	util.EventsConsumedTotal.WithLabelValues(base.EventType, "processed").Inc()
	return nil
}
