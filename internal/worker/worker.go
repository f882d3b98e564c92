package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// MessageSource is satisfied by *broker.Consumer.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// OrderEventProcessor reacts to the order events the worker subscribes to.
type OrderEventProcessor interface {
	HandleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	HandleDeliveryStatusChanged(ctx context.Context, event *models.OrderDeliveryStatusChangedEvent) error
}

// NotificationWorker sends order emails in the background for paid orders
// and delivery status changes.
type NotificationWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(source MessageSource, processor OrderEventProcessor) *NotificationWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPaid(processor.HandleOrderPaid)
	eventHandler.OnDeliveryStatusChanged(processor.HandleDeliveryStatusChanged)

	return &NotificationWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.ComponentLogger("worker"),
	}
}

// Start blocks until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.source.Close()
}
