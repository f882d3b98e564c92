package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	paid     []int64
	delivery []int64
	failPaid error
}

func (n *countingNotifier) SendOrderEmails(ctx context.Context, orderID int64) error {
	n.paid = append(n.paid, orderID)
	return n.failPaid
}

func (n *countingNotifier) NotifyDeliveryStatus(ctx context.Context, orderID int64) error {
	n.delivery = append(n.delivery, orderID)
	return nil
}

func TestEventProcessorHandlesEachEventOnce(t *testing.T) {
	f := newFakeStore()
	notifier := &countingNotifier{}
	ep := NewEventProcessor(f, notifier)
	ctx := context.Background()

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeOrderPaid},
		OrderID:   7,
	}
	require.NoError(t, ep.HandleOrderPaid(ctx, event))
	require.NoError(t, ep.HandleOrderPaid(ctx, event))

	assert.Equal(t, []int64{7}, notifier.paid)
	assert.Equal(t, models.EventTypeOrderPaid, f.events["evt-1"])

	require.NoError(t, ep.HandleDeliveryStatusChanged(ctx, &models.OrderDeliveryStatusChangedEvent{
		BaseEvent:      models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeOrderDeliveryStatusChanged},
		OrderID:        7,
		DeliveryStatus: models.DeliveryStatusDelivered,
	}))
	assert.Equal(t, []int64{7}, notifier.delivery)
}

func TestEventProcessorRetriesFailedEvent(t *testing.T) {
	f := newFakeStore()
	notifier := &countingNotifier{failPaid: errors.New("smtp down")}
	ep := NewEventProcessor(f, notifier)
	ctx := context.Background()

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeOrderPaid},
		OrderID:   7,
	}
	assert.Error(t, ep.HandleOrderPaid(ctx, event))
	assert.NotContains(t, f.events, "evt-1")

	notifier.failPaid = nil
	require.NoError(t, ep.HandleOrderPaid(ctx, event))
	assert.Equal(t, []int64{7, 7}, notifier.paid)
}
