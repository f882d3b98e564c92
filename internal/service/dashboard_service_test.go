package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	f := newFakeStore()
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	f.putOrder(models.Order{
		Status: models.OrderStatusPaid, DeliveryStatus: models.DeliveryStatusDelivered,
		TotalPrice: 500, CreatedAt: now.AddDate(0, 0, -1),
		Items: models.OrderLines{
			{ProductID: 1, ProductName: "Rasgulla", Size: "500g", Quantity: 2, Price: 240},
		},
	})
	f.putOrder(models.Order{
		Status: models.OrderStatusPartiallyRefunded, DeliveryStatus: models.DeliveryStatusReceived,
		TotalPrice: 300.5, CreatedAt: now.AddDate(0, 0, -3),
		Refund: &models.Refund{Amount: 100.25, Status: models.RefundStatusProcessed},
		Items: models.OrderLines{
			{ProductID: 2, ProductName: "Sandesh", Size: "250g", Quantity: 1, Price: 120},
			{ProductID: 1, ProductName: "Rasgulla", Size: "500g", Quantity: 1, Price: 240},
		},
	})
	f.putOrder(models.Order{Status: models.OrderStatusPending, TotalPrice: 999, CreatedAt: now})
	f.putOrder(models.Order{Status: models.OrderStatusPaid, TotalPrice: 50, CreatedAt: now.AddDate(0, 0, -20)})

	svc := NewDashboardService(f)
	svc.now = func() time.Time { return now }

	stats, err := svc.Stats(context.Background(), Window7Days)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Orders)
	assert.Equal(t, 800.5, stats.GrossRevenue)
	assert.Equal(t, 100.25, stats.RefundedAmount)
	assert.Equal(t, 700.25, stats.NetRevenue)
	assert.Equal(t, map[string]int{models.OrderStatusPaid: 1, models.OrderStatusPartiallyRefunded: 1}, stats.StatusCounts)
	require.NotNil(t, stats.Since)
	assert.Equal(t, now.AddDate(0, 0, -7), *stats.Since)

	require.Len(t, stats.ProductSales, 2)
	assert.Equal(t, ProductSales{ProductID: 1, ProductName: "Rasgulla", Size: "500g", Units: 3, Revenue: 720}, stats.ProductSales[0])
	assert.Equal(t, "Sandesh", stats.ProductSales[1].ProductName)

	all, err := svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, WindowAll, all.Window)
	assert.Equal(t, 3, all.Orders)
	assert.Nil(t, all.Since)

	_, err = svc.Stats(context.Background(), "90d")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
