package service

import (
	"context"
	"sort"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dashboard windows
const (
	Window7Days   = "7d"
	Window30Days  = "30d"
	Window365Days = "365d"
	WindowAll     = "all"
)

var windowDays = map[string]int{
	Window7Days:   7,
	Window30Days:  30,
	Window365Days: 365,
}

// ProductSales is units sold of one product size.
type ProductSales struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Size        string  `json:"size"`
	Units       int     `json:"units"`
	Revenue     float64 `json:"revenue"`
}

// DashboardStats aggregates placed orders over a window.
type DashboardStats struct {
	Window         string         `json:"window"`
	Since          *time.Time     `json:"since,omitempty"`
	Orders         int            `json:"orders"`
	GrossRevenue   float64        `json:"grossRevenue"`
	RefundedAmount float64        `json:"refundedAmount"`
	NetRevenue     float64        `json:"netRevenue"`
	StatusCounts   map[string]int `json:"statusCounts"`
	DeliveryCounts map[string]int `json:"deliveryCounts"`
	ProductSales   []ProductSales `json:"productSales"`
}

type DashboardService struct {
	orders OrderRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewDashboardService(orders OrderRepository) *DashboardService {
	return &DashboardService{
		orders: orders,
		now:    time.Now,
		logger: util.ComponentLogger("dashboard"),
	}
}

// Stats summarizes non-Pending orders in window. Net revenue subtracts
// refunds the gateway reported as processed.
func (s *DashboardService) Stats(ctx context.Context, window string) (*DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Stats")
	defer span.End()

	if window == "" {
		window = WindowAll
	}

	stats := &DashboardStats{
		Window:         window,
		StatusCounts:   map[string]int{},
		DeliveryCounts: map[string]int{},
		ProductSales:   []ProductSales{},
	}

	var since time.Time
	if window != WindowAll {
		days, ok := windowDays[window]
		if !ok {
			return nil, apperr.Validation("window must be one of 7d, 30d, 365d, all")
		}
		since = s.now().AddDate(0, 0, -days)
		stats.Since = &since
	}

	orders, err := s.orders.ListPlacedOrdersSince(ctx, since)
	if err != nil {
		return nil, util.RecordError(span, translate(err, "orders"))
	}

	type salesKey struct {
		productID int64
		size      string
	}
	sales := map[salesKey]*ProductSales{}
	revenue := map[salesKey]decimal.Decimal{}

	gross, refunded := decimal.Zero, decimal.Zero
	for _, o := range orders {
		if o.Status == models.OrderStatusPending {
			continue
		}
		stats.Orders++
		stats.StatusCounts[o.Status]++
		stats.DeliveryCounts[o.DeliveryStatus]++
		gross = gross.Add(decimal.NewFromFloat(o.TotalPrice))

		if o.Refund != nil && o.Refund.Status == models.RefundStatusProcessed {
			refunded = refunded.Add(decimal.NewFromFloat(o.Refund.Amount))
		}

		for _, line := range o.Items {
			k := salesKey{line.ProductID, line.Size}
			ps, ok := sales[k]
			if !ok {
				ps = &ProductSales{ProductID: line.ProductID, ProductName: line.ProductName, Size: line.Size}
				sales[k] = ps
			}
			ps.Units += line.Quantity
			revenue[k] = revenue[k].Add(decimal.NewFromFloat(line.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	}

	for k, ps := range sales {
		ps.Revenue = revenue[k].Round(2).InexactFloat64()
		stats.ProductSales = append(stats.ProductSales, *ps)
	}
	sort.Slice(stats.ProductSales, func(i, j int) bool {
		a, b := stats.ProductSales[i], stats.ProductSales[j]
		if a.Units != b.Units {
			return a.Units > b.Units
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.Size < b.Size
	})

	stats.GrossRevenue = gross.Round(2).InexactFloat64()
	stats.RefundedAmount = refunded.Round(2).InexactFloat64()
	stats.NetRevenue = gross.Sub(refunded).Round(2).InexactFloat64()
	return stats, nil
}
