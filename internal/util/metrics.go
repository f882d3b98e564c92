package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders stored in Pending state",
	})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_verifications_total",
		Help: "Payment callback verifications by result",
	}, []string{"result"})

	PaymentIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_intents_total",
		Help: "Gateway payment intents by result",
	}, []string{"result"})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_refunds_total",
		Help: "Refund attempts by result",
	}, []string{"result"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	OTPIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_otp_issued_total",
		Help: "One-time passwords issued by purpose",
	}, []string{"purpose"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_emails_sent_total",
		Help: "Outbound emails by template and result",
	}, []string{"template", "result"})

	AddressesRevalidatedRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_addresses_revalidation_removed_total",
		Help: "Addresses removed because they left every service area",
	})

	RevalidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_address_revalidation_duration_seconds",
		Help:    "Duration of a full address revalidation pass",
		Buckets: prometheus.DefBuckets,
	})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_events_consumed_total",
		Help: "Order events handled by workers",
	}, []string{"event_type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
