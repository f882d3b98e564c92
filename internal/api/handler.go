package api

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/auth"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the application services the handlers call.
type Services struct {
	Accounts      *service.AccountService
	Admin         *service.AdminService
	Areas         *service.AreaService
	Addresses     *service.AddressService
	Catalog       *service.CatalogService
	Cart          *service.CartService
	Charges       *service.ChargeService
	Promos        *service.PromoService
	Checkout      *service.CheckoutService
	Orders        *service.OrderService
	Payments      *service.PaymentService
	Notifications *service.NotificationService
	Dashboard     *service.DashboardService
}

// Handler contains HTTP handlers
type Handler struct {
	svc            Services
	tokens         *auth.TokenIssuer
	allowedOrigins []string
	readiness      map[string]Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, tokens *auth.TokenIssuer, allowedOrigins []string, readiness map[string]Pinger) *Handler {
	return &Handler{
		svc:            svc,
		tokens:         tokens,
		allowedOrigins: allowedOrigins,
		readiness:      readiness,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(h.allowedOrigins))
	router.Use(tracingMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/areas", h.listAreas)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/charges", h.getCharges)
		v1.GET("/promos/validate/:code", h.validatePromo)

		authGroup := v1.Group("/auth")
		authGroup.POST("/signup/otp", h.sendSignupOTP)
		authGroup.POST("/signup/verify", h.verifySignupOTP)
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/password/forgot", h.forgotPassword)
		authGroup.POST("/password/verify", h.verifyResetOTP)
		authGroup.POST("/password/reset", h.resetPassword)

		v1.POST("/admin/login", h.adminLogin)
		v1.POST("/admin/init", h.adminInit)
		v1.POST("/admin/credentials/otp", h.adminSendResetOTP)
		v1.POST("/admin/credentials/reset", h.adminResetCredentials)

		v1.POST("/payments/verify", h.verifyPayment)
	}

	user := v1.Group("", requireAuth(h.tokens))
	{
		user.GET("/me", h.profile)

		user.GET("/cart", h.getCart)
		user.POST("/cart/add", h.addToCart)
		user.POST("/cart/remove", h.removeFromCart)
		user.POST("/cart/remove-line", h.removeCartLine)
		user.POST("/cart/clear", h.clearCart)

		user.GET("/addresses", h.listAddresses)
		user.POST("/addresses", h.addAddress)
		user.GET("/addresses/selected", h.selectedAddress)
		user.POST("/addresses/check", h.checkDeliverable)
		user.PUT("/addresses/:id", h.updateAddress)
		user.DELETE("/addresses/:id", h.deleteAddress)
		user.PUT("/addresses/:id/select", h.selectAddress)

		user.POST("/checkout/price", h.priceCart)

		user.GET("/orders", h.listMyOrders)
		user.POST("/orders", h.placeOrder)
		user.GET("/orders/:id", h.getMyOrder)
		user.POST("/orders/:id/emails", h.sendOrderEmails)

		user.POST("/payments/intent", h.createPaymentIntent)
	}

	admin := v1.Group("/admin", requireAuth(h.tokens), requireAdmin())
	{
		admin.GET("/profile", h.adminProfile)

		admin.POST("/areas", h.addArea)
		admin.PUT("/areas/:index", h.updateArea)
		admin.DELETE("/areas/:index", h.deleteArea)
		admin.POST("/areas/revalidate", h.revalidateAddresses)

		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.DELETE("/products/:id", h.deleteProduct)

		admin.POST("/charges", h.saveCharges)
		admin.PUT("/charges/other/:id", h.updateOtherCharge)
		admin.DELETE("/charges/other/:id", h.deleteOtherCharge)

		admin.GET("/promos", h.listPromos)
		admin.POST("/promos", h.createPromo)
		admin.DELETE("/promos/:id", h.deletePromo)

		admin.GET("/orders", h.listAllOrders)
		admin.PATCH("/orders/:id/delivery", h.setDeliveryStatus)
		admin.PUT("/orders/:id/status", h.updateOrderStatus)
		admin.PUT("/orders/:id/refund", h.refundOrder)

		admin.GET("/dashboard", h.dashboard)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	body := gin.H{"status": "ready", "checks": checks, "time": time.Now().Unix()}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "not ready"
	}
	c.JSON(status, body)
}
