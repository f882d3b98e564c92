package api

import (
	"net/http"
	"strings"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const idempotencyHeader = "Idempotency-Key"

type paymentIntentRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

type deliveryStatusRequest struct {
	DeliveryStatus string `json:"deliveryStatus" binding:"required"`
}

type orderStatusRequest struct {
	Status       string   `json:"status" binding:"required"`
	RefundAmount *float64 `json:"refundAmount"`
}

type refundRequest struct {
	Amount *float64 `json:"amount"`
}

// placeOrder handles order creation requests
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	order, err := h.svc.Orders.PlaceOrder(c.Request.Context(), subjectID(c), &req, key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListForUser(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getMyOrder handles get order requests
func (h *Handler) getMyOrder(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.GetForUser(c.Request.Context(), subjectID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) sendOrderEmails(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Orders.GetForUser(c.Request.Context(), subjectID(c), id); err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.Notifications.SendOrderEmails(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order emails sent"})
}

func (h *Handler) createPaymentIntent(c *gin.Context) {
	var req paymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.svc.Payments.CreatePaymentIntent(c.Request.Context(), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// verifyPayment is the gateway callback relayed by the client.
func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.svc.Payments.ConfirmPayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment verified", "order": order})
}

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) setDeliveryStatus(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req deliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.svc.Orders.SetDeliveryStatus(c.Request.Context(), id, req.DeliveryStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), id, req.Status, req.RefundAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// refundOrder refunds in full when no amount is given.
func (h *Handler) refundOrder(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req refundRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.svc.Orders.Refund(c.Request.Context(), id, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) dashboard(c *gin.Context) {
	stats, err := h.svc.Dashboard.Stats(c.Request.Context(), c.Query("window"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
