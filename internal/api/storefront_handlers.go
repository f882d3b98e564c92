package api

import (
	"context"
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type cartItemRequest struct {
	ProductID int64  `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
}

type coordinatesRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

type priceCartRequest struct {
	PromoCode string `json:"promoCode"`
}

func (h *Handler) listAreas(c *gin.Context) {
	areas, err := h.svc.Areas.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliverableAreas": areas})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.svc.Catalog.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	product, err := h.svc.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) getCharges(c *gin.Context) {
	charges, err := h.svc.Charges.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, charges)
}

func (h *Handler) validatePromo(c *gin.Context) {
	promo, err := h.svc.Promos.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, promo)
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.svc.Cart.Get(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addToCart(c *gin.Context) {
	h.mutateCart(c, h.svc.Cart.Add)
}

func (h *Handler) removeFromCart(c *gin.Context) {
	h.mutateCart(c, h.svc.Cart.Remove)
}

func (h *Handler) removeCartLine(c *gin.Context) {
	h.mutateCart(c, h.svc.Cart.RemoveLine)
}

type cartMutation func(ctx context.Context, userID, productID int64, size string) (*service.CartView, error)

func (h *Handler) mutateCart(c *gin.Context, fn cartMutation) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cart, err := fn(c.Request.Context(), subjectID(c), req.ProductID, req.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.svc.Cart.Clear(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) listAddresses(c *gin.Context) {
	book, err := h.svc.Addresses.List(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *Handler) addAddress(c *gin.Context) {
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	address, err := h.svc.Addresses.Add(c.Request.Context(), subjectID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (h *Handler) updateAddress(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	address, err := h.svc.Addresses.Update(c.Request.Context(), subjectID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Addresses.Delete(c.Request.Context(), subjectID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}

func (h *Handler) selectAddress(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Addresses.Select(c.Request.Context(), subjectID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selectedAddress": id})
}

func (h *Handler) selectedAddress(c *gin.Context) {
	address, err := h.svc.Addresses.Selected(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) checkDeliverable(c *gin.Context) {
	var req coordinatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ok, err := h.svc.Areas.CheckDeliverable(c.Request.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliverable": ok})
}

func (h *Handler) priceCart(c *gin.Context) {
	var req priceCartRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	quote, err := h.svc.Checkout.PriceCart(c.Request.Context(), subjectID(c), req.PromoCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
