package api

import (
	"net/http"
	"strconv"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// areaIndex parses the zero-based :index path parameter.
func areaIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid index",
			"details": "index must be a non-negative integer",
		})
		return 0, false
	}
	return index, true
}

func (h *Handler) addArea(c *gin.Context) {
	var req service.AreaInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	areas, err := h.svc.Areas.Add(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deliverableAreas": areas})
}

func (h *Handler) updateArea(c *gin.Context) {
	index, ok := areaIndex(c)
	if !ok {
		return
	}
	var req service.AreaInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.svc.Areas.Update(c.Request.Context(), index, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) deleteArea(c *gin.Context) {
	index, ok := areaIndex(c)
	if !ok {
		return
	}
	result, err := h.svc.Areas.Delete(c.Request.Context(), index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) revalidateAddresses(c *gin.Context) {
	report, err := h.svc.Areas.Revalidate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product, err := h.svc.Catalog.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product, err := h.svc.Catalog.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Catalog.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

func (h *Handler) saveCharges(c *gin.Context) {
	var req models.ChargeConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	charges, err := h.svc.Charges.Save(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, charges)
}

func (h *Handler) updateOtherCharge(c *gin.Context) {
	var req service.OtherChargePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	charges, err := h.svc.Charges.UpdateOtherCharge(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, charges)
}

func (h *Handler) deleteOtherCharge(c *gin.Context) {
	charges, err := h.svc.Charges.DeleteOtherCharge(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, charges)
}

func (h *Handler) listPromos(c *gin.Context) {
	promos, err := h.svc.Promos.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, promos)
}

func (h *Handler) createPromo(c *gin.Context) {
	var req service.CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	promo, err := h.svc.Promos.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, promo)
}

func (h *Handler) deletePromo(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Promos.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Promo code deleted"})
}
