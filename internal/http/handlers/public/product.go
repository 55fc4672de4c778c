package public

import (
	"strconv"

	"github.com/musicfy-storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListProducts 商品列表
func (h *Handler) ListProducts(c *gin.Context) {
	if h.Catalog == nil {
		respondError(c, response.CodeUnavailable, "catalog.unavailable", nil)
		return
	}
	products, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	response.Success(c, products)
}

// GetProduct 商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	if h.Catalog == nil {
		respondError(c, response.CodeUnavailable, "catalog.unavailable", nil)
		return
	}
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || productID == 0 {
		respondError(c, response.CodeBadRequest, "cart.invalid_item", nil)
		return
	}
	product, err := h.Catalog.Get(c.Request.Context(), productID)
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	response.Success(c, product)
}
