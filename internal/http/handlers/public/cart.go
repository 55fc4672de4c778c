package public

import (
	"strconv"

	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// CartItemRequest 购物车项请求；名称与价格由商品目录决定，客户端字段不接收
type CartItemRequest struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (r CartItemRequest) toInput() service.CartItemInput {
	return service.CartItemInput{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
	}
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	response.Success(c, h.CartService.Snapshot(sess))
}

// AddCartItem 加入购物车
func (h *Handler) AddCartItem(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if req.Quantity < 0 {
		respondError(c, response.CodeBadRequest, "cart.invalid_quantity", nil)
		return
	}

	snapshot, err := h.CartService.Add(c.Request.Context(), sess, req.toInput())
	if err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, snapshot)
}

// UpdateCartItem 设置购物车行数量，数量为 0 时删除
func (h *Handler) UpdateCartItem(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	req.ProductID = productID

	snapshot, err := h.CartService.SetQuantity(c.Request.Context(), sess, req.toInput())
	if err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, snapshot)
}

// DeleteCartItem 删除购物车行
func (h *Handler) DeleteCartItem(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	snapshot, err := h.CartService.Remove(c.Request.Context(), sess, productID)
	if err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, snapshot)
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	snapshot, err := h.CartService.Clear(c.Request.Context(), sess)
	if err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, snapshot)
}

func parseProductIDParam(c *gin.Context) (uint64, bool) {
	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil || productID == 0 {
		respondError(c, response.CodeBadRequest, "cart.invalid_item", nil)
		return 0, false
	}
	return productID, true
}
