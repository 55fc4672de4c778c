package public

import (
	"strings"

	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// CompleteCheckoutRequest 支付完成确认请求
type CompleteCheckoutRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// SubmitAddress 保存收货地址
func (h *Handler) SubmitAddress(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.CheckoutService.SubmitAddress(c.Request.Context(), sess, req)
	if err != nil {
		respondCheckoutAddressError(c, err)
		return
	}
	response.Success(c, result)
}

// StartCheckout 创建订单并返回支付跳转地址
func (h *Handler) StartCheckout(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.StartCheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.CheckoutService.StartCheckout(c.Request.Context(), sess, req)
	if err != nil {
		respondCheckoutStartError(c, err)
		return
	}
	requestLog(c).Infow("checkout_started",
		"session_id", sess.ID,
		"order_id", result.OrderID,
		"payment_session_id", result.SessionID,
		"grand_total", result.GrandTotal.String(),
	)
	response.Success(c, result)
}

// CompleteCheckout 支付跳回后核验支付结果
func (h *Handler) CompleteCheckout(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req CompleteCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.CheckoutService.CompleteCheckout(c.Request.Context(), sess, strings.TrimSpace(req.SessionID))
	if err != nil {
		respondCheckoutCompleteError(c, err)
		return
	}
	response.Success(c, result)
}
