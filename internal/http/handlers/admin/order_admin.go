package admin

import (
	"errors"
	"strconv"

	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateOrderStatusRequest 更新订单状态请求
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListOrderStatuses 可用订单状态
func (h *Handler) ListOrderStatuses(c *gin.Context) {
	response.Success(c, service.OrderStatuses())
}

// UpdateOrderStatus 运营推进订单状态
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	operator := sess.Subject()
	if err := h.OrderService.UpdateStatus(c.Request.Context(), operator, orderID, req.Status); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.not_found", nil)
		case errors.Is(err, service.ErrOrderStatusInvalid):
			respondError(c, response.CodeBadRequest, "order.status_invalid", nil)
		case errors.Is(err, service.ErrNotAuthenticated):
			respondError(c, response.CodeUnauthorized, "auth.login_required", nil)
		default:
			respondError(c, response.CodeBadGateway, "order.update_failed", err)
		}
		return
	}

	logger.Infow("operator_order_status_updated",
		"operator_subject_id", operator.SubjectID,
		"order_id", orderID,
		"status", req.Status,
	)
	response.Success(c, gin.H{"order_id": orderID, "status": req.Status})
}
