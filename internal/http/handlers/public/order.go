package public

import (
	"github.com/musicfy-storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListOrders 当前用户订单历史，按日期倒序
func (h *Handler) ListOrders(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	orders, err := h.OrderService.ListForSubject(c.Request.Context(), sess.Subject())
	if err != nil {
		respondOrderError(c, err, "order.fetch_failed")
		return
	}
	response.Success(c, orders)
}
