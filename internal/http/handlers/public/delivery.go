package public

import (
	"time"

	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// DeliveryOptionView 配送选项及按今天计算的预计送达
type DeliveryOptionView struct {
	service.DeliveryOption
	Estimate string `json:"estimativa"`
}

// ListDeliveryOptions 配送选项列表
func (h *Handler) ListDeliveryOptions(c *gin.Context) {
	now := time.Now()
	options := service.DeliveryOptions()
	views := make([]DeliveryOptionView, 0, len(options))
	for _, option := range options {
		views = append(views, DeliveryOptionView{
			DeliveryOption: option,
			Estimate:       service.EstimateDelivery(now, option.EstimatedTime),
		})
	}
	response.Success(c, views)
}
