package public

import "github.com/musicfy-storefront/internal/provider"

// Handler 前台接口处理器入口
// 说明：该处理器用于购物车、登录、结算与订单等顾客侧 API。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
