package admin

import "github.com/musicfy-storefront/internal/provider"

// Handler 运营接口处理器入口
// 说明：所有路由都经过 operator 角色授权中间件。
type Handler struct {
	*provider.Container
}

// New 创建运营处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
