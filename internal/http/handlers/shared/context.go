package shared

import (
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/session"

	"github.com/gin-gonic/gin"
)

// CurrentSession 从上下文读取已解析的浏览器会话，缺失时直接返回错误响应。
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	value, exists := c.Get(constants.SessionContextKey)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.session_invalid", nil)
		return nil, false
	}
	sess, ok := value.(*session.Session)
	if !ok || sess == nil {
		RespondError(c, response.CodeInternal, "error.internal", nil)
		return nil, false
	}
	return sess, true
}
