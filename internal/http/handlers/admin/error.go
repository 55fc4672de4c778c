package admin

import (
	"github.com/musicfy-storefront/internal/constants"
	handlershared "github.com/musicfy-storefront/internal/http/handlers/shared"
	"github.com/musicfy-storefront/internal/session"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func currentSession(c *gin.Context) (*session.Session, bool) {
	return handlershared.CurrentSession(c)
}

// sessionFromContext 读取会话但不写错误响应，仅用于日志字段
func sessionFromContext(c *gin.Context) (*session.Session, bool) {
	value, exists := c.Get(constants.SessionContextKey)
	if !exists {
		return nil, false
	}
	sess, ok := value.(*session.Session)
	return sess, ok && sess != nil
}
