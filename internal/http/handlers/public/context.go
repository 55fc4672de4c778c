package public

import (
	handlershared "github.com/musicfy-storefront/internal/http/handlers/shared"
	"github.com/musicfy-storefront/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func respondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondErrorWithMsg(c, code, msg, err)
}

func currentSession(c *gin.Context) (*session.Session, bool) {
	return handlershared.CurrentSession(c)
}
