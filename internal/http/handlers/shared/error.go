package shared

import (
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/i18n"
	"github.com/musicfy-storefront/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get(constants.RequestIDContextKey); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回国际化错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	msg := i18n.T(i18n.ResolveLocale(c), key)
	respond(c, response.WrapError(code, key, msg, err))
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	respond(c, response.WrapError(code, "", msg, err))
}

// respond 5xx 按 error 记录，其余按 warn 记录
func respond(c *gin.Context, appErr *response.AppError) {
	if appErr.Err != nil {
		log := RequestLog(c)
		fields := []interface{}{"code", appErr.Code, "key", appErr.Key, "error", appErr.Err}
		if appErr.ServerSide() {
			log.Errorw("handler_error", fields...)
		} else {
			log.Warnw("handler_rejected", fields...)
		}
	}
	appErr.Write(c)
}
