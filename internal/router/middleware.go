package router

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/authz"
	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/i18n"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/metrics"
	"github.com/musicfy-storefront/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			constants.SessionHeader,
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(constants.RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(constants.RequestIDContextKey, requestID)
		c.Writer.Header().Set(constants.RequestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件，同时记录请求指标
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), elapsed)

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(constants.RequestIDContextKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// SessionMiddleware 解析会话令牌（请求头优先，其次 cookie），结果放入上下文
func SessionMiddleware(registry *session.Registry, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if registry == nil {
			logger.Errorw("session_registry_unavailable")
			msg := i18n.T(i18n.ResolveLocale(c), "error.internal")
			response.Error(c, response.CodeInternal, msg)
			c.Abort()
			return
		}

		token := sessionToken(c, cookieName)
		if token == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "error.session_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		sess, err := registry.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidToken) {
				logger.Errorw("session_resolve_failed", "request_id", getRequestID(c), "error", err)
			}
			msg := i18n.T(i18n.ResolveLocale(c), "error.session_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		c.Set(constants.SessionContextKey, sess)
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if token := strings.TrimSpace(c.GetHeader(constants.SessionHeader)); token != "" {
		return token
	}
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookieName == "" {
		return ""
	}
	if value, err := c.Cookie(cookieName); err == nil {
		return strings.TrimSpace(value)
	}
	return ""
}

func sessionSubjectID(c *gin.Context) string {
	value, ok := c.Get(constants.SessionContextKey)
	if !ok {
		return ""
	}
	sess, ok := value.(*session.Session)
	if !ok || sess == nil {
		return ""
	}
	subject := sess.Subject()
	if !subject.Authenticated() {
		return ""
	}
	return subject.SubjectID
}

// RequireAuthenticated 要求会话主体已登录
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionSubjectID(c) == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "auth.login_required")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OperatorRBACMiddleware 运营接口 RBAC 鉴权中间件，按路由模板与方法判定
func OperatorRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("operator_rbac_service_unavailable")
			msg := i18n.T(i18n.ResolveLocale(c), "error.forbidden")
			response.Forbidden(c, msg)
			c.Abort()
			return
		}

		subjectID := sessionSubjectID(c)
		if subjectID == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "auth.login_required")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceSubject(subjectID, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("operator_rbac_enforce_failed",
				"subject_id", subjectID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			msg := i18n.T(i18n.ResolveLocale(c), "error.forbidden")
			response.Forbidden(c, msg)
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("operator_rbac_permission_denied",
				"subject_id", subjectID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			msg := i18n.T(i18n.ResolveLocale(c), "error.forbidden")
			response.Forbidden(c, msg)
			c.Abort()
			return
		}

		c.Next()
	}
}
