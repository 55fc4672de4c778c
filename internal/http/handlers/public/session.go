package public

import (
	"net/http"
	"time"

	"github.com/musicfy-storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// CreateSession 创建访客会话并下发令牌
func (h *Handler) CreateSession(c *gin.Context) {
	sess, token, expiresAt, err := h.Sessions.Create(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	h.setSessionCookie(c, token, expiresAt)
	response.Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"subject":    sess.Subject(),
		"cart":       h.CartService.Snapshot(sess),
	})
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	name := h.sessionCookieName()
	if name == "" {
		return
	}
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAge, "/", "", c.Request.TLS != nil, true)
}

func (h *Handler) sessionCookieName() string {
	if h.Config == nil {
		return ""
	}
	return h.Config.Session.CookieName
}
