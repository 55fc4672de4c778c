package public

import (
	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/i18n"
	"github.com/musicfy-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 密码登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// FederatedLoginRequest 第三方登录请求
type FederatedLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// Register 注册并登录，访客购物车并入服务端购物车
func (h *Handler) Register(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.AuthService.Register(c.Request.Context(), sess, service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	respondAuthResult(c, result)
}

// Login 邮箱密码登录
func (h *Handler) Login(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.AuthService.Login(c.Request.Context(), sess, req.Email, req.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	respondAuthResult(c, result)
}

// LoginFederated 第三方身份令牌登录
func (h *Handler) LoginFederated(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req FederatedLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.AuthService.LoginFederated(c.Request.Context(), sess, req.IDToken)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	respondAuthResult(c, result)
}

// Logout 登出，主体切回匿名
func (h *Handler) Logout(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	snapshot, err := h.AuthService.Logout(c.Request.Context(), sess)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	response.Success(c, gin.H{
		"subject": sess.Subject(),
		"cart":    snapshot,
	})
}

// Me 当前主体与角色
func (h *Handler) Me(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	subject := sess.Subject()
	roles := []string{}
	if subject.Authenticated() && h.Authz != nil {
		assigned, err := h.Authz.GetSubjectRoles(subject.SubjectID)
		if err != nil {
			requestLog(c).Warnw("subject_roles_fetch_failed", "subject_id", subject.SubjectID, "error", err)
		} else {
			roles = assigned
		}
	}
	response.Success(c, gin.H{
		"subject":       subject,
		"authenticated": subject.Authenticated(),
		"roles":         roles,
	})
}

// respondAuthResult 登录成功；对账失败时购物车已重置，附带提示
func respondAuthResult(c *gin.Context, result *service.AuthResult) {
	data := gin.H{
		"subject":          result.Subject,
		"cart":             result.Cart,
		"cart_sync_failed": result.CartSyncFailed,
	}
	if result.CartSyncFailed {
		data["notice"] = i18n.T(i18n.ResolveLocale(c), "cart.sync_failed")
	}
	response.Success(c, data)
}
