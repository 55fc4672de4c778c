package admin

import (
	"net/url"
	"strings"

	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/logger"

	"github.com/gin-gonic/gin"
)

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type authzSetSubjectRolesPayload struct {
	Roles []string `json:"roles"`
}

// ListAuthzRoles 获取角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.Authz.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, roles)
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.Authz.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	logger.Infow("admin_authz_policy_granted",
		"operator_subject_id", currentSubjectID(c),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.Authz.RevokeRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	logger.Infow("admin_authz_policy_revoked",
		"operator_subject_id", currentSubjectID(c),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// GetAuthzSubjectRoles 获取主体角色
func (h *Handler) GetAuthzSubjectRoles(c *gin.Context) {
	subjectID, ok := parseSubjectIDParam(c)
	if !ok {
		return
	}
	roles, err := h.Authz.GetSubjectRoles(subjectID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, roles)
}

// SetAuthzSubjectRoles 覆盖设置主体角色
func (h *Handler) SetAuthzSubjectRoles(c *gin.Context) {
	subjectID, ok := parseSubjectIDParam(c)
	if !ok {
		return
	}
	var req authzSetSubjectRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.Authz.SetSubjectRoles(subjectID, req.Roles); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	logger.Infow("admin_authz_subject_roles_updated",
		"operator_subject_id", currentSubjectID(c),
		"target_subject_id", subjectID,
		"roles", req.Roles,
	)
	response.Success(c, nil)
}

func parseSubjectIDParam(c *gin.Context) (string, bool) {
	raw := c.Param("subject_id")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	subjectID := strings.TrimSpace(raw)
	if subjectID == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return "", false
	}
	return subjectID, true
}

func currentSubjectID(c *gin.Context) string {
	sess, ok := sessionFromContext(c)
	if !ok {
		return ""
	}
	return sess.Subject().SubjectID
}
