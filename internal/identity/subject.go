package identity

import (
	"strings"

	"github.com/musicfy-storefront/internal/constants"
)

// Subject 当前会话主体，匿名或已登录
type Subject struct {
	Kind        string `json:"kind"`
	SubjectID   string `json:"subject_id,omitempty"`   // 身份提供方主体标识
	UserID      uint64 `json:"user_id,omitempty"`      // 后端用户 ID
	Email       string `json:"email,omitempty"`        // 邮箱
	DisplayName string `json:"display_name,omitempty"` // 显示名
	Provider    string `json:"provider,omitempty"`     // 登录方式
}

// Anonymous 返回匿名主体
func Anonymous() Subject {
	return Subject{Kind: constants.SubjectKindAnonymous}
}

// Authenticated 判断是否已登录
func (s Subject) Authenticated() bool {
	return s.Kind == constants.SubjectKindAuthenticated && strings.TrimSpace(s.SubjectID) != ""
}

// Same 判断是否同一主体
func (s Subject) Same(other Subject) bool {
	if s.Authenticated() != other.Authenticated() {
		return false
	}
	if !s.Authenticated() {
		return true
	}
	return s.SubjectID == other.SubjectID
}

// Normalize 补全主体类型
func (s Subject) Normalize() Subject {
	if s.Authenticated() {
		return s
	}
	return Anonymous()
}
