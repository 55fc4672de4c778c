package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/session"
)

// UserDirectory 后端用户目录
type UserDirectory interface {
	EnsureUser(ctx context.Context, subjectID, fullName, email string) (*backend.User, error)
}

// SubjectBinder 切换会话主体
type SubjectBinder interface {
	SetSubject(ctx context.Context, sess *session.Session, subject identity.Subject) error
}

// RegisterInput 注册输入
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// AuthResult 登录结果
type AuthResult struct {
	Subject        identity.Subject `json:"subject"`
	Cart           cart.Snapshot    `json:"cart"`
	CartSyncFailed bool             `json:"cart_sync_failed"`
}

// AuthService 登录、注册与登出
type AuthService struct {
	provider identity.Provider
	users    UserDirectory
	binder   SubjectBinder
}

// NewAuthService 创建认证服务
func NewAuthService(provider identity.Provider, users UserDirectory, binder SubjectBinder) *AuthService {
	return &AuthService{
		provider: provider,
		users:    users,
		binder:   binder,
	}
}

// ProviderName 当前身份提供方
func (s *AuthService) ProviderName() string {
	if s == nil || s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Register 注册并登录，后端同步创建用户
func (s *AuthService) Register(ctx context.Context, sess *session.Session, input RegisterInput) (*AuthResult, error) {
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, identity.ErrInvalidInput
	}
	subject, err := s.provider.SignUpWithPassword(ctx, identity.SignUpInput{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: fullName,
	})
	if err != nil {
		return nil, err
	}
	subject.DisplayName = fullName
	return s.bind(ctx, sess, subject)
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, sess *session.Session, email, password string) (*AuthResult, error) {
	subject, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.bind(ctx, sess, subject)
}

// LoginFederated 第三方身份令牌登录
func (s *AuthService) LoginFederated(ctx context.Context, sess *session.Session, idToken string) (*AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, identity.ErrInvalidToken
	}
	subject, err := s.provider.SignInWithFederated(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return s.bind(ctx, sess, subject)
}

// Logout 登出：通知身份提供方后切回匿名主体
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) (cart.Snapshot, error) {
	current := sess.Subject()
	if current.Authenticated() {
		if err := s.provider.SignOut(ctx, current); err != nil {
			logger.Warnw("auth_provider_sign_out_failed",
				"session_id", sess.ID,
				"subject_id", current.SubjectID,
				"error", err,
			)
		}
	}
	if err := s.binder.SetSubject(ctx, sess, identity.Anonymous()); err != nil {
		return sess.Store.Snapshot(), fmt.Errorf("%w: %w", ErrCartSyncFailed, err)
	}
	return sess.Store.Snapshot(), nil
}

// bind 确保后端用户存在后触发购物车同步；同步失败不影响登录本身
func (s *AuthService) bind(ctx context.Context, sess *session.Session, subject identity.Subject) (*AuthResult, error) {
	user, err := s.users.EnsureUser(ctx, subject.SubjectID, displayNameOf(subject), subject.Email)
	if err != nil {
		logger.Warnw("auth_backend_user_sync_failed",
			"session_id", sess.ID,
			"subject_id", subject.SubjectID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrUserSyncFailed, err)
	}
	subject.UserID = user.ID
	if subject.DisplayName == "" {
		subject.DisplayName = user.FullName
	}

	result := &AuthResult{Subject: subject}
	err = s.binder.SetSubject(ctx, sess, subject)
	switch {
	case err == nil:
	case errors.Is(err, cart.ErrSyncFailed):
		result.CartSyncFailed = true
	default:
		return nil, fmt.Errorf("%w: %w", ErrCartSyncFailed, err)
	}
	result.Subject = sess.Subject()
	result.Cart = sess.Store.Snapshot()
	logger.Infow("auth_signed_in",
		"session_id", sess.ID,
		"subject_id", subject.SubjectID,
		"user_id", subject.UserID,
		"provider", subject.Provider,
		"cart_sync_failed", result.CartSyncFailed,
	)
	return result, nil
}

func displayNameOf(subject identity.Subject) string {
	if name := strings.TrimSpace(subject.DisplayName); name != "" {
		return name
	}
	if at := strings.Index(subject.Email, "@"); at > 0 {
		return subject.Email[:at]
	}
	return subject.Email
}
