package identity

import (
	"context"
	"errors"
)

// 身份提供方错误
var (
	ErrBadCredentials      = errors.New("identity: bad credentials")
	ErrWrongPassword       = errors.New("identity: wrong password")
	ErrUserNotFound        = errors.New("identity: user not found")
	ErrEmailInUse          = errors.New("identity: email already in use")
	ErrWeakPassword        = errors.New("identity: weak password")
	ErrInvalidToken        = errors.New("identity: invalid id token")
	ErrProviderUnavailable = errors.New("identity: provider unavailable")
	ErrInvalidInput        = errors.New("identity: invalid input")
)

// SignUpInput 注册参数
type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Provider 外部身份提供方
type Provider interface {
	Name() string
	SignInWithPassword(ctx context.Context, email, password string) (Subject, error)
	SignInWithFederated(ctx context.Context, idToken string) (Subject, error)
	SignUpWithPassword(ctx context.Context, input SignUpInput) (Subject, error)
	SignOut(ctx context.Context, subject Subject) error
}

// MessageKey 将身份错误映射为固定的用户提示 key，原始错误码不向外暴露
func MessageKey(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserNotFound):
		return "auth.user_not_found"
	case errors.Is(err, ErrWrongPassword):
		return "auth.wrong_password"
	case errors.Is(err, ErrBadCredentials):
		return "auth.bad_credentials"
	case errors.Is(err, ErrEmailInUse):
		return "auth.email_in_use"
	case errors.Is(err, ErrWeakPassword):
		return "auth.weak_password"
	case errors.Is(err, ErrInvalidToken):
		return "auth.invalid_token"
	case errors.Is(err, ErrProviderUnavailable):
		return "auth.provider_unavailable"
	default:
		return "auth.failed"
	}
}
