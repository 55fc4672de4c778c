package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/models"
	"github.com/musicfy-storefront/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const defaultMinPasswordLength = 6

var emailValidate = validator.New()

// FederatedClaims 联合登录 ID Token 声明
type FederatedClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Provider 本地身份提供方，账号保存在数据库中
type Provider struct {
	repo              repository.LocalAccountRepository
	secret            []byte
	issuer            string
	minPasswordLength int
	now               func() time.Time
}

// New 创建本地身份提供方
func New(repo repository.LocalAccountRepository, cfg config.LocalIdentityConfig) (*Provider, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: account repository is required", identity.ErrInvalidInput)
	}
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, fmt.Errorf("%w: token secret is required", identity.ErrInvalidInput)
	}
	minLength := cfg.MinPasswordLength
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	return &Provider{
		repo:              repo,
		secret:            []byte(cfg.TokenSecret),
		issuer:            strings.TrimSpace(cfg.TokenIssuer),
		minPasswordLength: minLength,
		now:               time.Now,
	}, nil
}

// Name 返回提供方名称
func (p *Provider) Name() string {
	return constants.IdentityProviderLocal
}

// MinPasswordLength 返回最短密码长度
func (p *Provider) MinPasswordLength() int {
	return p.minPasswordLength
}

// SignInWithPassword 邮箱密码登录
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (identity.Subject, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return identity.Subject{}, err
	}
	if password == "" {
		return identity.Subject{}, identity.ErrBadCredentials
	}
	account, err := p.repo.GetByEmail(ctx, normalized)
	if err != nil {
		return identity.Subject{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
	}
	if account == nil {
		return identity.Subject{}, identity.ErrUserNotFound
	}
	if account.PasswordHash == "" {
		return identity.Subject{}, identity.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return identity.Subject{}, identity.ErrWrongPassword
	}
	p.touch(ctx, account)
	return toSubject(account, constants.SignInMethodPassword), nil
}

// SignUpWithPassword 邮箱密码注册
func (p *Provider) SignUpWithPassword(ctx context.Context, input identity.SignUpInput) (identity.Subject, error) {
	normalized, err := normalizeEmail(input.Email)
	if err != nil {
		return identity.Subject{}, err
	}
	if len(input.Password) < p.minPasswordLength {
		return identity.Subject{}, identity.ErrWeakPassword
	}
	exist, err := p.repo.GetByEmail(ctx, normalized)
	if err != nil {
		return identity.Subject{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
	}
	if exist != nil {
		return identity.Subject{}, identity.ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return identity.Subject{}, err
	}
	now := p.now()
	account := &models.LocalAccount{
		UID:          uuid.NewString(),
		Email:        normalized,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: string(hash),
		LastLoginAt:  &now,
	}
	if err := p.repo.Create(ctx, account); err != nil {
		return identity.Subject{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
	}
	return toSubject(account, constants.SignInMethodPassword), nil
}

// SignInWithFederated 使用联合登录 ID Token 登录，首次登录自动建号
func (p *Provider) SignInWithFederated(ctx context.Context, idToken string) (identity.Subject, error) {
	claims, err := p.ParseFederatedToken(idToken)
	if err != nil {
		return identity.Subject{}, err
	}

	account, err := p.repo.GetByUID(ctx, claims.Subject)
	if err != nil {
		return identity.Subject{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
	}
	if account == nil {
		email, err := normalizeEmail(claims.Email)
		if err != nil {
			return identity.Subject{}, identity.ErrInvalidToken
		}
		exist, err := p.repo.GetByEmail(ctx, email)
		if err != nil {
			return identity.Subject{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
		}
		if exist != nil {
			return identity.Subject{}, identity.ErrEmailInUse
		}
		now := p.now()
		account = &models.LocalAccount{
			UID:         claims.Subject,
			Email:       email,
			DisplayName: strings.TrimSpace(claims.Name),
			LastLoginAt: &now,
		}
		if err := p.repo.Create(ctx, account); err != nil {
			return identity.Subject{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
		}
		return toSubject(account, constants.SignInMethodFederated), nil
	}
	p.touch(ctx, account)
	return toSubject(account, constants.SignInMethodFederated), nil
}

// SignOut 本地提供方无服务端会话
func (p *Provider) SignOut(_ context.Context, _ identity.Subject) error {
	return nil
}

// IssueFederatedToken 签发联合登录 ID Token
func (p *Provider) IssueFederatedToken(subjectID, email, name string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", identity.ErrInvalidInput
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := p.now()
	claims := FederatedClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    p.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// ParseFederatedToken 校验并解析联合登录 ID Token
func (p *Provider) ParseFederatedToken(idToken string) (*FederatedClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		options = append(options, jwt.WithIssuer(p.issuer))
	}
	claims := &FederatedClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(strings.TrimSpace(idToken), claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, identity.ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, identity.ErrInvalidToken
	}
	return claims, nil
}

func (p *Provider) touch(ctx context.Context, account *models.LocalAccount) {
	now := p.now()
	if err := p.repo.TouchLogin(ctx, account.ID, now); err == nil {
		account.LastLoginAt = &now
	}
}

func toSubject(account *models.LocalAccount, method string) identity.Subject {
	return identity.Subject{
		Kind:        constants.SubjectKindAuthenticated,
		SubjectID:   account.UID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Provider:    method,
	}
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", identity.ErrInvalidInput
	}
	if err := emailValidate.Var(normalized, "email"); err != nil {
		return "", errors.Join(identity.ErrInvalidInput, identity.ErrBadCredentials)
	}
	return normalized, nil
}
