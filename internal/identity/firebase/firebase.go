package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/logger"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/tidwall/gjson"
	"google.golang.org/api/option"
)

const (
	defaultToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultTimeout    = 10 * time.Second
	maxResponseSize   = 1 << 20
)

// AdminClient Firebase Admin 认证能力
type AdminClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Provider Firebase 身份提供方
type Provider struct {
	admin      AdminClient
	apiKey     string
	toolkitURL string
	http       *http.Client
}

// New 通过服务账号初始化 Firebase 身份提供方
func New(ctx context.Context, cfg config.FirebaseIdentityConfig) (*Provider, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var appConfig *fb.Config
	if strings.TrimSpace(cfg.ProjectID) != "" {
		appConfig = &fb.Config{ProjectID: cfg.ProjectID}
	}
	app, err := fb.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: init firebase app: %v", identity.ErrProviderUnavailable, err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: init firebase auth: %v", identity.ErrProviderUnavailable, err)
	}
	return NewWithClient(client, cfg, nil), nil
}

// NewWithClient 使用已有的 Admin 客户端创建提供方
func NewWithClient(admin AdminClient, cfg config.FirebaseIdentityConfig, httpClient *http.Client) *Provider {
	toolkitURL := strings.TrimRight(strings.TrimSpace(cfg.IdentityToolkit), "/")
	if toolkitURL == "" {
		toolkitURL = defaultToolkitURL
	}
	if httpClient == nil {
		timeout := defaultTimeout
		if cfg.TimeoutMS > 0 {
			timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Provider{
		admin:      admin,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		toolkitURL: toolkitURL,
		http:       httpClient,
	}
}

// Name 返回提供方名称
func (p *Provider) Name() string {
	return constants.IdentityProviderFirebase
}

// SignInWithPassword 邮箱密码登录
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (identity.Subject, error) {
	account, err := p.call(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             strings.TrimSpace(email),
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return identity.Subject{}, err
	}
	return account.subject(constants.SignInMethodPassword), nil
}

// SignUpWithPassword 邮箱密码注册，并写入显示名
func (p *Provider) SignUpWithPassword(ctx context.Context, input identity.SignUpInput) (identity.Subject, error) {
	account, err := p.call(ctx, "accounts:signUp", map[string]interface{}{
		"email":             strings.TrimSpace(input.Email),
		"password":          input.Password,
		"returnSecureToken": true,
	})
	if err != nil {
		return identity.Subject{}, err
	}
	name := strings.TrimSpace(input.DisplayName)
	if name != "" {
		if _, err := p.call(ctx, "accounts:update", map[string]interface{}{
			"idToken":           account.idToken,
			"displayName":       name,
			"returnSecureToken": false,
		}); err != nil {
			logger.Warnw("firebase_profile_update_failed", "uid", account.uid, "error", err)
		} else {
			account.displayName = name
		}
	}
	return account.subject(constants.SignInMethodPassword), nil
}

// SignInWithFederated 校验客户端拿到的 Firebase ID Token
func (p *Provider) SignInWithFederated(ctx context.Context, idToken string) (identity.Subject, error) {
	if p.admin == nil {
		return identity.Subject{}, identity.ErrProviderUnavailable
	}
	token, err := p.admin.VerifyIDToken(ctx, strings.TrimSpace(idToken))
	if err != nil || token == nil || token.UID == "" {
		return identity.Subject{}, identity.ErrInvalidToken
	}
	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	return identity.Subject{
		Kind:        constants.SubjectKindAuthenticated,
		SubjectID:   token.UID,
		Email:       strings.ToLower(email),
		DisplayName: name,
		Provider:    constants.SignInMethodFederated,
	}, nil
}

// SignOut 撤销该用户的刷新令牌
func (p *Provider) SignOut(ctx context.Context, subject identity.Subject) error {
	if p.admin == nil || !subject.Authenticated() {
		return nil
	}
	if err := p.admin.RevokeRefreshTokens(ctx, subject.SubjectID); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
	}
	return nil
}

type toolkitAccount struct {
	uid         string
	email       string
	displayName string
	idToken     string
}

func (a toolkitAccount) subject(method string) identity.Subject {
	return identity.Subject{
		Kind:        constants.SubjectKindAuthenticated,
		SubjectID:   a.uid,
		Email:       strings.ToLower(a.email),
		DisplayName: a.displayName,
		Provider:    method,
	}
}

func (p *Provider) call(ctx context.Context, method string, payload map[string]interface{}) (toolkitAccount, error) {
	if p.apiKey == "" {
		return toolkitAccount{}, fmt.Errorf("%w: api key is not configured", identity.ErrProviderUnavailable)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return toolkitAccount{}, err
	}
	endpoint := fmt.Sprintf("%s/%s?key=%s", p.toolkitURL, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return toolkitAccount{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return toolkitAccount{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return toolkitAccount{}, fmt.Errorf("%w: %v", identity.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := errorCode(raw)
		logger.Debugw("firebase_toolkit_rejected", "method", method, "status", resp.StatusCode, "code", code)
		return toolkitAccount{}, mapErrorCode(code, resp.StatusCode)
	}

	result := gjson.ParseBytes(raw)
	account := toolkitAccount{
		uid:         result.Get("localId").String(),
		email:       result.Get("email").String(),
		displayName: result.Get("displayName").String(),
		idToken:     result.Get("idToken").String(),
	}
	if method != "accounts:update" && account.uid == "" {
		return toolkitAccount{}, fmt.Errorf("%w: response missing localId", identity.ErrProviderUnavailable)
	}
	return account, nil
}

// errorCode 取出 error.message 的错误码部分，例如 "WEAK_PASSWORD : ..." 取 WEAK_PASSWORD
func errorCode(raw []byte) string {
	message := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String())
	if i := strings.IndexAny(message, " :"); i > 0 {
		message = message[:i]
	}
	return message
}

func mapErrorCode(code string, status int) error {
	switch code {
	case "EMAIL_EXISTS":
		return identity.ErrEmailInUse
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return identity.ErrUserNotFound
	case "INVALID_PASSWORD":
		return identity.ErrWrongPassword
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "MISSING_PASSWORD", "USER_DISABLED":
		return identity.ErrBadCredentials
	case "WEAK_PASSWORD":
		return identity.ErrWeakPassword
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED":
		return identity.ErrInvalidToken
	}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return identity.ErrProviderUnavailable
	}
	return fmt.Errorf("%w: %s", identity.ErrBadCredentials, code)
}
