package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 会话错误
var (
	ErrInvalidToken = errors.New("session: invalid token")
	ErrConfig       = errors.New("session: invalid configuration")
)

const defaultTTL = 30 * 24 * time.Hour

// Claims 会话令牌声明
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Session 浏览器会话：一个购物车、一个同步器、一个主体流
type Session struct {
	ID     string
	Store  *cart.Store
	Sync   *cart.Synchronizer
	Stream *identity.Stream

	lastSeen atomic.Int64
}

// Subject 当前主体
func (s *Session) Subject() identity.Subject {
	return s.Sync.Subject()
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// Options 会话注册表配置
type Options struct {
	Secret string
	TTL    time.Duration
	Cart   cart.Options
}

// Registry 会话注册表，进程重启后按需从键值槽重建会话
type Registry struct {
	kv     cart.KV
	remote cart.Remote
	secret []byte
	ttl    time.Duration
	cart   cart.Options
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry 创建会话注册表
func NewRegistry(kv cart.KV, remote cart.Remote, opts Options) (*Registry, error) {
	if kv == nil || remote == nil {
		return nil, fmt.Errorf("%w: kv and remote are required", ErrConfig)
	}
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrConfig)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{
		kv:       kv,
		remote:   remote,
		secret:   []byte(opts.Secret),
		ttl:      ttl,
		cart:     opts.Cart,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

// Create 创建匿名会话并签发令牌
func (r *Registry) Create(ctx context.Context) (*Session, string, time.Time, error) {
	id := uuid.NewString()
	sess, err := r.build(ctx, id, false)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, expiresAt, err := r.IssueToken(id)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	logger.Session(id).Infow("session_created")
	return sess, token, expiresAt, nil
}

// IssueToken 为会话 ID 签发令牌
func (r *Registry) IssueToken(sessionID string) (string, time.Time, error) {
	now := r.now()
	expiresAt := now.Add(r.ttl)
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseToken 校验令牌并返回会话 ID
func (r *Registry) ParseToken(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}

// Resolve 根据令牌取得会话，内存中没有时从键值槽重建
func (r *Registry) Resolve(ctx context.Context, token string) (*Session, error) {
	id, err := r.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return r.build(ctx, id, true)
}

// SetSubject 切换会话主体，完成购物车对账后持久化并广播
func (r *Registry) SetSubject(ctx context.Context, sess *Session, subject identity.Subject) error {
	transitionErr := sess.Sync.Transition(ctx, subject)

	current := sess.Sync.Subject()
	if err := r.persistSubject(context.WithoutCancel(ctx), sess.ID, current); err != nil {
		logger.Session(sess.ID).Errorw("session_subject_persist_failed", "error", err)
		if transitionErr == nil {
			transitionErr = err
		}
	}
	sess.Stream.Publish(current)
	return transitionErr
}

// Evict 驱逐空闲会话，状态仍保留在键值槽中
func (r *Registry) Evict(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-idle).UnixNano()

	r.mu.Lock()
	var evicted []*Session
	for id, sess := range r.sessions {
		if sess.lastSeen.Load() < cutoff {
			evicted = append(evicted, sess)
			delete(r.sessions, id)
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, sess := range evicted {
		sess.Stream.Close()
	}
	metrics.SetActiveSessions(remaining)
	if len(evicted) > 0 {
		logger.Infow("session_evicted", "count", len(evicted), "remaining", remaining)
	}
	return len(evicted)
}

// Len 内存中会话数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) build(ctx context.Context, id string, restore bool) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[id]; ok {
		sess.touch(r.now())
		return sess, nil
	}

	store := cart.NewStore(r.kv, id)
	subject := identity.Anonymous()
	if restore {
		if err := store.Load(ctx); err != nil {
			return nil, err
		}
		loaded, err := r.loadSubject(ctx, id)
		if err != nil {
			return nil, err
		}
		subject = loaded
	}

	sess := &Session{
		ID:     id,
		Store:  store,
		Sync:   cart.NewSynchronizer(store, r.remote, subject, r.cart),
		Stream: identity.NewStream(subject),
	}
	sess.touch(r.now())
	r.sessions[id] = sess
	metrics.SetActiveSessions(len(r.sessions))
	if restore {
		logger.Session(id).Debugw("session_restored", "authenticated", subject.Authenticated(), "lines", len(store.Lines()))
	}
	return sess, nil
}

func (r *Registry) loadSubject(ctx context.Context, id string) (identity.Subject, error) {
	raw, found, err := r.kv.Get(ctx, subjectKey(id))
	if err != nil {
		return identity.Subject{}, err
	}
	if !found {
		return identity.Anonymous(), nil
	}
	var subject identity.Subject
	if err := json.Unmarshal(raw, &subject); err != nil {
		logger.Session(id).Warnw("session_subject_corrupted", "error", err)
		return identity.Anonymous(), nil
	}
	return subject.Normalize(), nil
}

func (r *Registry) persistSubject(ctx context.Context, id string, subject identity.Subject) error {
	if !subject.Authenticated() {
		return r.kv.Delete(ctx, subjectKey(id))
	}
	payload, err := json.Marshal(subject)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, subjectKey(id), payload)
}

func subjectKey(id string) string {
	return id + ":" + constants.StorageKeySubject
}
