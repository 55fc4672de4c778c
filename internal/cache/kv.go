package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisDisabled Redis 未启用
var ErrRedisDisabled = errors.New("redis is disabled")

// SessionKV 基于 Redis 的会话键值槽，每次写入刷新过期时间
type SessionKV struct {
	ttl time.Duration
}

// NewSessionKV 创建 Redis 会话键值槽
func NewSessionKV(ttl time.Duration) (*SessionKV, error) {
	if !Enabled() {
		return nil, ErrRedisDisabled
	}
	return &SessionKV{ttl: ttl}, nil
}

// Get 读取键值
func (s *SessionKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := redisClient.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set 写入键值
func (s *SessionKV) Set(ctx context.Context, key string, value []byte) error {
	return redisClient.Set(ctx, sessionKey(key), value, s.ttl).Err()
}

// Delete 删除键值
func (s *SessionKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	built := make([]string, 0, len(keys))
	for _, key := range keys {
		built = append(built, sessionKey(key))
	}
	return redisClient.Del(ctx, built...).Err()
}

func sessionKey(key string) string {
	return buildKey(fmt.Sprintf("kv:%s", key))
}
