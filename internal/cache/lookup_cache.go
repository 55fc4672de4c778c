package cache

import (
	"context"
	"fmt"
	"time"
)

// LookupCache 外部查询结果缓存（邮编、商品目录），按命名空间区分键
type LookupCache struct {
	namespace string
	ttl       time.Duration
}

// NewLookupCache 创建查询缓存，ttl<=0 时不写入缓存
func NewLookupCache(namespace string, ttl time.Duration) *LookupCache {
	return &LookupCache{namespace: namespace, ttl: ttl}
}

// Load 读取缓存结果
func (l *LookupCache) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	return GetJSON(ctx, l.key(key), dest)
}

// Store 写入缓存结果
func (l *LookupCache) Store(ctx context.Context, key string, value interface{}) error {
	if l.ttl <= 0 {
		return nil
	}
	return SetJSON(ctx, l.key(key), value, l.ttl)
}

func (l *LookupCache) key(key string) string {
	return fmt.Sprintf("%s:%s", l.namespace, key)
}
