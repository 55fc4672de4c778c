package repository

import (
	"context"
	"errors"
	"time"

	"github.com/musicfy-storefront/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRepository 会话键值槽数据访问接口
type KVRepository interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	PurgeUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormKVRepository GORM 实现
type GormKVRepository struct {
	db *gorm.DB
}

// NewKVRepository 创建键值槽仓库
func NewKVRepository(db *gorm.DB) *GormKVRepository {
	return &GormKVRepository{db: db}
}

// Get 读取键值，不存在时返回 found=false
func (r *GormKVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.KVEntry
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(entry.Value), true, nil
}

// Set 写入键值（存在则覆盖）
func (r *GormKVRepository) Set(ctx context.Context, key string, value []byte) error {
	entry := models.KVEntry{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// Delete 删除键值
func (r *GormKVRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("key IN ?", keys).Delete(&models.KVEntry{}).Error
}

// PurgeUpdatedBefore 清理长时间未更新的键值
func (r *GormKVRepository) PurgeUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.KVEntry{})
	return result.RowsAffected, result.Error
}
