package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/models"

	"gorm.io/gorm"
)

// LocalAccountRepository 本地账号数据访问接口
type LocalAccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.LocalAccount, error)
	GetByUID(ctx context.Context, uid string) (*models.LocalAccount, error)
	Create(ctx context.Context, account *models.LocalAccount) error
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

// GormLocalAccountRepository GORM 实现
type GormLocalAccountRepository struct {
	db *gorm.DB
}

// NewLocalAccountRepository 创建本地账号仓库
func NewLocalAccountRepository(db *gorm.DB) *GormLocalAccountRepository {
	return &GormLocalAccountRepository{db: db}
}

// GetByEmail 根据邮箱获取账号
func (r *GormLocalAccountRepository) GetByEmail(ctx context.Context, email string) (*models.LocalAccount, error) {
	var account models.LocalAccount
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Where("email = ?", normalized).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByUID 根据主体标识获取账号
func (r *GormLocalAccountRepository) GetByUID(ctx context.Context, uid string) (*models.LocalAccount, error) {
	var account models.LocalAccount
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create 创建账号
func (r *GormLocalAccountRepository) Create(ctx context.Context, account *models.LocalAccount) error {
	if account == nil {
		return nil
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	return r.db.WithContext(ctx).Create(account).Error
}

// TouchLogin 更新最近登录时间
func (r *GormLocalAccountRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.LocalAccount{}).Where("id = ?", id).Update("last_login_at", at).Error
}
