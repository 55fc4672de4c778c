package models

import "time"

// LocalAccount 本地身份提供方账号
type LocalAccount struct {
	ID           uint       `gorm:"primarykey" json:"id"`                               // 主键
	UID          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"uid"`   // 对外主体标识
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"` // 邮箱
	DisplayName  string     `gorm:"type:varchar(255)" json:"display_name"`              // 显示名
	PasswordHash string     `gorm:"type:varchar(255)" json:"-"`                         // bcrypt 哈希
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`                            // 最近登录时间
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`                            // 更新时间
}

// TableName 指定表名
func (LocalAccount) TableName() string {
	return "local_accounts"
}
