package models

import "time"

// KVEntry 会话键值槽，保存购物车镜像与会话主体
type KVEntry struct {
	Key       string    `gorm:"primaryKey;type:varchar(191)" json:"key"` // 完整键（<session>:<name>）
	Value     string    `gorm:"type:text;not null" json:"value"`         // JSON 值
	CreatedAt time.Time `json:"created_at"`                              // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                 // 更新时间
}

// TableName 指定表名
func (KVEntry) TableName() string {
	return "session_kv_entries"
}
