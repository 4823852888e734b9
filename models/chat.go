package models

import (
	"time"
)

// Chat 一次会话（对话线程）
type Chat struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"type:text"`
	Personality *string   `json:"personality" gorm:"type:text"` // 创建后不可修改
	UserID      *uint     `json:"user_id" gorm:"index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`

	Messages []Message `json:"-" gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}

// TableName 设置表名
func (Chat) TableName() string {
	return "chats"
}
