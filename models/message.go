package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sender 消息发送方
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Valid 是否为合法的发送方
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// ErrInvalidMessage 消息字段不满足约束
var ErrInvalidMessage = errors.New("invalid message")

// Message 会话中的一条消息，创建后不可修改
type Message struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Content       string    `json:"content" gorm:"type:text;not null"`
	Sender        Sender    `json:"sender" gorm:"size:16;not null"`
	ModelUsed     *string   `json:"model_used" gorm:"size:64"`
	ExecutionTime *int64    `json:"execution_time"` // 毫秒
	Reasoning     *string   `json:"reasoning,omitempty" gorm:"type:text"`
	ChatID        uint      `json:"chat_id" gorm:"index;not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

// TableName 设置表名
func (Message) TableName() string {
	return "messages"
}

// NewUserMessage 构造用户消息
func NewUserMessage(chatID uint, content string) *Message {
	return &Message{
		ChatID:  chatID,
		Content: content,
		Sender:  SenderUser,
	}
}

// NewAssistantMessage 构造助手消息，模型与耗时必填
func NewAssistantMessage(chatID uint, content, model string, elapsed time.Duration) *Message {
	ms := elapsed.Milliseconds()
	return &Message{
		ChatID:        chatID,
		Content:       content,
		Sender:        SenderAssistant,
		ModelUsed:     &model,
		ExecutionTime: &ms,
	}
}

// Validate 校验消息不变量：内容非空、发送方合法、模型与耗时仅助手消息携带
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}
	if m.ChatID == 0 {
		return fmt.Errorf("%w: chat id is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidMessage)
	}
	if !m.Sender.Valid() {
		return fmt.Errorf("%w: unknown sender %q", ErrInvalidMessage, m.Sender)
	}

	isAssistant := m.Sender == SenderAssistant
	if isAssistant != (m.ModelUsed != nil) || isAssistant != (m.ExecutionTime != nil) {
		return fmt.Errorf("%w: model_used and execution_time are only set on assistant messages", ErrInvalidMessage)
	}
	if !isAssistant && m.Reasoning != nil {
		return fmt.Errorf("%w: reasoning is only set on assistant messages", ErrInvalidMessage)
	}
	return nil
}
