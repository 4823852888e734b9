package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSender_Valid(t *testing.T) {
	assert.True(t, SenderUser.Valid())
	assert.True(t, SenderAssistant.Valid())
	assert.False(t, Sender("system").Valid())
	assert.False(t, Sender("").Valid())
}

func TestMessage_Validate(t *testing.T) {
	// 合法的用户消息与助手消息
	assert.NoError(t, NewUserMessage(1, "مرحبا").Validate())
	assert.NoError(t, NewAssistantMessage(1, "hi", "deepseek-chat", 1500*time.Millisecond).Validate())

	// 空内容
	assert.ErrorIs(t, NewUserMessage(1, "   ").Validate(), ErrInvalidMessage)

	// 缺少 chat id
	assert.ErrorIs(t, NewUserMessage(0, "hello").Validate(), ErrInvalidMessage)

	// 非法发送方
	m := NewUserMessage(1, "hello")
	m.Sender = "system"
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)

	// 用户消息不能携带模型信息
	model := "deepseek-chat"
	m = NewUserMessage(1, "hello")
	m.ModelUsed = &model
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)

	// 助手消息必须携带耗时
	a := NewAssistantMessage(1, "hi", "deepseek-chat", time.Second)
	a.ExecutionTime = nil
	assert.ErrorIs(t, a.Validate(), ErrInvalidMessage)

	// 用户消息不能携带推理内容
	trace := "thinking"
	m = NewUserMessage(1, "hello")
	m.Reasoning = &trace
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)

	var nilMsg *Message
	assert.ErrorIs(t, nilMsg.Validate(), ErrInvalidMessage)
}

func TestNewAssistantMessage_ExecutionTimeMillis(t *testing.T) {
	m := NewAssistantMessage(7, "ok", "deepseek-reasoner", 2345*time.Millisecond)
	if assert.NotNil(t, m.ExecutionTime) {
		assert.Equal(t, int64(2345), *m.ExecutionTime)
	}
	if assert.NotNil(t, m.ModelUsed) {
		assert.Equal(t, "deepseek-reasoner", *m.ModelUsed)
	}
	assert.Equal(t, uint(7), m.ChatID)
	assert.Equal(t, SenderAssistant, m.Sender)
}
