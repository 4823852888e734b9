package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"drxchat/config"
	"drxchat/database"
	"drxchat/models"
)

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("not found")

// Error 底层存储操作失败（连接、约束等），不做重试
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// ChatInput 创建会话参数
type ChatInput struct {
	Title       string
	Personality *string
	UserID      *uint
}

// Storage 会话与消息的存储能力，持久化与内存两种实现行为一致
type Storage interface {
	CreateChat(ctx context.Context, in ChatInput) (*models.Chat, error)
	// GetChat 不存在时返回 ErrNotFound
	GetChat(ctx context.Context, id uint) (*models.Chat, error)
	// GetChatsByUser 按创建时间倒序
	GetChatsByUser(ctx context.Context, userID uint) ([]models.Chat, error)
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	// GetMessagesByChat 按创建时间正序，没有消息时返回空切片
	GetMessagesByChat(ctx context.Context, chatID uint) ([]models.Message, error)
	// ClearMessages 幂等
	ClearMessages(ctx context.Context, chatID uint) error
	// UpdateChatTitle 会话不存在时什么也不做
	UpdateChatTitle(ctx context.Context, chatID uint, title string) error
	Close() error
}

// New 根据配置选择存储实现：配置了数据库连接串时使用数据库，否则使用内存
func New(cfg *config.Config, log *zap.Logger) (Storage, error) {
	if !cfg.UseDatabase() {
		log.Warn("未配置 DATABASE_URL，使用内存存储，重启后数据将丢失")
		return NewMemoryStorage(), nil
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Info("数据库初始化成功", zap.String("dialect", db.Dialector.Name()))
	return NewGormStorage(db), nil
}
