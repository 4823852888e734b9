package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"drxchat/models"
)

// GormStorage 基于 gorm 的持久化存储
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage 创建持久化存储
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (s *GormStorage) CreateChat(ctx context.Context, in ChatInput) (*models.Chat, error) {
	chat := models.Chat{
		Title:       in.Title,
		Personality: in.Personality,
		UserID:      in.UserID,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&chat).Error; err != nil {
		return nil, wrap("create chat", err)
	}
	return &chat, nil
}

func (s *GormStorage) GetChat(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := s.db.WithContext(ctx).First(&chat, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get chat", err)
	}
	return &chat, nil
}

func (s *GormStorage) GetChatsByUser(ctx context.Context, userID uint) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&chats).Error
	if err != nil {
		return nil, wrap("list chats", err)
	}
	return chats, nil
}

func (s *GormStorage) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	created := *msg
	created.ID = 0
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, wrap("create message", err)
	}
	return &created, nil
}

func (s *GormStorage) GetMessagesByChat(ctx context.Context, chatID uint) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, wrap("list messages", err)
	}
	return messages, nil
}

func (s *GormStorage) ClearMessages(ctx context.Context, chatID uint) error {
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&models.Message{}).Error
	return wrap("clear messages", err)
}

func (s *GormStorage) UpdateChatTitle(ctx context.Context, chatID uint, title string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", chatID).
		Update("title", title).Error
	return wrap("update chat title", err)
}

// Close 关闭底层连接池
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrap("close", err)
	}
	return wrap("close", sqlDB.Close())
}
