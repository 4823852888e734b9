package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"drxchat/models"
)

// sequence 自增 ID 分配器，由存储实例持有
type sequence struct {
	next uint
}

func (s *sequence) take() uint {
	s.next++
	return s.next
}

// monotonicClock 保证连续取到的时间不回退
type monotonicClock struct {
	now  func() time.Time
	last time.Time
}

func (c *monotonicClock) tick() time.Time {
	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// MemoryStorage 内存存储，未配置数据库时使用
type MemoryStorage struct {
	mu       sync.RWMutex
	chats    map[uint]*models.Chat
	messages map[uint]*models.Message
	chatSeq  sequence
	msgSeq   sequence
	clock    monotonicClock
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage() *MemoryStorage {
	return newMemoryStorageWithClock(time.Now)
}

func newMemoryStorageWithClock(now func() time.Time) *MemoryStorage {
	return &MemoryStorage{
		chats:    make(map[uint]*models.Chat),
		messages: make(map[uint]*models.Message),
		clock:    monotonicClock{now: now},
	}
}

func (s *MemoryStorage) CreateChat(_ context.Context, in ChatInput) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := &models.Chat{
		ID:          s.chatSeq.take(),
		Title:       in.Title,
		Personality: cloneString(in.Personality),
		UserID:      cloneUint(in.UserID),
		CreatedAt:   s.clock.tick(),
	}
	s.chats[chat.ID] = chat
	out := copyChat(chat)
	return &out, nil
}

func (s *MemoryStorage) GetChat(_ context.Context, id uint) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyChat(chat)
	return &out, nil
}

func (s *MemoryStorage) GetChatsByUser(_ context.Context, userID uint) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]models.Chat, 0)
	for _, chat := range s.chats {
		if chat.UserID != nil && *chat.UserID == userID {
			chats = append(chats, copyChat(chat))
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		if !chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].CreatedAt.After(chats[j].CreatedAt)
		}
		return chats[i].ID > chats[j].ID
	})
	return chats, nil
}

func (s *MemoryStorage) CreateMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyMessage(msg)
	stored.ID = s.msgSeq.take()
	stored.CreatedAt = s.clock.tick()
	s.messages[stored.ID] = &stored

	out := copyMessage(&stored)
	return &out, nil
}

func (s *MemoryStorage) GetMessagesByChat(_ context.Context, chatID uint) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]models.Message, 0)
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			messages = append(messages, copyMessage(msg))
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

func (s *MemoryStorage) ClearMessages(_ context.Context, chatID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, msg := range s.messages {
		if msg.ChatID == chatID {
			delete(s.messages, id)
		}
	}
	return nil
}

func (s *MemoryStorage) UpdateChatTitle(_ context.Context, chatID uint, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat, ok := s.chats[chatID]; ok {
		chat.Title = title
	}
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func copyChat(c *models.Chat) models.Chat {
	out := *c
	out.Personality = cloneString(c.Personality)
	out.UserID = cloneUint(c.UserID)
	out.Messages = nil
	return out
}

func copyMessage(m *models.Message) models.Message {
	out := *m
	out.ModelUsed = cloneString(m.ModelUsed)
	out.Reasoning = cloneString(m.Reasoning)
	if m.ExecutionTime != nil {
		v := *m.ExecutionTime
		out.ExecutionTime = &v
	}
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUint(p *uint) *uint {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
