package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"drxchat/config"
	"drxchat/database"
	"drxchat/models"
)

// 两种实现跑同一组用例，保证行为一致
func backends(t *testing.T) map[string]Storage {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), config.DatabaseConfig{
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)

	gs := NewGormStorage(db)
	t.Cleanup(func() { _ = gs.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"gorm":   gs,
	}
}

func strPtr(s string) *string { return &s }
func uintPtr(u uint) *uint    { return &u }

func TestStorage_CreateAndGetChat(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seen := map[uint]bool{}
			var last time.Time
			for i := 0; i < 5; i++ {
				chat, err := s.CreateChat(ctx, ChatInput{
					Title:       "محادثة جديدة",
					Personality: strPtr("dr.x AI Assistant"),
				})
				require.NoError(t, err)
				assert.NotZero(t, chat.ID)
				assert.False(t, seen[chat.ID], "id must be unique")
				seen[chat.ID] = true
				assert.False(t, chat.CreatedAt.Before(last), "created_at must not go backwards")
				last = chat.CreatedAt
			}

			created, err := s.CreateChat(ctx, ChatInput{Title: "hello", UserID: uintPtr(3)})
			require.NoError(t, err)

			got, err := s.GetChat(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "hello", got.Title)
			assert.Nil(t, got.Personality)
			if assert.NotNil(t, got.UserID) {
				assert.Equal(t, uint(3), *got.UserID)
			}
		})
	}
}

func TestStorage_GetChat_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			chat, err := s.GetChat(ctx, 999999)
			assert.Nil(t, chat)
			assert.ErrorIs(t, err, ErrNotFound)

			var se *Error
			assert.False(t, errors.As(err, &se), "missing chat is not a storage failure")
		})
	}
}

func TestStorage_GetChatsByUser(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first, err := s.CreateChat(ctx, ChatInput{Title: "first", UserID: uintPtr(1)})
			require.NoError(t, err)
			_, err = s.CreateChat(ctx, ChatInput{Title: "other user", UserID: uintPtr(2)})
			require.NoError(t, err)
			_, err = s.CreateChat(ctx, ChatInput{Title: "anonymous"})
			require.NoError(t, err)
			second, err := s.CreateChat(ctx, ChatInput{Title: "second", UserID: uintPtr(1)})
			require.NoError(t, err)

			chats, err := s.GetChatsByUser(ctx, 1)
			require.NoError(t, err)
			require.Len(t, chats, 2)
			// 最新的在前
			assert.Equal(t, second.ID, chats[0].ID)
			assert.Equal(t, first.ID, chats[1].ID)

			none, err := s.GetChatsByUser(ctx, 42)
			require.NoError(t, err)
			assert.NotNil(t, none)
			assert.Empty(t, none)
		})
	}
}

func TestStorage_MessagesRoundTripAndOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			chat, err := s.CreateChat(ctx, ChatInput{Title: "t"})
			require.NoError(t, err)
			other, err := s.CreateChat(ctx, ChatInput{Title: "o"})
			require.NoError(t, err)

			var ids []uint
			for i := 0; i < 6; i++ {
				var msg *models.Message
				if i%2 == 0 {
					msg = models.NewUserMessage(chat.ID, fmt.Sprintf("question %d", i))
				} else {
					msg = models.NewAssistantMessage(chat.ID, fmt.Sprintf("answer %d", i), "deepseek-chat", time.Duration(i)*time.Millisecond)
				}
				created, err := s.CreateMessage(ctx, msg)
				require.NoError(t, err)
				assert.NotZero(t, created.ID)
				ids = append(ids, created.ID)
			}
			_, err = s.CreateMessage(ctx, models.NewUserMessage(other.ID, "elsewhere"))
			require.NoError(t, err)

			messages, err := s.GetMessagesByChat(ctx, chat.ID)
			require.NoError(t, err)
			require.Len(t, messages, 6)
			for i, m := range messages {
				assert.Equal(t, ids[i], m.ID, "insertion order")
				if i > 0 {
					assert.False(t, m.CreatedAt.Before(messages[i-1].CreatedAt))
				}
				if i%2 == 0 {
					assert.Equal(t, models.SenderUser, m.Sender)
					assert.Equal(t, fmt.Sprintf("question %d", i), m.Content)
					assert.Nil(t, m.ModelUsed)
					assert.Nil(t, m.ExecutionTime)
				} else {
					assert.Equal(t, models.SenderAssistant, m.Sender)
					assert.Equal(t, fmt.Sprintf("answer %d", i), m.Content)
					require.NotNil(t, m.ModelUsed)
					assert.Equal(t, "deepseek-chat", *m.ModelUsed)
					require.NotNil(t, m.ExecutionTime)
					assert.Equal(t, int64(i), *m.ExecutionTime)
				}
			}
		})
	}
}

func TestStorage_GetMessagesByChat_Empty(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			messages, err := s.GetMessagesByChat(ctx, 12345)
			require.NoError(t, err)
			assert.NotNil(t, messages)
			assert.Empty(t, messages)
		})
	}
}

func TestStorage_CreateMessage_Invalid(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			chat, err := s.CreateChat(ctx, ChatInput{Title: "t"})
			require.NoError(t, err)

			bad := models.NewUserMessage(chat.ID, "hi")
			bad.Sender = "system"
			_, err = s.CreateMessage(ctx, bad)
			assert.ErrorIs(t, err, models.ErrInvalidMessage)

			messages, err := s.GetMessagesByChat(ctx, chat.ID)
			require.NoError(t, err)
			assert.Empty(t, messages)
		})
	}
}

func TestStorage_ClearMessagesIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			chat, err := s.CreateChat(ctx, ChatInput{Title: "t"})
			require.NoError(t, err)
			keep, err := s.CreateChat(ctx, ChatInput{Title: "k"})
			require.NoError(t, err)

			_, err = s.CreateMessage(ctx, models.NewUserMessage(chat.ID, "a"))
			require.NoError(t, err)
			_, err = s.CreateMessage(ctx, models.NewUserMessage(keep.ID, "b"))
			require.NoError(t, err)

			require.NoError(t, s.ClearMessages(ctx, chat.ID))
			require.NoError(t, s.ClearMessages(ctx, chat.ID))

			messages, err := s.GetMessagesByChat(ctx, chat.ID)
			require.NoError(t, err)
			assert.Empty(t, messages)

			kept, err := s.GetMessagesByChat(ctx, keep.ID)
			require.NoError(t, err)
			assert.Len(t, kept, 1)
		})
	}
}

func TestStorage_UpdateChatTitle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			chat, err := s.CreateChat(ctx, ChatInput{Title: "محادثة جديدة"})
			require.NoError(t, err)

			require.NoError(t, s.UpdateChatTitle(ctx, chat.ID, "2+2=?"))
			got, err := s.GetChat(ctx, chat.ID)
			require.NoError(t, err)
			assert.Equal(t, "2+2=?", got.Title)

			// 不存在的会话不报错
			assert.NoError(t, s.UpdateChatTitle(ctx, 999999, "nothing"))
		})
	}
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	chat, err := s.CreateChat(ctx, ChatInput{Title: "original"})
	require.NoError(t, err)
	chat.Title = "mutated by caller"

	got, err := s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)
}

func TestMemoryStorage_ClockNeverGoesBackwards(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second)}
	i := 0
	s := newMemoryStorageWithClock(func() time.Time {
		t := times[i]
		i++
		return t
	})

	a, err := s.CreateChat(ctx, ChatInput{Title: "a"})
	require.NoError(t, err)
	b, err := s.CreateChat(ctx, ChatInput{Title: "b"})
	require.NoError(t, err)
	c, err := s.CreateChat(ctx, ChatInput{Title: "c"})
	require.NoError(t, err)

	assert.Equal(t, base, a.CreatedAt)
	assert.Equal(t, base, b.CreatedAt)
	assert.Equal(t, base.Add(time.Second), c.CreatedAt)
}

func TestMemoryStorage_ConcurrentIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	chat, err := s.CreateChat(ctx, ChatInput{Title: "t"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan uint, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := s.CreateMessage(ctx, models.NewUserMessage(chat.ID, fmt.Sprintf("m%d", i)))
			if err == nil {
				ids <- m.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[uint]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func setupMockStorage(t *testing.T) (*GormStorage, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	t.Cleanup(func() { sqlDB.Close() })
	return NewGormStorage(gormDB), mock
}

func TestGormStorage_BackendErrorsAreWrapped(t *testing.T) {
	s, mock := setupMockStorage(t)
	ctx := context.Background()
	boom := errors.New("connection refused")

	mock.ExpectQuery("SELECT .* FROM `chats`").WillReturnError(boom)
	_, err := s.GetChat(ctx, 1)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "get chat", se.Op)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("SELECT .* FROM `messages`").WillReturnError(boom)
	_, err = s.GetMessagesByChat(ctx, 1)
	assert.ErrorAs(t, err, &se)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `messages`").WillReturnError(boom)
	mock.ExpectRollback()
	_, err = s.CreateMessage(ctx, models.NewUserMessage(1, "hello"))
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "create message", se.Op)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorage_GetChat_NoRows(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectQuery("SELECT .* FROM `chats`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "personality", "user_id", "created_at"}))

	_, err := s.GetChat(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorage_UpdateChatTitle(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `chats` SET `title`=\\? WHERE id = \\?").
		WithArgs("new title", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpdateChatTitle(context.Background(), 5, "new title"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_SelectsBackend(t *testing.T) {
	log := zaptest.NewLogger(t)

	s, err := New(&config.Config{}, log)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(&config.Config{Database: config.DatabaseConfig{URL: "sqlite::memory:", MaxIdleConns: 1, MaxOpenConns: 1, LogLevel: "silent"}}, log)
	require.NoError(t, err)
	assert.IsType(t, &GormStorage{}, s)
	assert.NoError(t, s.Close())
}
