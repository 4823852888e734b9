package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drxchat/middleware"
	"drxchat/storage"
)

// ChatHandler 会话处理器
type ChatHandler struct {
	store storage.Storage
	log   *zap.Logger
}

// NewChatHandler 创建会话处理器
func NewChatHandler(store storage.Storage, log *zap.Logger) *ChatHandler {
	return &ChatHandler{store: store, log: log}
}

// CreateChatRequest 创建会话请求
type CreateChatRequest struct {
	Title       string  `json:"title" binding:"required,min=1" example:"محادثة جديدة"`
	Personality *string `json:"personality" example:"dr.x AI Assistant"`
	UserID      *uint   `json:"userId" binding:"omitempty,min=1" example:"1"`
}

// Create 创建会话
// @Summary 创建会话
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body CreateChatRequest true "会话信息"
// @Success 200 {object} models.Chat
// @Failure 400 {object} Response "参数错误"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/chats [post]
func (h *ChatHandler) Create(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "Invalid chat data"))
		return
	}

	chat, err := h.store.CreateChat(c.Request.Context(), storage.ChatInput{
		Title:       req.Title,
		Personality: req.Personality,
		UserID:      req.UserID,
	})
	if err != nil {
		respondError(c, middleware.GetLogger(c, h.log), err, "Failed to create chat")
		return
	}
	c.JSON(200, chat)
}

// Get 获取会话
// @Summary 获取会话
// @Tags 会话
// @Produce json
// @Param chatId path int true "会话ID"
// @Success 200 {object} models.Chat
// @Failure 400 {object} Response "会话ID无效"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/chats/{chatId} [get]
func (h *ChatHandler) Get(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	chat, err := h.store.GetChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, middleware.GetLogger(c, h.log), err, "Chat not found")
		return
	}
	c.JSON(200, chat)
}

// ListByUser 获取用户的会话列表，按创建时间倒序
// @Summary 用户会话列表
// @Tags 会话
// @Produce json
// @Param userId query int true "用户ID"
// @Success 200 {array} models.Chat
// @Failure 400 {object} Response "用户ID无效"
// @Router /api/chats [get]
func (h *ChatHandler) ListByUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		BadRequest(c, "Invalid user id")
		return
	}

	chats, err := h.store.GetChatsByUser(c.Request.Context(), uint(userID))
	if err != nil {
		respondError(c, middleware.GetLogger(c, h.log), err, "Failed to fetch chats")
		return
	}
	c.JSON(200, chats)
}

// parseChatID 解析路径中的会话 ID，非正整数时直接返回 400
func parseChatID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("chatId"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "Invalid chat id")
		return 0, false
	}
	return uint(id), true
}
