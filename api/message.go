package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drxchat/config"
	"drxchat/middleware"
	"drxchat/models"
	"drxchat/prompt"
	"drxchat/service"
	"drxchat/storage"
)

const (
	defaultTitleLength = 50
	ellipsis           = "..."
)

// Completer 模型补全能力
type Completer interface {
	Complete(ctx context.Context, history []models.Message, enriched string, deepThink bool) (*service.Completion, error)
}

// MessageHandler 消息处理器，负责一次完整的问答流程
type MessageHandler struct {
	store     storage.Storage
	completer Completer
	cfg       *config.Config
	log       *zap.Logger
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(store storage.Storage, completer Completer, cfg *config.Config, log *zap.Logger) *MessageHandler {
	return &MessageHandler{store: store, completer: completer, cfg: cfg, log: log}
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content      string `json:"content" binding:"required,min=1" example:"2+2=?"`
	UseDeepThink bool   `json:"useDeepThink" example:"false"`
}

// SendMessageResponse 发送消息响应
type SendMessageResponse struct {
	UserMessage *models.Message `json:"userMessage"`
	AIMessage   *models.Message `json:"aiMessage"`
}

// List 获取会话消息，按时间正序
// @Summary 会话消息列表
// @Tags 消息
// @Produce json
// @Param chatId path int true "会话ID"
// @Success 200 {array} models.Message
// @Failure 400 {object} Response "会话ID无效"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/chats/{chatId}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	messages, err := h.store.GetMessagesByChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, middleware.GetLogger(c, h.log), err, "Failed to fetch messages")
		return
	}
	c.JSON(200, messages)
}

// Send 发送消息并获取 AI 回复
// 用户消息先落库；之后任一步骤失败都只返回错误，已写入的数据不回滚
// @Summary 发送消息
// @Description 保存用户消息，调用 DeepSeek 生成回复并保存；会话首条消息会用于生成标题
// @Tags 消息
// @Accept json
// @Produce json
// @Param chatId path int true "会话ID"
// @Param request body SendMessageRequest true "消息内容"
// @Success 200 {object} SendMessageResponse
// @Failure 400 {object} Response "参数错误"
// @Failure 500 {object} Response "发送失败"
// @Router /api/chats/{chatId}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "Invalid message data"))
		return
	}

	ctx := c.Request.Context()
	log := middleware.GetLogger(c, h.log).With(zap.Uint("chat_id", chatID))

	userMessage, err := h.store.CreateMessage(ctx, models.NewUserMessage(chatID, req.Content))
	if err != nil {
		respondError(c, log, err, "Failed to send message")
		return
	}

	history, err := h.store.GetMessagesByChat(ctx, chatID)
	if err != nil {
		respondError(c, log, err, "Failed to send message")
		return
	}

	enriched := prompt.Enrich(req.Content, req.UseDeepThink)
	start := time.Now()
	completion, err := h.completer.Complete(ctx, history, enriched, req.UseDeepThink)
	elapsed := time.Since(start)
	if err != nil {
		respondError(c, log, err, "Failed to send message")
		return
	}

	reply := models.NewAssistantMessage(chatID, completion.Text, completion.Model, elapsed)
	if h.cfg.DeepSeek.KeepReasoning && completion.Reasoning != "" {
		reasoning := completion.Reasoning
		reply.Reasoning = &reasoning
	}
	aiMessage, err := h.store.CreateMessage(ctx, reply)
	if err != nil {
		respondError(c, log, err, "Failed to send message")
		return
	}

	// 会话的第一条消息用作标题
	if len(history) <= 1 {
		title := DeriveTitle(req.Content, h.cfg.Chat.TitleMaxLength)
		if err := h.store.UpdateChatTitle(ctx, chatID, title); err != nil {
			respondError(c, log, err, "Failed to send message")
			return
		}
	}

	log.Info("消息已回复",
		zap.String("model", completion.Model),
		zap.Duration("elapsed", elapsed),
		zap.Int("total_tokens", completion.Usage.TotalTokens))

	c.JSON(200, SendMessageResponse{
		UserMessage: userMessage,
		AIMessage:   aiMessage,
	})
}

// Clear 清空会话消息
// @Summary 清空会话消息
// @Tags 消息
// @Produce json
// @Param chatId path int true "会话ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} Response "会话ID无效"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/chats/{chatId}/messages [delete]
func (h *MessageHandler) Clear(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	if err := h.store.ClearMessages(c.Request.Context(), chatID); err != nil {
		respondError(c, middleware.GetLogger(c, h.log), err, "Failed to clear chat history")
		return
	}
	c.JSON(200, MessageResponse{Message: "Chat history cleared"})
}

// DeriveTitle 由首条消息生成标题，超长时截断并加省略号，按字符计数
func DeriveTitle(content string, maxLen int) string {
	if maxLen <= len(ellipsis) {
		maxLen = defaultTitleLength
	}
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}
