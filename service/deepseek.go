// Package service 封装对外部模型服务的调用。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"drxchat/config"
	"drxchat/models"
	"drxchat/prompt"
)

// 错误响应体最多保留的字节数
const maxErrorBody = 4 << 10

// Completion 一次补全的结构化结果
type Completion struct {
	Text      string       // 去掉推理段落后的可见回复
	Reasoning string       // 推理过程，可能为空
	Model     string       // 实际使用的模型
	Usage     openai.Usage // token 统计，上游未返回时为零值
}

// chatRequest 非流式 chat/completions 请求体
type chatRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Temperature float32                        `json:"temperature"`
	MaxTokens   int                            `json:"max_tokens"`
	Stream      bool                           `json:"stream"`
}

// DeepSeekClient DeepSeek chat/completions 客户端
type DeepSeekClient struct {
	cfg        config.DeepSeekConfig
	httpClient *http.Client
}

// NewDeepSeekClient 创建客户端，httpClient 为空时按配置的超时新建
func NewDeepSeekClient(cfg config.DeepSeekConfig, httpClient *http.Client) *DeepSeekClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &DeepSeekClient{cfg: cfg, httpClient: httpClient}
}

// ModelFor 根据是否深度思考选择模型
func (c *DeepSeekClient) ModelFor(deepThink bool) string {
	if deepThink {
		return c.cfg.ReasonerModel
	}
	return c.cfg.ChatModel
}

// BuildMessages 组装发送给模型的对话：
// 历史中末尾那条已保存的用户消息会被增强后的内容替代，不附加 system 消息
func BuildMessages(history []models.Message, enriched string) []openai.ChatCompletionMessage {
	if n := len(history); n > 0 && history[n-1].Sender == models.SenderUser {
		history = history[:n-1]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Sender == models.SenderAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: enriched,
	})
}

// Complete 发起一次非流式补全
func (c *DeepSeekClient) Complete(ctx context.Context, history []models.Message, enriched string, deepThink bool) (*Completion, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	model := c.ModelFor(deepThink)
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    BuildMessages(history, enriched),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: errors.New("response has no choices")}
	}

	msg := out.Choices[0].Message
	text, reasoning := prompt.SplitReasoning(msg.Content)
	if msg.ReasoningContent != "" {
		reasoning = strings.TrimSpace(msg.ReasoningContent)
	}
	if strings.TrimSpace(text) == "" {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: errors.New("empty reply")}
	}
	return &Completion{
		Text:      text,
		Reasoning: reasoning,
		Model:     model,
		Usage:     out.Usage,
	}, nil
}
