package service

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey 未配置模型服务密钥
var ErrMissingAPIKey = errors.New("deepseek api key is not configured")

// UpstreamError 模型服务调用失败：网络错误、非 2xx 响应或响应无法解析
type UpstreamError struct {
	StatusCode int    // 未收到响应时为 0
	Body       string // 上游返回的原始内容，已截断
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("deepseek upstream %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("deepseek upstream %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("deepseek upstream: %v", e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
