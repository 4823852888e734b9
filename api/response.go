package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drxchat/models"
	"drxchat/service"
	"drxchat/storage"
)

// Response 错误响应结构，成功时直接返回资源本身
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MessageResponse 仅包含提示信息的成功响应
type MessageResponse struct {
	Message string `json:"message"`
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 500 错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// respondError 按错误类型映射状态码并记录日志，每个请求只写一次错误响应
func respondError(c *gin.Context, log *zap.Logger, err error, fallback string) {
	_ = c.Error(err)

	var (
		storeErr    *storage.Error
		upstreamErr *service.UpstreamError
	)
	switch {
	case errors.Is(err, models.ErrInvalidMessage):
		log.Warn(fallback, zap.Error(err))
		BadRequest(c, SafeErrorMessage(err, fallback))
	case errors.Is(err, storage.ErrNotFound):
		NotFound(c, fallback)
	case errors.Is(err, service.ErrMissingAPIKey):
		log.Error("模型服务未配置密钥", zap.Error(err))
		InternalError(c, fallback)
	case errors.As(err, &upstreamErr):
		log.Error("模型服务调用失败",
			zap.Int("upstream_status", upstreamErr.StatusCode),
			zap.String("upstream_body", upstreamErr.Body),
			zap.Error(err))
		InternalError(c, SafeErrorMessage(err, fallback))
	case errors.As(err, &storeErr):
		log.Error("存储操作失败", zap.String("op", storeErr.Op), zap.Error(err))
		InternalError(c, SafeErrorMessage(err, fallback))
	default:
		log.Error(fallback, zap.Error(err))
		InternalError(c, SafeErrorMessage(err, fallback))
	}
}
