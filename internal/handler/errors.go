// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"docrag/internal/service"
	"docrag/internal/vectorstore"
	"docrag/pkg/llm"
)

// 统一的客户端错误信息。
const (
	msgInvalidBody   = "Invalid request body"
	msgQueryRequired = "Query not provided"
)

// statusFor 把服务层错误映射到 HTTP 状态码。
func statusFor(err error) int {
	var upstream *llm.UpstreamError
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.Is(err, vectorstore.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage 返回给客户端的错误描述。
func errorMessage(err error) string {
	if errors.Is(err, service.ErrEmptyQuery) {
		return msgQueryRequired
	}
	return err.Error()
}
