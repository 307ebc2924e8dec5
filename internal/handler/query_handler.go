package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/internal/model"
	"docrag/internal/service"
	"docrag/pkg/log"
)

// QueryHandler 处理 POST /generate。
type QueryHandler struct {
	ragService service.RAGService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(ragService service.RAGService) *QueryHandler {
	return &QueryHandler{ragService: ragService}
}

// Generate 检索上下文并返回生成的答案。
func (h *QueryHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: msgInvalidBody})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: msgQueryRequired})
		return
	}

	answer, err := h.ragService.Answer(c.Request.Context(), req.Query)
	if err != nil {
		log.Errorf("[QueryHandler] 生成答案失败: %v", err)
		c.JSON(statusFor(err), model.ErrorResponse{Error: errorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, model.GenerateResponse{Response: answer})
}
