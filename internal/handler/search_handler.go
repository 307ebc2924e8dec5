package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/internal/model"
	"docrag/internal/service"
	"docrag/pkg/log"
)

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	ragService service.RAGService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(ragService service.RAGService) *SearchHandler {
	return &SearchHandler{ragService: ragService}
}

// Search 返回与 query 最相似的记录，k 缺省时使用配置值。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)

	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgQueryRequired})
		return
	}
	k, err := strconv.Atoi(c.DefaultQuery("k", "0"))
	if err != nil || k < 0 {
		k = 0
	}

	results, err := h.ragService.Retrieve(c.Request.Context(), query, k)
	if err != nil {
		log.Errorf("[SearchHandler] 检索失败, error: %v", err)
		c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    model.SearchResponse{Query: query, Results: results},
	})
}
