package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docrag/internal/middleware"
	"docrag/internal/service"
	"docrag/pkg/log"
)

// IngestHandler 负责提交导入任务和查询进度。
type IngestHandler struct {
	ingestService service.IngestService
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(ingestService service.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// Submit 提交一个导入任务。请求体可省略，此时使用默认来源与目录。
func (h *IngestHandler) Submit(c *gin.Context) {
	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}

	task, err := h.ingestService.Submit(c.Request.Context(), req, c.GetString(middleware.ContextSubject))
	if err != nil {
		if errors.Is(err, service.ErrUnknownSource) || errors.Is(err, service.ErrInvalidTask) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("Submit: dispatch ingest task failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "提交导入任务失败"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "导入任务已提交",
		"data":    task,
	})
}

// Status 返回最近一次导入任务的状态。Kafka 模式下仅反映本进程消费的任务。
func (h *IngestHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.ingestService.Status(),
	})
}
