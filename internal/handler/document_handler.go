package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docrag/internal/service"
	"docrag/internal/vectorstore"
	"docrag/pkg/log"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// ListRecords 列出向量存储中的记录，可按文档名过滤。
func (h *DocumentHandler) ListRecords(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 limit 参数"})
		return
	}

	records, err := h.docService.ListRecords(c.Request.Context(), vectorstore.Filter{Name: c.Query("name"), Limit: limit})
	if err != nil {
		log.Error("ListRecords: failed", err)
		c.JSON(statusFor(err), gin.H{"error": "获取记录列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    records,
	})
}

// ListDocuments 列出文档台账，可按状态过滤。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.docService.ListIndexed(c.Request.Context(), c.Query("status"))
	if err != nil {
		if errors.Is(err, service.ErrLedgerDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			return
		}
		log.Error("ListDocuments: failed", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    docs,
	})
}

// Upload 接收 multipart 表单中的 file 字段并写入对象存储。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少文件"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: open form file failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取文件失败"})
		return
	}
	defer file.Close()

	res, err := h.docService.Upload(c.Request.Context(), fileHeader.Filename, file, fileHeader.Size)
	switch {
	case errors.Is(err, service.ErrUploadDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnsupportedFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Error("Upload: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "上传失败"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "上传成功",
			"data":    res,
		})
	}
}
