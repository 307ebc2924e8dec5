package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docrag/internal/middleware"
	"docrag/internal/service"
	"docrag/pkg/token"
)

// Services 汇总路由需要的业务服务。
type Services struct {
	RAG       service.RAGService
	Documents service.DocumentService
	Ingest    service.IngestService
	JWT       *token.JWTManager
}

// NewRouter 创建 gin 引擎并注册全部路由。
func NewRouter(mode string, s Services) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS())

	queryHandler := NewQueryHandler(s.RAG)
	chatHandler := NewChatHandler(s.RAG)
	searchHandler := NewSearchHandler(s.RAG)
	docHandler := NewDocumentHandler(s.Documents)
	ingestHandler := NewIngestHandler(s.Ingest)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/generate", queryHandler.Generate)
	r.GET("/chat", chatHandler.Handle)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/search", searchHandler.Search)

		// 管理接口需要 Bearer token，未配置 jwt.secret 时一律 403
		admin := apiV1.Group("")
		admin.Use(middleware.AdminAuth(s.JWT))
		{
			admin.GET("/records", docHandler.ListRecords)
			admin.GET("/documents", docHandler.ListDocuments)
			admin.POST("/documents/upload", docHandler.Upload)
			admin.POST("/ingest", ingestHandler.Submit)
			admin.GET("/ingest/status", ingestHandler.Status)
		}
	}
	return r
}
