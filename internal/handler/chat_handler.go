package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"docrag/internal/service"
	"docrag/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	ragService service.RAGService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(ragService service.RAGService) *ChatHandler {
	return &ChatHandler{ragService: ragService}
}

// chatMessage 允许客户端发送 {"query": "..."}，否则整条文本即为查询。
type chatMessage struct {
	Query string `json:"query"`
}

// Handle 处理一个传入的 WebSocket 连接。每条文本消息是一次查询，
// 回复若干 {"chunk": ...} 帧，最后是完成通知。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立: %s", c.ClientIP())
	ctx := c.Request.Context()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		query := parseQuery(message)
		if strings.TrimSpace(query) == "" {
			if writeJSON(conn, gin.H{"error": msgQueryRequired}) != nil {
				return
			}
			continue
		}

		err = h.ragService.Stream(ctx, query, func(fragment string) error {
			return writeJSON(conn, gin.H{"chunk": fragment})
		})
		if err != nil {
			log.Errorf("处理流式响应失败: %v", err)
			if writeJSON(conn, gin.H{"error": errorMessage(err)}) != nil {
				return
			}
		}
		if sendCompletion(conn) != nil {
			return
		}
	}
}

func parseQuery(message []byte) string {
	if len(message) > 0 && message[0] == '{' {
		var m chatMessage
		if err := json.Unmarshal(message, &m); err == nil {
			return m.Query
		}
	}
	return string(message)
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(conn *websocket.Conn) error {
	return writeJSON(conn, gin.H{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
	})
}
