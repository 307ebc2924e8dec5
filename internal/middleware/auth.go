// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/pkg/token"
)

// ContextSubject 是鉴权通过后写入 gin 上下文的 token 主体。
const ContextSubject = "subject"

// AdminAuth 创建一个 Gin 中间件，校验管理接口的 Bearer token。
// jwtManager 未配置密钥时管理接口整体关闭，一律返回 403。
func AdminAuth(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !jwtManager.Enabled() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "管理接口未启用，请配置 jwt.secret"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}
		if claims.Role != token.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "权限不足，需要管理员权限"})
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Next()
	}
}
