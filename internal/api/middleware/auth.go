package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/ndrop/pkg/response"
)

const (
	// CtxUserID gin context 中当前用户 id 的键
	CtxUserID = "user_id"
	// CtxIsAdmin 管理员标记
	CtxIsAdmin = "is_admin"
)

// Auth 校验 Bearer JWT 并注入当前用户
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "authorization token is required")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "authorization header must be Bearer {token}")
			return
		}
		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Unauthorized(c, "invalid token claims")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			response.Unauthorized(c, "invalid token subject")
			return
		}
		admin, _ := claims["admin"].(bool)
		c.Set(CtxUserID, sub)
		c.Set(CtxIsAdmin, admin)
		c.Next()
	}
}

// RequireAdmin 仅管理员可用的路由
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(CtxIsAdmin) {
			response.Forbidden(c, "administrator privileges required")
			return
		}
		c.Next()
	}
}

// CurrentUserID 读取注入的当前用户 id
func CurrentUserID(c *gin.Context) string { return c.GetString(CtxUserID) }
