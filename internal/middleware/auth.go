package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// 认证请求头
const (
	HeaderUserID  = "X-User-ID"
	HeaderAuthKey = "X-Auth-Key"
)

// Authenticator 按用户 ID 和会话 key 校验身份
type Authenticator interface {
	Authenticate(ctx context.Context, userID, key string) (*model.User, error)
}

// Auth 可选认证：凭据有效时写入当前用户，否则按匿名继续
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		key := c.GetHeader(HeaderAuthKey)
		if userID != "" && key != "" {
			if user, err := a.Authenticate(c.Request.Context(), userID, key); err == nil {
				c.Set("user", user)
				c.Set("user_id", userID)
			}
		}
		c.Next()
	}
}

// RequireAuth 必须认证，失败返回 401 且不执行后续处理器
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		user, err := a.Authenticate(c.Request.Context(), userID, c.GetHeader(HeaderAuthKey))
		if err != nil {
			if errors.Is(err, types.ErrUnauthorized) {
				abort(c, http.StatusUnauthorized, types.Message(err))
			} else {
				abort(c, http.StatusInternalServerError, "Internal server error")
			}
			return
		}
		c.Set("user", user)
		c.Set("user_id", userID)
		c.Next()
	}
}

// GetCurrentUser 从上下文获取当前用户
func GetCurrentUser(c *gin.Context) (*model.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetUserID 从上下文获取当前用户ID，匿名请求返回空串
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// abort 以统一错误格式结束请求
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": msg})
}
