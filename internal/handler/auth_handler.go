package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/service"
	"github.com/ashwinyue/persona-hub/internal/service/auth"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *service.Services
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.Services) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register 用户注册
// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	resp, err := h.svc.Auth.Register(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, resp)
}

// Login 用户登录
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	resp, err := h.svc.Auth.Login(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}
