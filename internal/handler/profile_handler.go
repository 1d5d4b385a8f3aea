package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/middleware"
	"github.com/ashwinyue/persona-hub/internal/service"
)

// ProfileHandler 用户资料处理器
type ProfileHandler struct {
	svc *service.Services
}

// NewProfileHandler 创建资料处理器
func NewProfileHandler(svc *service.Services) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// Get 查看资料
// GET /api/profile/:profile
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.svc.Profile.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("profile"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, p)
}

// Update 修改本人资料
// PUT /api/profile/update
func (h *ProfileHandler) Update(c *gin.Context) {
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		Error(c, bindError(err))
		return
	}

	if err := h.svc.Profile.Update(c.Request.Context(), middleware.GetUserID(c), patch); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"status": "ok", "message": "Profile updated successfully"})
}

// DeleteAccount 注销账号
// DELETE /api/account
func (h *ProfileHandler) DeleteAccount(c *gin.Context) {
	if err := h.svc.Profile.DeleteAccount(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"status": "ok", "message": "Account deleted successfully"})
}
