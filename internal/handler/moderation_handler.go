package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/service"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// maxUploadBytes 审核图片的上传上限
const maxUploadBytes = 10 << 20

// ModerationHandler 图片审核处理器
type ModerationHandler struct {
	svc *service.Services
}

// NewModerationHandler 创建图片审核处理器
func NewModerationHandler(svc *service.Services) *ModerationHandler {
	return &ModerationHandler{svc: svc}
}

// CheckNSFW 检查上传图片
// POST /api/check-nsfw
func (h *ModerationHandler) CheckNSFW(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		Error(c, types.Validation("No image file provided"))
		return
	}
	if fh.Size > maxUploadBytes {
		Error(c, types.Validation("Image too large. Maximum size: %dMB", maxUploadBytes>>20))
		return
	}

	f, err := fh.Open()
	if err != nil {
		Error(c, types.Validation("Invalid image file"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		Error(c, types.Validation("Invalid image file"))
		return
	}

	res, err := h.svc.Moderation.Check(c.Request.Context(), data)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}
