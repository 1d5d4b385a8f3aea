package handler

import (
	"github.com/ashwinyue/persona-hub/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Auth       *AuthHandler
	Bot        *BotHandler
	Chat       *ChatHandler
	Profile    *ProfileHandler
	Tag        *TagHandler
	System     *SystemHandler
	Completion *CompletionHandler
	Moderation *ModerationHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:       NewAuthHandler(svc),
		Bot:        NewBotHandler(svc),
		Chat:       NewChatHandler(svc),
		Profile:    NewProfileHandler(svc),
		Tag:        NewTagHandler(svc),
		System:     NewSystemHandler(svc),
		Completion: NewCompletionHandler(svc),
		Moderation: NewModerationHandler(svc),
	}
}
