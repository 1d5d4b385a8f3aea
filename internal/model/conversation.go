package model

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxMessages 单个会话的消息数上限
const MaxMessages = 1000

// Message 会话消息
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Conversation 会话
// 会话本身不记录归属，归属只体现在 User.Conversations 中
type Conversation struct {
	ID           string    `json:"id"`
	With         string    `json:"with"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// ConversationSummary 会话列表项
type ConversationSummary struct {
	ID           string    `json:"id"`
	With         string    `json:"with"`
	LastModified time.Time `json:"lastModified"`
	MessageCount int       `json:"messageCount"`
}

// Summary 生成列表项
func (c *Conversation) Summary() *ConversationSummary {
	return &ConversationSummary{
		ID:           c.ID,
		With:         c.With,
		LastModified: c.LastModified,
		MessageCount: len(c.Messages),
	}
}
