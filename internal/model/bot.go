package model

// 可见性
const (
	StatusPublic  = "public"
	StatusPrivate = "private"
)

// 默认 bot 头像
const DefaultBotAvatar = "/assets/bots/noresponse.png"

// Bot 角色
// Author 存的是作者用户名而不是用户 ID，归属判断按名字比较
type Bot struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Status      string   `json:"status"`
	Avatar      string   `json:"avatar"`
	SysPmt      string   `json:"sys_pmt"`
	Greeting    string   `json:"greeting"`
	Chats       string   `json:"chats"`
	Tags        []string `json:"tags"`
	Lorebook    []string `json:"lorebook"`
	Views       int      `json:"views"`
}

// BotInfo 对外返回的 bot
// SysPmt 为 nil 时不输出
type BotInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Status      string   `json:"status"`
	Avatar      string   `json:"avatar"`
	SysPmt      *string  `json:"sys_pmt,omitempty"`
	Greeting    string   `json:"greeting"`
	Chats       string   `json:"chats"`
	Tags        []string `json:"tags"`
	Lorebook    []string `json:"lorebook"`
	Views       int      `json:"views"`
}

// ToBotInfo 转换为对外结构，withPrompt 决定是否带 sys_pmt
func (b *Bot) ToBotInfo(id string, withPrompt bool) *BotInfo {
	info := &BotInfo{
		ID:          id,
		Name:        b.Name,
		Description: b.Description,
		Author:      b.Author,
		Status:      b.Status,
		Avatar:      b.Avatar,
		Greeting:    b.Greeting,
		Chats:       b.Chats,
		Tags:        nonNil(b.Tags),
		Lorebook:    nonNil(b.Lorebook),
		Views:       b.Views,
	}
	if withPrompt {
		prompt := b.SysPmt
		info.SysPmt = &prompt
	}
	return info
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
