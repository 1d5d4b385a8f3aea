package model

// 默认用户头像
const DefaultUserAvatar = "/assets/users/default.png"

// MaxRecentBots 最近使用列表长度上限
const MaxRecentBots = 10

// Credential 密码凭据（十六进制 salt 与 scrypt 摘要）
type Credential struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// User 用户
// 以 users.json 中的键作为 ID，记录本身不含 ID 字段
type User struct {
	Name          string     `json:"name"`
	Password      Credential `json:"password"`
	IPAddress     string     `json:"ipAddress,omitempty"`
	Key           string     `json:"key"`
	Bots          []string   `json:"bots"`
	Conversations []string   `json:"conversations"`
	RecentBots    []string   `json:"recentBots"`
	Avatar        string     `json:"avatar"`
	Bio           string     `json:"bio"`

	// 个人 AI 服务设置，为空时使用全局配置
	AIProvider string `json:"aiProvider,omitempty"`
	AIModel    string `json:"aiModel,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
}

// HasConversation 会话是否属于该用户
func (u *User) HasConversation(id string) bool {
	return contains(u.Conversations, id)
}

// TouchRecentBot 把 bot 移到最近使用列表首位
func (u *User) TouchRecentBot(botID string) {
	recent := make([]string, 0, MaxRecentBots)
	recent = append(recent, botID)
	for _, id := range u.RecentBots {
		if id != botID && len(recent) < MaxRecentBots {
			recent = append(recent, id)
		}
	}
	u.RecentBots = recent
}

// UserProfile 公开的用户资料
type UserProfile struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar"`
	Bio           string     `json:"bio"`
	Bots          []*BotInfo `json:"bots"`
	Conversations []string   `json:"conversations,omitempty"`
	RecentBots    []string   `json:"recentBots,omitempty"`

	// 以下只返回给本人
	AIProvider string `json:"aiProvider,omitempty"`
	AIModel    string `json:"aiModel,omitempty"`
	HasAPIKey  bool   `json:"hasApiKey,omitempty"`
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Remove 返回去掉 v 之后的新切片
func Remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
