// Package access bot 与资料的可见性规则
package access

import "github.com/ashwinyue/persona-hub/internal/model"

// IsOwner 请求者是否为 bot 作者
// 按用户名比较：用户改名后原有 bot 不再属于他
func IsOwner(bot *model.Bot, requesterID string, users map[string]*model.User) bool {
	if bot == nil || requesterID == "" {
		return false
	}
	u, ok := users[requesterID]
	if !ok || u == nil {
		return false
	}
	return bot.Author == u.Name
}

// CanAccess 请求者能否查看 bot
// public 总是可见；private 仅作者可见；其他状态一律拒绝
func CanAccess(bot *model.Bot, requesterID string, users map[string]*model.User) bool {
	if bot == nil {
		return false
	}
	switch bot.Status {
	case model.StatusPublic:
		return true
	case model.StatusPrivate:
		return IsOwner(bot, requesterID, users)
	default:
		return false
	}
}

// CanSeePrompt 列表中是否返回 sys_pmt
func CanSeePrompt(bot *model.Bot, requesterID string, users map[string]*model.User) bool {
	return IsOwner(bot, requesterID, users)
}
