package bot

import (
	"encoding/json"
	"strings"

	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/sanitize"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// 字段长度上限
const (
	NameMax        = 100
	DescriptionMax = 1000
	PromptMax      = 15000
	GreetingMax    = 15000
	ChatsMax       = 500000
	TagMax         = 50
	TagsMax        = 20
	LoreURLMax     = sanitize.URLMax
	LoreMax        = 20
)

// fields 清洗后的可写字段，nil 表示未提供
type fields struct {
	Name        *string
	Description *string
	Status      *string
	SysPmt      *string
	Greeting    *string
	Chats       *string
	Tags        []string
	Lorebook    []string
	Avatar      *string // data URI；空串表示恢复默认头像

	hasTags     bool
	hasLorebook bool
}

// updatable 允许通过 PUT 修改的字段
var updatable = map[string]bool{
	"name":        true,
	"description": true,
	"status":      true,
	"avatar":      true,
	"sys_pmt":     true,
	"greeting":    true,
	"chats":       true,
	"tags":        true,
	"lorebook":    true,
}

// parsePatch 按白名单解析部分更新；未知字段和 author 直接拒绝
func parsePatch(patch map[string]json.RawMessage) (*fields, error) {
	if len(patch) == 0 {
		return nil, types.Validation("No fields to update")
	}
	for k := range patch {
		if !updatable[k] {
			return nil, types.Validation("Field cannot be updated: %s", k)
		}
	}

	f := &fields{}
	var err error
	if f.Name, err = textField(patch, "name", "Name", NameMax, true); err != nil {
		return nil, err
	}
	if f.Description, err = textField(patch, "description", "Description", DescriptionMax, false); err != nil {
		return nil, err
	}
	if f.SysPmt, err = textField(patch, "sys_pmt", "System prompt", PromptMax, true); err != nil {
		return nil, err
	}
	if f.Greeting, err = textField(patch, "greeting", "Greeting", GreetingMax, true); err != nil {
		return nil, err
	}
	if f.Chats, err = textField(patch, "chats", "Chats", ChatsMax, false); err != nil {
		return nil, err
	}

	if raw, ok := patch["status"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || !validStatus(s) {
			return nil, types.Validation("Invalid status value")
		}
		f.Status = &s
	}
	if raw, ok := patch["avatar"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, types.Validation("Invalid avatar")
		}
		f.Avatar = &s
	}
	if raw, ok := patch["tags"]; ok {
		var tags []string
		if err := json.Unmarshal(raw, &tags); err != nil {
			return nil, types.Validation("Tags must be a list of strings")
		}
		if f.Tags, err = sanitize.Tags(tags, TagMax, TagsMax); err != nil {
			return nil, err
		}
		f.hasTags = true
	}
	if raw, ok := patch["lorebook"]; ok {
		var urls []string
		if err := json.Unmarshal(raw, &urls); err != nil {
			return nil, types.Validation("Lorebook must be a list of URLs")
		}
		if f.Lorebook, err = sanitize.URLs(urls, LoreURLMax, LoreMax); err != nil {
			return nil, err
		}
		f.hasLorebook = true
	}
	return f, nil
}

func textField(patch map[string]json.RawMessage, key, label string, max int, required bool) (*string, error) {
	raw, ok := patch[key]
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, types.Validation("%s must be a string", label)
	}
	var clean string
	var err error
	if required {
		clean, err = sanitize.RequiredText(label, s, max)
	} else {
		clean, err = sanitize.Text(label, s, max)
	}
	if err != nil {
		return nil, err
	}
	return &clean, nil
}

// apply 把已校验的字段合并进 bot
func (f *fields) apply(b *model.Bot) {
	if f.Name != nil {
		b.Name = *f.Name
	}
	if f.Description != nil {
		b.Description = *f.Description
	}
	if f.Status != nil {
		b.Status = *f.Status
	}
	if f.SysPmt != nil {
		b.SysPmt = *f.SysPmt
	}
	if f.Greeting != nil {
		b.Greeting = *f.Greeting
	}
	if f.Chats != nil {
		b.Chats = *f.Chats
	}
	if f.hasTags {
		b.Tags = f.Tags
	}
	if f.hasLorebook {
		b.Lorebook = f.Lorebook
	}
}

func validStatus(s string) bool {
	return s == model.StatusPublic || s == model.StatusPrivate
}

func isDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}
