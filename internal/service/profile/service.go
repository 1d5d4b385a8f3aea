// Package profile 用户资料与账号注销
package profile

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/access"
	"github.com/ashwinyue/persona-hub/internal/service/completion"
	"github.com/ashwinyue/persona-hub/internal/service/file"
	"github.com/ashwinyue/persona-hub/internal/service/image"
	"github.com/ashwinyue/persona-hub/internal/service/sanitize"
	"github.com/ashwinyue/persona-hub/internal/service/tag"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// 字段长度上限；aiProvider 可以是接口地址，与其他外部地址共用上限
const (
	BioMax      = 500
	ModelMax    = 100
	APIKeyMax   = 500
	ProviderMax = sanitize.URLMax
)

var updatable = map[string]bool{
	"bio":        true,
	"avatar":     true,
	"aiProvider": true,
	"aiModel":    true,
	"apiKey":     true,
}

// Service 资料服务
type Service struct {
	repo   *repository.Repositories
	tags   *tag.Index
	files  *file.Service
	images *image.Processor
	logger *zap.Logger
}

// NewService 创建资料服务
func NewService(repo *repository.Repositories, tags *tag.Index, files *file.Service, images *image.Processor, logger *zap.Logger) *Service {
	return &Service{repo: repo, tags: tags, files: files, images: images, logger: logger}
}

// Get 按 ID 或用户名查看资料
// 只列出查看者能访问的 bot；本人额外看到会话与最近使用
func (s *Service) Get(ctx context.Context, viewerID, idOrName string) (*model.UserProfile, error) {
	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	id, u := lookup(users, idOrName)
	if u == nil {
		return nil, types.NotFound("Profile not found")
	}
	bots, err := s.repo.Bots.All()
	if err != nil {
		return nil, err
	}

	p := &model.UserProfile{
		ID:     id,
		Name:   u.Name,
		Avatar: u.Avatar,
		Bio:    u.Bio,
		Bots:   make([]*model.BotInfo, 0, len(u.Bots)),
	}
	for _, botID := range u.Bots {
		b, ok := bots[botID]
		if !ok || !access.CanAccess(b, viewerID, users) {
			continue
		}
		p.Bots = append(p.Bots, b.ToBotInfo(botID, access.CanSeePrompt(b, viewerID, users)))
	}
	if viewerID != "" && viewerID == id {
		p.Conversations = nonNil(u.Conversations)
		p.RecentBots = nonNil(u.RecentBots)
		p.AIProvider = u.AIProvider
		p.AIModel = u.AIModel
		p.HasAPIKey = u.APIKey != ""
	}
	return p, nil
}

// Update 修改本人资料，只接受白名单字段
func (s *Service) Update(ctx context.Context, userID string, patch map[string]json.RawMessage) error {
	if len(patch) == 0 {
		return types.Validation("No fields to update")
	}
	for k := range patch {
		if !updatable[k] {
			return types.Validation("Field cannot be updated: %s", k)
		}
	}

	var (
		bio, provider, modelName, apiKey *string
		avatar                           *string
		err                              error
	)
	if bio, err = stringField(patch, "bio", func(v string) (string, error) {
		return sanitize.Text("Bio", v, BioMax)
	}); err != nil {
		return err
	}
	if provider, err = stringField(patch, "aiProvider", func(v string) (string, error) {
		if len(v) > ProviderMax || !completion.ValidProvider(v) {
			return "", types.Validation("Unsupported AI provider")
		}
		return v, nil
	}); err != nil {
		return err
	}
	if modelName, err = stringField(patch, "aiModel", func(v string) (string, error) {
		return sanitize.Text("Model", v, ModelMax)
	}); err != nil {
		return err
	}
	if apiKey, err = stringField(patch, "apiKey", func(v string) (string, error) {
		if len(v) > APIKeyMax {
			return "", types.Validation("API key too long")
		}
		return v, nil
	}); err != nil {
		return err
	}
	if avatar, err = stringField(patch, "avatar", func(v string) (string, error) {
		if v != "" && !strings.HasPrefix(v, "data:image/") {
			return "", types.Validation("Avatar must be a data:image URI")
		}
		return v, nil
	}); err != nil {
		return err
	}

	var avatarPNG []byte
	if avatar != nil && *avatar != "" {
		if avatarPNG, err = s.images.UserAvatar(*avatar); err != nil {
			return err
		}
	}

	var (
		oldAvatar string
		newAvatar string
		undo      func(context.Context)
	)
	err = s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		u, ok := users[userID]
		if !ok {
			return types.NotFound("User not found")
		}
		if bio != nil {
			u.Bio = *bio
		}
		if provider != nil {
			u.AIProvider = *provider
		}
		if modelName != nil {
			u.AIModel = *modelName
		}
		if apiKey != nil {
			u.APIKey = *apiKey
		}
		if avatar != nil {
			oldAvatar = u.Avatar
			if avatarPNG != nil {
				url, restore, err := s.files.ReplaceAvatar(ctx, file.AvatarUser, userID, avatarPNG, oldAvatar)
				if err != nil {
					s.logger.Error("failed to save user avatar", zap.String("user_id", userID), zap.Error(err))
					return types.Storage(err)
				}
				undo = restore
				u.Avatar = url
			} else {
				u.Avatar = model.DefaultUserAvatar
			}
			newAvatar = u.Avatar
		}
		tx.MarkDirty(database.Users)
		return nil
	}, database.Users)
	if err != nil {
		if undo != nil {
			undo(context.WithoutCancel(ctx))
		}
		return err
	}

	if oldAvatar != "" && oldAvatar != newAvatar {
		s.files.RemoveAvatar(ctx, oldAvatar)
	}
	return nil
}

// DeleteAccount 注销账号：删除本人的 bot、会话和用户记录，以及相关头像
// 他人的 bot 与会话不受影响
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	var (
		avatars  []string
		snapshot map[string]*model.Bot
		removed  int
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		u, ok := users[userID]
		if !ok {
			return types.NotFound("User not found")
		}
		bots, err := tx.Bots()
		if err != nil {
			return err
		}
		convs, err := tx.Conversations()
		if err != nil {
			return err
		}

		for _, id := range ownedBots(userID, u, users, bots) {
			avatars = append(avatars, bots[id].Avatar)
			delete(bots, id)
			removed++
		}
		for _, id := range u.Conversations {
			delete(convs, id)
		}
		avatars = append(avatars, u.Avatar)
		delete(users, userID)

		tx.MarkDirty(database.Users, database.Bots, database.Conversations)
		snapshot = bots
		return nil
	}, database.Users, database.Bots, database.Conversations)
	if err != nil {
		return err
	}

	for _, a := range avatars {
		s.files.RemoveAvatar(ctx, a)
	}
	s.tags.Rebuild(snapshot)
	s.logger.Info("account deleted", zap.String("user_id", userID), zap.Int("bots", removed))
	return nil
}

// ownedBots 作者为本人的 bot，加上列在 user.bots 中且不属于其他现有用户的 bot
func ownedBots(userID string, u *model.User, users map[string]*model.User, bots map[string]*model.Bot) []string {
	others := make(map[string]bool, len(users))
	for id, other := range users {
		if id != userID {
			others[other.Name] = true
		}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range u.Bots {
		if b, ok := bots[id]; ok && !others[b.Author] {
			add(id)
		}
	}
	for _, id := range repository.SortedIDs(bots) {
		if bots[id].Author == u.Name {
			add(id)
		}
	}
	return out
}

// lookup ID 优先，其次按用户名
func lookup(users map[string]*model.User, idOrName string) (string, *model.User) {
	if u, ok := users[idOrName]; ok {
		return idOrName, u
	}
	if id, u, ok := repository.FindByName(users, idOrName); ok {
		return id, u
	}
	return "", nil
}

func stringField(patch map[string]json.RawMessage, key string, clean func(string) (string, error)) (*string, error) {
	raw, ok := patch[key]
	if !ok {
		return nil, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, types.Validation("%s must be a string", key)
	}
	out, err := clean(v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
