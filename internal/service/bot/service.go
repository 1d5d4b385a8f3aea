// Package bot 角色的创建、查询、修改与删除
package bot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/access"
	"github.com/ashwinyue/persona-hub/internal/service/file"
	"github.com/ashwinyue/persona-hub/internal/service/image"
	"github.com/ashwinyue/persona-hub/internal/service/tag"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// 分页
const (
	DefaultLimit = 20
	MaxLimit     = 100
	SearchMax    = 100
)

// Service bot 服务
type Service struct {
	repo   *repository.Repositories
	tags   *tag.Index
	files  *file.Service
	images *image.Processor
	logger *zap.Logger
}

// NewService 创建 bot 服务
func NewService(repo *repository.Repositories, tags *tag.Index, files *file.Service, images *image.Processor, logger *zap.Logger) *Service {
	return &Service{repo: repo, tags: tags, files: files, images: images, logger: logger}
}

// CreateBotRequest 创建请求
type CreateBotRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Avatar      string   `json:"avatar"`
	SysPmt      string   `json:"sys_pmt"`
	Greeting    string   `json:"greeting"`
	Chats       string   `json:"chats"`
	Tags        []string `json:"tags"`
	Lorebook    []string `json:"lorebook"`
}

// CreateBotResponse 创建结果
type CreateBotResponse struct {
	Status    string    `json:"status"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// ListQuery 列表查询参数
type ListQuery struct {
	Offset int
	Limit  int
	Search string
	Tags   []string
	Sort   string // field_dir
}

// ListResult 列表结果
type ListResult struct {
	Bots  []*model.BotInfo `json:"bots"`
	Total int              `json:"total"`
}

// Create 创建 bot，作者为当前用户
func (s *Service) Create(ctx context.Context, userID string, req *CreateBotRequest) (*CreateBotResponse, error) {
	if req.Name == "" || req.Status == "" || req.SysPmt == "" || req.Greeting == "" {
		return nil, types.Validation("All required fields must be filled")
	}
	patch := map[string]any{
		"name":        req.Name,
		"description": req.Description,
		"status":      req.Status,
		"sys_pmt":     req.SysPmt,
		"greeting":    req.Greeting,
		"chats":       req.Chats,
		"tags":        nonNil(req.Tags),
		"lorebook":    nonNil(req.Lorebook),
	}
	f, err := parsePatch(toRaw(patch))
	if err != nil {
		return nil, err
	}

	var avatarPNG []byte
	if isDataURI(req.Avatar) {
		if avatarPNG, err = s.images.BotAvatar(req.Avatar); err != nil {
			return nil, err
		}
	}

	var (
		id       string
		snapshot map[string]*model.Bot
		saved    string
	)
	err = s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		user, ok := users[userID]
		if !ok {
			return types.Unauthorized("Unauthorized")
		}
		bots, err := tx.Bots()
		if err != nil {
			return err
		}

		id = repository.NextID(bots)
		b := &model.Bot{
			Author:   user.Name,
			Avatar:   model.DefaultBotAvatar,
			Tags:     []string{},
			Lorebook: []string{},
		}
		f.apply(b)
		if avatarPNG != nil {
			url, err := s.files.SaveAvatar(ctx, file.AvatarBot, id, avatarPNG)
			if err != nil {
				s.logger.Error("failed to save bot avatar", zap.String("bot_id", id), zap.Error(err))
				return types.Storage(err)
			}
			b.Avatar = url
			saved = url
		}

		bots[id] = b
		user.Bots = append(user.Bots, id)
		tx.MarkDirty(database.Users, database.Bots)
		snapshot = bots
		return nil
	}, database.Users, database.Bots)
	if err != nil {
		if saved != "" {
			s.files.RemoveAvatar(context.WithoutCancel(ctx), saved)
		}
		return nil, err
	}

	s.tags.Rebuild(snapshot)
	s.logger.Info("bot created", zap.String("bot_id", id), zap.String("user_id", userID))
	return &CreateBotResponse{Status: "ok", ID: id, Timestamp: time.Now().UTC()}, nil
}

// List 调用方可见的 bot，过滤、排序后分页；非作者看不到 sys_pmt
func (s *Service) List(ctx context.Context, requesterID string, q ListQuery) (*ListResult, error) {
	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	bots, err := s.repo.Bots.All()
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(truncate(q.Search, SearchMax))
	wantTags := make(map[string]bool, len(q.Tags))
	for _, t := range q.Tags {
		if t = strings.TrimSpace(t); t != "" {
			wantTags[t] = true
		}
	}

	ids := make([]string, 0, len(bots))
	for _, id := range repository.SortedIDs(bots) {
		b := bots[id]
		if !access.CanAccess(b, requesterID, users) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Name), search) &&
			!strings.Contains(strings.ToLower(b.Description), search) {
			continue
		}
		if len(wantTags) > 0 && !hasAnyTag(b.Tags, wantTags) {
			continue
		}
		ids = append(ids, id)
	}

	field, desc := parseSort(q.Sort)
	sort.SliceStable(ids, func(i, j int) bool {
		c := compareField(bots[ids[i]], bots[ids[j]], field)
		if desc {
			return c > 0
		}
		return c < 0
	})

	offset, limit := clampPage(q.Offset, q.Limit)
	page := make([]*model.BotInfo, 0, limit)
	for i := offset; i < len(ids) && len(page) < limit; i++ {
		id := ids[i]
		b := bots[id]
		page = append(page, b.ToBotInfo(id, access.CanSeePrompt(b, requesterID, users)))
	}
	return &ListResult{Bots: page, Total: len(ids)}, nil
}

// Get 详情，能访问即返回 sys_pmt；不可访问与不存在同样返回 404
func (s *Service) Get(ctx context.Context, requesterID, id string) (*model.BotInfo, error) {
	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	b, err := s.repo.Bots.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !access.CanAccess(b, requesterID, users) {
		return nil, types.NotFound("Bot not found")
	}
	return b.ToBotInfo(id, true), nil
}

// Update 作者修改 bot，只合并白名单字段
func (s *Service) Update(ctx context.Context, userID, id string, patch map[string]json.RawMessage) error {
	f, err := parsePatch(patch)
	if err != nil {
		return err
	}

	var avatarPNG []byte
	if f.Avatar != nil && *f.Avatar != "" {
		if !isDataURI(*f.Avatar) {
			return types.Validation("Avatar must be a data:image URI")
		}
		if avatarPNG, err = s.images.BotAvatar(*f.Avatar); err != nil {
			return err
		}
	}

	var (
		oldAvatar string
		newAvatar string
		undo      func(context.Context)
		snapshot  map[string]*model.Bot
	)
	err = s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		bots, err := tx.Bots()
		if err != nil {
			return err
		}
		b, ok := bots[id]
		if !ok {
			return types.NotFound("Bot not found")
		}
		if !access.IsOwner(b, userID, users) {
			return types.Forbidden("Unauthorized")
		}

		f.apply(b)
		if f.Avatar != nil {
			oldAvatar = b.Avatar
			if avatarPNG != nil {
				url, restore, err := s.files.ReplaceAvatar(ctx, file.AvatarBot, id, avatarPNG, oldAvatar)
				if err != nil {
					s.logger.Error("failed to save bot avatar", zap.String("bot_id", id), zap.Error(err))
					return types.Storage(err)
				}
				undo = restore
				b.Avatar = url
			} else {
				b.Avatar = model.DefaultBotAvatar
			}
			newAvatar = b.Avatar
		}
		tx.MarkDirty(database.Bots)
		snapshot = bots
		return nil
	}, database.Users, database.Bots)
	if err != nil {
		// 记录没写进去，头像文件回到更新前
		if undo != nil {
			undo(context.WithoutCancel(ctx))
		}
		return err
	}

	// 同一路径被新文件覆盖时不能删除
	if oldAvatar != "" && oldAvatar != newAvatar {
		s.files.RemoveAvatar(ctx, oldAvatar)
	}
	if f.hasTags {
		s.tags.Rebuild(snapshot)
	}
	return nil
}

// Delete 作者删除 bot，同时删除头像文件
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	var (
		avatar   string
		snapshot map[string]*model.Bot
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		bots, err := tx.Bots()
		if err != nil {
			return err
		}
		b, ok := bots[id]
		if !ok {
			return types.NotFound("Bot not found")
		}
		if !access.IsOwner(b, userID, users) {
			return types.Forbidden("Unauthorized")
		}

		avatar = b.Avatar
		delete(bots, id)
		users[userID].Bots = model.Remove(users[userID].Bots, id)
		tx.MarkDirty(database.Users, database.Bots)
		snapshot = bots
		return nil
	}, database.Users, database.Bots)
	if err != nil {
		return err
	}

	s.files.RemoveAvatar(ctx, avatar)
	s.tags.Rebuild(snapshot)
	s.logger.Info("bot deleted", zap.String("bot_id", id), zap.String("user_id", userID))
	return nil
}

// View 浏览数加一，返回新值
func (s *Service) View(ctx context.Context, requesterID, id string) (int, error) {
	users, err := s.repo.Users.All()
	if err != nil {
		return 0, err
	}

	var views int
	err = s.repo.Update(ctx, func(tx *repository.Tx) error {
		bots, err := tx.Bots()
		if err != nil {
			return err
		}
		b, ok := bots[id]
		if !ok || !access.CanAccess(b, requesterID, users) {
			return types.NotFound("Bot not found")
		}
		b.Views++
		views = b.Views
		tx.MarkDirty(database.Bots)
		return nil
	}, database.Bots)
	return views, err
}

// EncodedID 编码 ID 解析结果
type EncodedID struct {
	ID        string `json:"id"`
	EncodedID string `json:"encodedId"`
}

// ResolveEncoded 解析 base64 编码的 bot ID
func (s *Service) ResolveEncoded(ctx context.Context, requesterID, encoded string) (*EncodedID, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if raw, err = base64.RawURLEncoding.DecodeString(encoded); err != nil {
			return nil, types.Validation("Invalid bot ID")
		}
	}
	id := string(raw)
	if _, err := strconv.Atoi(id); err != nil {
		return nil, types.Validation("Invalid bot ID")
	}
	if _, err := s.Get(ctx, requesterID, id); err != nil {
		return nil, err
	}
	return &EncodedID{ID: id, EncodedID: encoded}, nil
}

// LogUse 把 bot 记入用户的最近使用列表
func (s *Service) LogUse(ctx context.Context, userID, botID string) error {
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return types.Validation("botId is required")
	}
	if _, err := s.Get(ctx, userID, botID); err != nil {
		return err
	}
	return s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		u, ok := users[userID]
		if !ok {
			return types.Unauthorized("Unauthorized")
		}
		u.TouchRecentBot(botID)
		tx.MarkDirty(database.Users)
		return nil
	}, database.Users)
}

// Recent 最近使用的 bot，已删除或不可访问的跳过
func (s *Service) Recent(ctx context.Context, userID string) ([]*model.BotInfo, error) {
	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	u, ok := users[userID]
	if !ok {
		return nil, types.Unauthorized("Unauthorized")
	}
	bots, err := s.repo.Bots.All()
	if err != nil {
		return nil, err
	}

	out := make([]*model.BotInfo, 0, len(u.RecentBots))
	for _, id := range u.RecentBots {
		b, ok := bots[id]
		if !ok || !access.CanAccess(b, userID, users) {
			continue
		}
		out = append(out, b.ToBotInfo(id, access.CanSeePrompt(b, userID, users)))
	}
	return out, nil
}

func parseSort(s string) (field string, desc bool) {
	field, dir, _ := strings.Cut(s, "_")
	switch field {
	case "name", "description", "author", "status", "views":
	default:
		field = "name"
	}
	return field, dir == "desc"
}

func compareField(a, b *model.Bot, field string) int {
	switch field {
	case "views":
		return a.Views - b.Views
	case "description":
		return strings.Compare(a.Description, b.Description)
	case "author":
		return strings.Compare(a.Author, b.Author)
	case "status":
		return strings.Compare(a.Status, b.Status)
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

func hasAnyTag(tags []string, want map[string]bool) bool {
	for _, t := range tags {
		if want[t] {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toRaw(m map[string]any) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		b, _ := json.Marshal(v)
		out[k] = b
	}
	return out
}
