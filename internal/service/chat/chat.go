// Package chat 用户会话记录
// 会话归属只看用户的 conversations 列表
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// Service 会话服务
type Service struct {
	repo   *repository.Repositories
	logger *zap.Logger
	now    func() time.Time
}

// NewService 创建会话服务
func NewService(repo *repository.Repositories, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// UpsertRequest 保存会话请求，ID 为空时新建
type UpsertRequest struct {
	ID       string          `json:"id"`
	With     string          `json:"with"`
	Messages []model.Message `json:"messages"`
}

// UpsertResponse 保存结果
type UpsertResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversationId"`
	ID             string `json:"id"`
}

// List 用户的会话摘要，按会话 ID 索引
func (s *Service) List(ctx context.Context, userID string) (map[string]*model.ConversationSummary, error) {
	owned, err := s.owned(userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.ConversationSummary, len(owned))
	for id, c := range owned {
		out[id] = c.Summary()
	}
	return out, nil
}

// ListFull 用户的完整会话
func (s *Service) ListFull(ctx context.Context, userID string) (map[string]*model.Conversation, error) {
	return s.owned(userID)
}

// Get 单个会话；不在用户列表中的一律 404
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	u, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	if !u.HasConversation(id) {
		return nil, types.NotFound("Chat not found")
	}
	convs, err := s.repo.Conversations.All()
	if err != nil {
		return nil, err
	}
	c, ok := convs[id]
	if !ok {
		return nil, types.NotFound("Chat not found")
	}
	return c, nil
}

// Upsert 新建或覆盖会话
// 已存在但不属于调用方的 ID 返回 403
func (s *Service) Upsert(ctx context.Context, userID string, req *UpsertRequest) (*UpsertResponse, error) {
	with := strings.TrimSpace(req.With)
	if with == "" || req.Messages == nil {
		return nil, types.Validation("with and messages are required; messages must be an array")
	}
	if err := ValidateMessages(req.Messages); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.ID)
	if id != "" && !repository.IsConversationID(id) {
		id = ""
	}
	if id == "" {
		var err error
		if id, err = repository.NewConversationID(); err != nil {
			return nil, types.Storage(err)
		}
	}

	now := s.now().UTC()
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		u, ok := users[userID]
		if !ok {
			return types.Unauthorized("Unauthorized")
		}
		convs, err := tx.Conversations()
		if err != nil {
			return err
		}

		created := now
		if existing, ok := convs[id]; ok {
			if !u.HasConversation(id) {
				return types.Forbidden("Access denied")
			}
			created = existing.CreatedAt
		}
		convs[id] = &model.Conversation{
			ID:           id,
			With:         with,
			Messages:     req.Messages,
			CreatedAt:    created,
			LastModified: now,
		}
		tx.MarkDirty(database.Conversations)

		if !u.HasConversation(id) {
			u.Conversations = append(u.Conversations, id)
			tx.MarkDirty(database.Users)
		}
		return nil
	}, database.Users, database.Conversations)
	if err != nil {
		return nil, err
	}
	return &UpsertResponse{Status: "ok", ConversationID: id, ID: id}, nil
}

// Delete 删除会话并从用户列表中移除
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		u, ok := users[userID]
		if !ok {
			return types.Unauthorized("Unauthorized")
		}
		if !u.HasConversation(id) {
			return types.NotFound("Conversation not found")
		}
		convs, err := tx.Conversations()
		if err != nil {
			return err
		}
		delete(convs, id)
		u.Conversations = model.Remove(u.Conversations, id)
		tx.MarkDirty(database.Users, database.Conversations)
		return nil
	}, database.Users, database.Conversations)
}

// ValidateMessages 检查消息数量与角色
func ValidateMessages(msgs []model.Message) error {
	if len(msgs) > model.MaxMessages {
		return types.Validation("Too many messages. Maximum: %d", model.MaxMessages)
	}
	for _, m := range msgs {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			return types.Validation("Invalid message role: %s", m.Role)
		}
	}
	return nil
}

func (s *Service) owned(userID string) (map[string]*model.Conversation, error) {
	u, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	convs, err := s.repo.Conversations.All()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Conversation, len(u.Conversations))
	for _, id := range u.Conversations {
		if c, ok := convs[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *Service) user(id string) (*model.User, error) {
	u, err := s.repo.Users.GetByID(id)
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.Unauthorized("Unauthorized")
	}
	return u, err
}
