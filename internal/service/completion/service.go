package completion

import (
	"context"
	"errors"
	"io"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/access"
	"github.com/ashwinyue/persona-hub/internal/service/callback"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// 草拟消息的上下文长度上限
const maxContextLength = 15000

// Service 对话生成服务
type Service struct {
	repo    *repository.Repositories
	cfg     *config.AIConfig
	factory ModelFactory
	lore    *LoreFetcher
	trace   *callback.Logger
	logger  *zap.Logger
}

// NewService 创建对话生成服务
func NewService(repo *repository.Repositories, cfg *config.AIConfig, factory ModelFactory, lore *LoreFetcher, logger *zap.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, factory: factory, lore: lore, trace: callback.NewLogger(logger), logger: logger}
}

// CreateMessageRequest 草拟消息请求
type CreateMessageRequest struct {
	Context        string `json:"context" binding:"required"`
	MessageType    string `json:"messageType"`
	BotPersonality string `json:"botPersonality"`
	Style          string `json:"style"`
}

// CreateMessageResponse 草拟消息结果
type CreateMessageResponse struct {
	Generated   string `json:"generated"`
	MessageType string `json:"messageType"`
	Style       string `json:"style"`
	Context     string `json:"context"`
}

// CompleteRequest bot 对话请求
type CompleteRequest struct {
	Messages []model.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// StreamEvent 流式输出事件
type StreamEvent struct {
	Type string `json:"type"` // message, error, done
	Data string `json:"data"`
}

// CreateMessage 根据上下文草拟一条消息
func (s *Service) CreateMessage(ctx context.Context, user *model.User, req *CreateMessageRequest) (*CreateMessageResponse, error) {
	if strings.TrimSpace(req.Context) == "" {
		return nil, types.Validation("Context is required")
	}
	if len([]rune(req.Context)) > maxContextLength {
		return nil, types.Validation("Context too long. Maximum length: %d", maxContextLength)
	}
	if req.MessageType == "" {
		req.MessageType = MessageReply
	}
	if req.Style == "" {
		req.Style = "natural"
	}

	messages := []*schema.Message{
		schema.SystemMessage(draftPrompt(req.MessageType, req.Style, req.BotPersonality)),
		schema.UserMessage("Context: " + req.Context),
	}
	content, err := s.generate(ctx, user, messages)
	if err != nil {
		return nil, err
	}

	return &CreateMessageResponse{
		Generated:   strings.TrimSpace(content),
		MessageType: req.MessageType,
		Style:       req.Style,
		Context:     req.Context,
	}, nil
}

// Complete 以 bot 的身份生成一条回复
func (s *Service) Complete(ctx context.Context, userID string, botID string, req *CompleteRequest) (string, error) {
	user, messages, err := s.prepare(ctx, userID, botID, req)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, user, messages)
}

// Stream 流式生成；调用方取消 ctx 后停止读取并关闭上游连接
func (s *Service) Stream(ctx context.Context, userID string, botID string, req *CompleteRequest) (<-chan StreamEvent, error) {
	user, messages, err := s.prepare(ctx, userID, botID, req)
	if err != nil {
		return nil, err
	}

	ctx, chatModel, err := s.newModel(ctx, user)
	if err != nil {
		return nil, err
	}
	reader, err := chatModel.Stream(ctx, messages)
	if err != nil {
		s.logger.Error("chat stream failed", zap.String("bot_id", botID), zap.Error(err))
		return nil, types.Upstream("Failed to generate response", err)
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer reader.Close()

		send := func(ev StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			chunk, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				send(StreamEvent{Type: "done"})
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("chat stream interrupted", zap.String("bot_id", botID), zap.Error(err))
					send(StreamEvent{Type: "error", Data: "Failed to generate response"})
				}
				return
			}
			if chunk.Content == "" {
				continue
			}
			if !send(StreamEvent{Type: "message", Data: chunk.Content}) {
				return
			}
		}
	}()
	return out, nil
}

// prepare 校验访问权限并拼出完整消息列表
func (s *Service) prepare(ctx context.Context, userID, botID string, req *CompleteRequest) (*model.User, []*schema.Message, error) {
	if len(req.Messages) == 0 {
		return nil, nil, types.Validation("Messages are required")
	}
	if len(req.Messages) > model.MaxMessages {
		return nil, nil, types.Validation("Too many messages. Maximum: %d", model.MaxMessages)
	}
	for _, m := range req.Messages {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			return nil, nil, types.Validation("Invalid message role: %s", m.Role)
		}
	}

	users, err := s.repo.Users.All()
	if err != nil {
		return nil, nil, err
	}
	bots, err := s.repo.Bots.All()
	if err != nil {
		return nil, nil, err
	}
	bot, ok := bots[botID]
	if !ok || !access.CanAccess(bot, userID, users) {
		return nil, nil, types.NotFound("Bot not found")
	}

	messages := make([]*schema.Message, 0, len(req.Messages)+1)
	messages = append(messages, schema.SystemMessage(botPrompt(bot.SysPmt, s.lore.Fetch(ctx, bot.Lorebook))))
	for _, m := range req.Messages {
		if m.Role == model.RoleUser {
			messages = append(messages, schema.UserMessage(m.Content))
		} else {
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		}
	}
	return users[userID], messages, nil
}

func (s *Service) generate(ctx context.Context, user *model.User, messages []*schema.Message) (string, error) {
	ctx, chatModel, err := s.newModel(ctx, user)
	if err != nil {
		return "", err
	}
	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		s.logger.Error("chat generate failed", zap.Error(err))
		return "", types.Upstream("Failed to generate response", err)
	}
	return resp.Content, nil
}

// newModel 按用户设置创建模型，返回的 ctx 带有调用日志回调
func (s *Service) newModel(ctx context.Context, user *model.User) (context.Context, einomodel.BaseChatModel, error) {
	settings, err := SettingsFor(s.cfg, user)
	if err != nil {
		return ctx, nil, types.Upstream("AI provider is not configured", err)
	}
	chatModel, err := s.factory(ctx, settings)
	if err != nil {
		s.logger.Error("failed to create chat model", zap.String("provider", settings.Provider), zap.Error(err))
		return ctx, nil, types.Upstream("AI provider is not configured", err)
	}
	return s.trace.Attach(ctx, settings.Provider), chatModel, nil
}
