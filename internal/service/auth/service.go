// Package auth 注册、登录与会话密钥校验
// 会话密钥是长期有效的不透明令牌，只有删除账号才会失效
package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/ratelimit"
	"github.com/ashwinyue/persona-hub/internal/service/sanitize"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

const invalidCredentials = "Invalid username or password"

// Service 认证服务
type Service struct {
	repo   *repository.Repositories
	guard  *ratelimit.AuthGuard
	logger *zap.Logger
}

// NewService 创建认证服务
func NewService(repo *repository.Repositories, guard *ratelimit.AuthGuard, logger *zap.Logger) *Service {
	return &Service{repo: repo, guard: guard, logger: logger}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,username"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Session 注册或登录成功后返回给客户端的凭据
type Session struct {
	Status string `json:"status"`
	UserID string `json:"userId"`
	Key    string `json:"key"`
}

// Register 注册用户
func (s *Service) Register(ctx context.Context, req *RegisterRequest, ip string) (*Session, error) {
	if err := s.guard.Check(ip); err != nil {
		return nil, err
	}

	name, err := sanitize.Username(req.Username)
	if err != nil {
		return nil, err
	}
	cred, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	key, err := NewSessionKey()
	if err != nil {
		return nil, err
	}

	var id string
	err = s.repo.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		if _, _, exists := repository.FindByName(users, name); exists {
			return types.Conflict("Username already exists")
		}

		id = repository.NextID(users)
		users[id] = &model.User{
			Name:          name,
			Password:      cred,
			IPAddress:     ip,
			Key:           key,
			Bots:          []string{},
			Conversations: []string{},
			RecentBots:    []string{},
			Avatar:        model.DefaultUserAvatar,
			Bio:           "",
		}
		tx.MarkDirty(database.Users)
		return nil
	}, database.Users)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			s.guard.Fail(ip)
		}
		return nil, err
	}

	s.guard.Succeed(ip)
	s.logger.Info("user registered", zap.String("user_id", id), zap.String("name", name))
	return &Session{Status: "ok", UserID: id, Key: key}, nil
}

// Login 校验用户名和密码，返回已有的会话密钥
func (s *Service) Login(ctx context.Context, req *LoginRequest, ip string) (*Session, error) {
	if err := s.guard.Check(ip); err != nil {
		return nil, err
	}

	name, err := sanitize.Username(req.Username)
	if err != nil || len(req.Password) > PasswordMax {
		return nil, types.Validation(invalidCredentials)
	}

	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	id, user, ok := repository.FindByName(users, name)
	if !ok || !VerifyPassword(req.Password, user.Password) {
		s.guard.Fail(ip)
		return nil, types.Unauthorized(invalidCredentials)
	}

	s.guard.Succeed(ip)
	return &Session{Status: "ok", UserID: id, Key: user.Key}, nil
}

// Authenticate 校验 X-User-ID / X-Auth-Key
func (s *Service) Authenticate(ctx context.Context, userID, key string) (*model.User, error) {
	if userID == "" || key == "" {
		return nil, types.Unauthorized("Unauthorized")
	}
	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	user, ok := users[userID]
	if !ok || subtle.ConstantTimeCompare([]byte(user.Key), []byte(key)) != 1 {
		return nil, types.Unauthorized("Invalid credentials")
	}
	return user, nil
}
