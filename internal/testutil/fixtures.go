// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
)

// Fixture 临时目录中的文档存储
type Fixture struct {
	t      *testing.T
	Dir    string
	Store  *database.Store
	Repos  *repository.Repositories
	Logger *zap.Logger
}

// NewFixture 在 t.TempDir() 下打开一个空存储
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)
	store, err := database.Open(dir, logger)
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	return &Fixture{
		t:      t,
		Dir:    dir,
		Store:  store,
		Repos:  repository.NewRepositories(store),
		Logger: logger,
	}
}

// SeedUser 直接写入一个用户，返回 ID 和会话密钥
// 不计算密码摘要，需要登录的测试走注册流程
func (f *Fixture) SeedUser(name string) (string, string) {
	f.t.Helper()
	key := "key-" + name
	var id string
	f.update(func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		id = repository.NextID(users)
		users[id] = &model.User{
			Name:          name,
			Key:           key,
			Bots:          []string{},
			Conversations: []string{},
			RecentBots:    []string{},
			Avatar:        model.DefaultUserAvatar,
		}
		tx.MarkDirty(database.Users)
		return nil
	}, database.Users)
	return id, key
}

// SeedBot 写入一个 bot 并挂到作者名下（作者存在时）
func (f *Fixture) SeedBot(author, status string, tags ...string) string {
	f.t.Helper()
	var id string
	f.update(func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		bots, err := tx.Bots()
		if err != nil {
			return err
		}
		id = repository.NextID(bots)
		if tags == nil {
			tags = []string{}
		}
		bots[id] = &model.Bot{
			Name:     author + "'s bot " + id,
			Author:   author,
			Status:   status,
			Avatar:   model.DefaultBotAvatar,
			SysPmt:   "prompt " + id,
			Greeting: "hello",
			Tags:     tags,
			Lorebook: []string{},
		}
		if _, u, ok := repository.FindByName(users, author); ok {
			u.Bots = append(u.Bots, id)
		}
		tx.MarkDirty(database.Users, database.Bots)
		return nil
	}, database.Users, database.Bots)
	return id
}

// SeedConversation 写入一个会话并挂到用户名下
func (f *Fixture) SeedConversation(userID, botID string) string {
	f.t.Helper()
	id, err := repository.NewConversationID()
	if err != nil {
		f.t.Fatal(err)
	}
	f.update(func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		convs, err := tx.Conversations()
		if err != nil {
			return err
		}
		convs[id] = &model.Conversation{ID: id, With: botID, Messages: []model.Message{}}
		if u, ok := users[userID]; ok {
			u.Conversations = append(u.Conversations, id)
		}
		tx.MarkDirty(database.Users, database.Conversations)
		return nil
	}, database.Users, database.Conversations)
	return id
}

// User 读取单个用户，不存在时测试失败
func (f *Fixture) User(id string) *model.User {
	f.t.Helper()
	u, err := f.Repos.Users.GetByID(id)
	if err != nil {
		f.t.Fatalf("user %s: %v", id, err)
	}
	return u
}

// Bots 读取全部 bot
func (f *Fixture) Bots() map[string]*model.Bot {
	f.t.Helper()
	bots, err := f.Repos.Bots.All()
	if err != nil {
		f.t.Fatal(err)
	}
	return bots
}

// Conversations 读取全部会话
func (f *Fixture) Conversations() map[string]*model.Conversation {
	f.t.Helper()
	convs, err := f.Repos.Conversations.All()
	if err != nil {
		f.t.Fatal(err)
	}
	return convs
}

func (f *Fixture) update(fn func(tx *repository.Tx) error, cols ...database.Collection) {
	f.t.Helper()
	if err := f.Repos.Update(context.Background(), fn, cols...); err != nil {
		f.t.Fatalf("seed: %v", err)
	}
}

// AssertHelper 提供断言相关的测试辅助
type AssertHelper struct {
	t *testing.T
}

// NewAssertHelper 创建断言辅助器
func NewAssertHelper(t *testing.T) *AssertHelper {
	return &AssertHelper{t: t}
}

// NoError 断言没有错误
func (h *AssertHelper) NoError(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("Unexpected error: %v %v", err, msgAndArgs)
	}
}

// ErrorIs 断言错误属于指定类别
func (h *AssertHelper) ErrorIs(err, kind error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !errors.Is(err, kind) {
		h.t.Fatalf("Expected error of kind %v, got %v %v", kind, err, msgAndArgs)
	}
}

// ErrorContains 断言错误包含指定字符串
func (h *AssertHelper) ErrorContains(err error, substr string, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), substr) {
		h.t.Fatalf("Error %q does not contain %q %v", err.Error(), substr, msgAndArgs)
	}
}

// Equal 断言相等
func (h *AssertHelper) Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	h.t.Helper()
	if expected != actual {
		h.t.Fatalf("Expected %v, got %v %v", expected, actual, msgAndArgs)
	}
}

// True 断言为真
func (h *AssertHelper) True(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !condition {
		h.t.Fatalf("Expected true, got false %v", msgAndArgs)
	}
}

// False 断言为假
func (h *AssertHelper) False(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if condition {
		h.t.Fatalf("Expected false, got true %v", msgAndArgs)
	}
}
