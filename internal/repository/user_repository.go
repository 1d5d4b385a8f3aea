package repository

import (
	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// UserRepository 用户只读访问
// 写操作通过 Repositories.Update 完成
type UserRepository struct {
	store *database.Store
}

// NewUserRepository 创建用户仓库
func NewUserRepository(store *database.Store) *UserRepository {
	return &UserRepository{store: store}
}

// All 读取全部用户
func (r *UserRepository) All() (map[string]*model.User, error) {
	var users map[string]*model.User
	if err := r.store.Read(database.Users, &users); err != nil {
		return nil, types.Storage(err)
	}
	if users == nil {
		users = make(map[string]*model.User)
	}
	return users, nil
}

// GetByID 按 ID 获取用户
func (r *UserRepository) GetByID(id string) (*model.User, error) {
	users, err := r.All()
	if err != nil {
		return nil, err
	}
	u, ok := users[id]
	if !ok {
		return nil, types.NotFound("User not found")
	}
	return u, nil
}

// FindByName 在已加载的集合中按名字查找
func FindByName(users map[string]*model.User, name string) (string, *model.User, bool) {
	for id, u := range users {
		if u.Name == name {
			return id, u, true
		}
	}
	return "", nil, false
}
