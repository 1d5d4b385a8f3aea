package repository

import (
	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// BotRepository bot 只读访问
type BotRepository struct {
	store *database.Store
}

// NewBotRepository 创建 bot 仓库
func NewBotRepository(store *database.Store) *BotRepository {
	return &BotRepository{store: store}
}

// All 读取全部 bot
func (r *BotRepository) All() (map[string]*model.Bot, error) {
	var bots map[string]*model.Bot
	if err := r.store.Read(database.Bots, &bots); err != nil {
		return nil, types.Storage(err)
	}
	if bots == nil {
		bots = make(map[string]*model.Bot)
	}
	return bots, nil
}

// GetByID 按 ID 获取 bot
func (r *BotRepository) GetByID(id string) (*model.Bot, error) {
	bots, err := r.All()
	if err != nil {
		return nil, err
	}
	b, ok := bots[id]
	if !ok {
		return nil, types.NotFound("Bot not found")
	}
	return b, nil
}
