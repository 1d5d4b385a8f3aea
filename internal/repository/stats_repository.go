package repository

import (
	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// StatsRepository 统计记录只读访问
type StatsRepository struct {
	store *database.Store
}

// NewStatsRepository 创建统计仓库
func NewStatsRepository(store *database.Store) *StatsRepository {
	return &StatsRepository{store: store}
}

// Get 读取统计记录，文件为空时返回空记录
func (r *StatsRepository) Get() (*model.Stats, error) {
	var s model.Stats
	if err := r.store.Read(database.Stats, &s); err != nil {
		return nil, types.Storage(err)
	}
	if s.DailyActiveUsers == nil {
		s.DailyActiveUsers = make(map[string][]string)
	}
	return &s, nil
}
