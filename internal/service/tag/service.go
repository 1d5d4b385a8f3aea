// Package tag 标签使用次数索引，只用于排序
package tag

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/access"
)

// Index 标签 → 使用次数
// 在 bot 创建后和定时任务中重建，两次重建之间可能过期
type Index struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewIndex 创建空索引
func NewIndex() *Index {
	return &Index{counts: make(map[string]int)}
}

// Rebuild 扫描全部 bot 重新计数
func (x *Index) Rebuild(bots map[string]*model.Bot) {
	counts := make(map[string]int)
	for _, b := range bots {
		for _, t := range b.Tags {
			counts[t]++
		}
	}
	x.mu.Lock()
	x.counts = counts
	x.mu.Unlock()
}

// UsageCount 标签使用次数
func (x *Index) UsageCount(tag string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.counts[tag]
}

// Len 索引中的标签数
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.counts)
}

// Sort 按使用次数降序、名字升序原地排序
func (x *Index) Sort(tags []string) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	sort.Slice(tags, func(i, j int) bool {
		ci, cj := x.counts[tags[i]], x.counts[tags[j]]
		if ci != cj {
			return ci > cj
		}
		return tags[i] < tags[j]
	})
}

// Service 标签服务
type Service struct {
	repo   *repository.Repositories
	index  *Index
	logger *zap.Logger
}

// NewService 创建标签服务
func NewService(repo *repository.Repositories, index *Index, logger *zap.Logger) *Service {
	return &Service{repo: repo, index: index, logger: logger}
}

// Reindex 从存储重建索引
func (s *Service) Reindex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bots, err := s.repo.Bots.All()
	if err != nil {
		return err
	}
	s.index.Rebuild(bots)
	s.logger.Debug("tag index rebuilt", zap.Int("tags", s.index.Len()))
	return nil
}

// List 调用方可见的 bot 上出现过的全部标签
func (s *Service) List(ctx context.Context, requesterID string) ([]string, error) {
	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	bots, err := s.repo.Bots.All()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	tags := make([]string, 0)
	for _, b := range bots {
		if !access.CanAccess(b, requesterID, users) {
			continue
		}
		for _, t := range b.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	s.index.Sort(tags)
	return tags, nil
}
