// Package stats 请求计数与日活统计
package stats

import (
	"context"
	"math"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
)

// averageDays 平均日活的统计天数
const averageDays = 7

// Service 统计服务
// 请求数先在内存累加，由 Flush 或新的日活记录一并落盘
type Service struct {
	repo    *repository.Repositories
	logger  *zap.Logger
	now     func() time.Time
	pending atomic.Int64

	mu       sync.Mutex
	seenDate string
	seen     map[string]struct{}
}

// NewService 创建统计服务
func NewService(repo *repository.Repositories, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now, seen: make(map[string]struct{})}
}

// Track 记录一次请求
// userID 非空且当天首次出现时写入日活，并清理 30 天前的记录；其余请求只在内存计数
func (s *Service) Track(ctx context.Context, userID string) error {
	s.pending.Add(1)
	if !validUserID(userID) {
		return nil
	}
	today := s.now().UTC().Format(model.DateLayout)
	if s.recorded(today, userID) {
		return nil
	}
	return s.write(ctx, userID)
}

// Flush 把内存中的请求数写入 stats.json
func (s *Service) Flush(ctx context.Context) error {
	if s.pending.Load() == 0 {
		return nil
	}
	return s.write(ctx, "")
}

// Pending 尚未落盘的请求数
func (s *Service) Pending() int64 {
	return s.pending.Load()
}

func (s *Service) recorded(date, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenDate != date {
		return false
	}
	_, ok := s.seen[userID]
	return ok
}

func (s *Service) markSeen(date, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenDate != date {
		s.seenDate = date
		s.seen = make(map[string]struct{})
	}
	s.seen[userID] = struct{}{}
}

func (s *Service) write(ctx context.Context, userID string) error {
	now := s.now().UTC()
	today := now.Format(model.DateLayout)
	cutoff := now.AddDate(0, 0, -model.StatsRetentionDays).Format(model.DateLayout)

	var taken int64
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		st, err := tx.Stats()
		if err != nil {
			return err
		}
		taken = s.pending.Swap(0)
		st.TotalRequests += taken
		if userID != "" && !slices.Contains(st.DailyActiveUsers[today], userID) {
			st.DailyActiveUsers[today] = append(st.DailyActiveUsers[today], userID)
		}
		for date := range st.DailyActiveUsers {
			if date < cutoff {
				delete(st.DailyActiveUsers, date)
			}
		}
		st.LastUpdated = now
		tx.MarkDirty(database.Stats)
		return nil
	}, database.Stats)
	if err != nil {
		// 没写进去的计数留给下次
		s.pending.Add(taken)
		return err
	}
	if userID != "" {
		s.markSeen(today, userID)
	}
	return nil
}

// Summary 汇总用户、bot 与日活数据
func (s *Service) Summary(ctx context.Context) (*model.StatsSummary, error) {
	users, err := s.repo.Users.All()
	if err != nil {
		return nil, err
	}
	bots, err := s.repo.Bots.All()
	if err != nil {
		return nil, err
	}
	st, err := s.repo.Stats.Get()
	if err != nil {
		return nil, err
	}

	out := &model.StatsSummary{
		TotalUsers:    len(users),
		TotalBots:     len(bots),
		DailyUserData: make(map[string]int, model.StatsRetentionDays),
		TotalRequests: st.TotalRequests + s.pending.Load(),
		LastUpdated:   st.LastUpdated,
	}
	for _, b := range bots {
		switch b.Status {
		case model.StatusPublic:
			out.PublicBots++
		case model.StatusPrivate:
			out.PrivateBots++
		}
	}

	now := s.now().UTC()
	out.DailyActiveUsers = len(st.DailyActiveUsers[now.Format(model.DateLayout)])

	// 只对有记录的日期求平均
	sum, days := 0, 0
	for i := 0; i < averageDays; i++ {
		ids, ok := st.DailyActiveUsers[now.AddDate(0, 0, -i).Format(model.DateLayout)]
		if ok {
			sum += len(ids)
			days++
		}
	}
	if days > 0 {
		out.AverageDailyUsers = int(math.Round(float64(sum) / float64(days)))
	}

	for i := model.StatsRetentionDays - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(model.DateLayout)
		out.DailyUserData[date] = len(st.DailyActiveUsers[date])
	}
	return out, nil
}

// validUserID 只记录数字形式的用户 ID，避免任意请求头撑大记录
func validUserID(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}
