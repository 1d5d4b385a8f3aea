package repository

import (
	"context"
	"fmt"

	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	Store         *database.Store // 直接访问文档存储
	Users         *UserRepository
	Bots          *BotRepository
	Conversations *ConversationRepository
	Stats         *StatsRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(store *database.Store) *Repositories {
	return &Repositories{
		Store:         store,
		Users:         NewUserRepository(store),
		Bots:          NewBotRepository(store),
		Conversations: NewConversationRepository(store),
		Stats:         NewStatsRepository(store),
	}
}

// Update 在给定集合的锁内执行一次读改写
// fn 返回错误时不写任何文件；否则按加锁顺序写回被标记的集合
func (r *Repositories) Update(ctx context.Context, fn func(tx *Tx) error, cols ...database.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := r.Store.Lock(cols...)
	defer unlock()

	tx := newTx(r.Store, cols)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// Tx 一次加锁读改写的上下文
// 集合在首次访问时从磁盘加载
type Tx struct {
	store  *database.Store
	locked map[database.Collection]bool
	dirty  map[database.Collection]bool

	users         map[string]*model.User
	bots          map[string]*model.Bot
	conversations map[string]*model.Conversation
	stats         *model.Stats
}

func newTx(store *database.Store, cols []database.Collection) *Tx {
	locked := make(map[database.Collection]bool, len(cols))
	for _, c := range cols {
		locked[c] = true
	}
	return &Tx{
		store:  store,
		locked: locked,
		dirty:  make(map[database.Collection]bool),
	}
}

// Users 加载 users 集合
func (tx *Tx) Users() (map[string]*model.User, error) {
	if tx.users == nil {
		if err := tx.load(database.Users, &tx.users); err != nil {
			return nil, err
		}
		if tx.users == nil {
			tx.users = make(map[string]*model.User)
		}
	}
	return tx.users, nil
}

// Bots 加载 bots 集合
func (tx *Tx) Bots() (map[string]*model.Bot, error) {
	if tx.bots == nil {
		if err := tx.load(database.Bots, &tx.bots); err != nil {
			return nil, err
		}
		if tx.bots == nil {
			tx.bots = make(map[string]*model.Bot)
		}
	}
	return tx.bots, nil
}

// Conversations 加载 conversations 集合
func (tx *Tx) Conversations() (map[string]*model.Conversation, error) {
	if tx.conversations == nil {
		if err := tx.load(database.Conversations, &tx.conversations); err != nil {
			return nil, err
		}
		if tx.conversations == nil {
			tx.conversations = make(map[string]*model.Conversation)
		}
	}
	return tx.conversations, nil
}

// Stats 加载统计记录
func (tx *Tx) Stats() (*model.Stats, error) {
	if tx.stats == nil {
		var s model.Stats
		if err := tx.load(database.Stats, &s); err != nil {
			return nil, err
		}
		if s.DailyActiveUsers == nil {
			s.DailyActiveUsers = make(map[string][]string)
		}
		tx.stats = &s
	}
	return tx.stats, nil
}

// MarkDirty 标记需要写回的集合
func (tx *Tx) MarkDirty(cols ...database.Collection) {
	for _, c := range cols {
		if !tx.locked[c] {
			panic(fmt.Sprintf("repository: %s modified without holding its lock", c))
		}
		tx.dirty[c] = true
	}
}

func (tx *Tx) load(c database.Collection, v any) error {
	if !tx.locked[c] {
		panic(fmt.Sprintf("repository: %s read inside Update without holding its lock", c))
	}
	if err := tx.store.Read(c, v); err != nil {
		return types.Storage(err)
	}
	return nil
}

func (tx *Tx) commit() error {
	for _, c := range database.AllCollections() {
		if !tx.dirty[c] {
			continue
		}
		var v any
		switch {
		case c == database.Users && tx.users != nil:
			v = tx.users
		case c == database.Bots && tx.bots != nil:
			v = tx.bots
		case c == database.Conversations && tx.conversations != nil:
			v = tx.conversations
		case c == database.Stats && tx.stats != nil:
			v = tx.stats
		default:
			// 标记了但从未加载，没有可写的内容
			continue
		}
		if err := tx.store.Write(c, v); err != nil {
			return types.Storage(err)
		}
	}
	return nil
}
