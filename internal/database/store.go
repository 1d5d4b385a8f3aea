package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"
)

// Collection 集合名，每个集合对应一个 JSON 文件
type Collection string

const (
	Users         Collection = "users"
	Bots          Collection = "bots"
	Conversations Collection = "conversations"
	Stats         Collection = "stats"
)

// lockOrder 多集合加锁的全局顺序
var lockOrder = map[Collection]int{
	Users:         0,
	Bots:          1,
	Conversations: 2,
	Stats:         3,
}

// AllCollections 全部集合
func AllCollections() []Collection {
	return []Collection{Users, Bots, Conversations, Stats}
}

// ErrUnknownCollection 未知集合
var ErrUnknownCollection = errors.New("unknown collection")

// Store JSON 文档存储
// 每次 Read 都重新解析文件；读改写序列必须在 Lock 之内完成。
type Store struct {
	dir    string
	locks  map[Collection]*sync.Mutex
	logger *zap.Logger
}

// Open 打开数据目录
// 创建目录、补齐缺失的集合文件，并清理遗留的临时文件
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		dir:    dir,
		locks:  make(map[Collection]*sync.Mutex, len(lockOrder)),
		logger: logger,
	}
	for c := range lockOrder {
		s.locks[c] = &sync.Mutex{}
	}

	removed, err := RemoveStaleTemps(dir)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		logger.Info("removed stale temp files", zap.Int("count", removed), zap.String("dir", dir))
	}

	for _, c := range AllCollections() {
		path := s.Path(c)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := WriteFile(path, []byte("{}"), 0o644); err != nil {
				return nil, fmt.Errorf("failed to init %s: %w", c, err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", c, err)
		}
	}

	return s, nil
}

// Dir 数据目录
func (s *Store) Dir() string {
	return s.dir
}

// Path 集合文件路径
func (s *Store) Path(c Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// Read 读取集合到 v
// 文件缺失或为空时 v 保持零值；解析失败时尝试修复一次
func (s *Store) Read(c Collection, v any) error {
	if _, ok := lockOrder[c]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}

	data, err := os.ReadFile(s.Path(c))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return fmt.Errorf("failed to parse %s: %w", c, err)
		}
		if err2 := json.Unmarshal([]byte(repaired), v); err2 != nil {
			return fmt.Errorf("failed to parse %s: %w", c, err)
		}
		s.logger.Warn("collection file was damaged and has been repaired in memory",
			zap.String("collection", string(c)), zap.Error(err))
	}
	return nil
}

// Write 序列化 v 并原子写入集合文件
func (s *Store) Write(c Collection, v any) error {
	if _, ok := lockOrder[c]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c, err)
	}
	if err := WriteFile(s.Path(c), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	return nil
}

// Lock 按全局顺序锁住给定集合，返回解锁函数
func (s *Store) Lock(cols ...Collection) func() {
	ordered := dedupe(cols)
	sort.Slice(ordered, func(i, j int) bool {
		return lockOrder[ordered[i]] < lockOrder[ordered[j]]
	})

	for _, c := range ordered {
		s.locks[c].Lock()
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			s.locks[ordered[i]].Unlock()
		}
	}
}

// Backup 把每个集合文件原子复制到 dir
func (s *Store) Backup(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	for _, c := range AllCollections() {
		// 持锁读取，保证拿到的是某次完整写入后的内容
		unlock := s.Lock(c)
		data, err := os.ReadFile(s.Path(c))
		unlock()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", c, err)
		}
		if err := WriteFile(filepath.Join(dir, string(c)+".json"), data, 0o644); err != nil {
			return fmt.Errorf("failed to back up %s: %w", c, err)
		}
	}
	return nil
}

func dedupe(cols []Collection) []Collection {
	seen := make(map[Collection]bool, len(cols))
	out := make([]Collection, 0, len(cols))
	for _, c := range cols {
		if _, ok := lockOrder[c]; !ok {
			panic(fmt.Sprintf("database: lock on unknown collection %q", c))
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
