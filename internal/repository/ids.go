package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// NextID 顺序 ID：现有最大数字 ID + 1，空集合从 "0" 开始
// 非数字键不参与计算；删除过的 ID 不会被复用
func NextID[T any](docs map[string]T) string {
	max := -1
	for k := range docs {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

var conversationIDPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// NewConversationID 随机 128 位十六进制 ID
func NewConversationID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate conversation id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsConversationID 是否为合法的会话 ID
func IsConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

// SortedIDs 按数字顺序排列的键，非数字键排在最后并按字典序
func SortedIDs[T any](docs map[string]T) []string {
	ids := make([]string, 0, len(docs))
	for k := range docs {
		ids = append(ids, k)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}
