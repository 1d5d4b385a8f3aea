package repository

import (
	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// ConversationRepository 会话只读访问
type ConversationRepository struct {
	store *database.Store
}

// NewConversationRepository 创建会话仓库
func NewConversationRepository(store *database.Store) *ConversationRepository {
	return &ConversationRepository{store: store}
}

// All 读取全部会话
func (r *ConversationRepository) All() (map[string]*model.Conversation, error) {
	var convs map[string]*model.Conversation
	if err := r.store.Read(database.Conversations, &convs); err != nil {
		return nil, types.Storage(err)
	}
	if convs == nil {
		convs = make(map[string]*model.Conversation)
	}
	return convs, nil
}
