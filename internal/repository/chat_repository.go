package repository

import (
	"time"

	"github.com/ashwinyue/todo-chat/internal/model"
	"gorm.io/gorm"
)

// ChatRepository 会话与消息数据访问
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天仓库
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateConversation 创建会话
func (r *ChatRepository) CreateConversation(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// GetConversationForUser 获取会话
// 会话 ID 与归属用户在同一条件中过滤，不存在与不属于当前用户不可区分
func (r *ChatRepository) GetConversationForUser(id, userID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversationsByUser 列出用户会话，最近更新优先
func (r *ChatRepository) ListConversationsByUser(userID string, offset, limit int) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Offset(offset).Limit(limit).
		Find(&convs).Error
	return convs, err
}

// TouchConversation 更新会话的 updated_at
func (r *ChatRepository) TouchConversation(id string) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

// CreateMessage 追加消息
// 时间戳由仓库统一赋值，保证会话内单调不减
func (r *ChatRepository) CreateMessage(msg *model.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return r.db.Create(msg).Error
}

// GetMessagesForUser 获取会话消息历史
// 单条查询同时按会话与归属用户过滤，消除先查存在再查归属的竞态窗口；
// 按数据库分配的序列排序，时间戳相同也不影响插入序；
// 合法的新会话返回空切片而非错误
func (r *ChatRepository) GetMessagesForUser(conversationID, userID string) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.conversation_id = ? AND conversations.user_id = ?", conversationID, userID).
		Order("messages.seq ASC").
		Find(&messages).Error
	return messages, err
}
