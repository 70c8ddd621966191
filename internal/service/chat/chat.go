// Package chat 实现对话请求处理
// 每次请求的上下文完全从存储重建，进程内不缓存任何会话状态
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ashwinyue/todo-chat/internal/model"
	"github.com/ashwinyue/todo-chat/internal/service/agent"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrEmptyMessage 消息去除空白后为空
	ErrEmptyMessage = errors.New("message is required")
	// ErrConversationNotFound 会话不存在或不属于当前用户，二者不可区分
	ErrConversationNotFound = errors.New("conversation not found")
)

// ConversationStore 会话与消息存储接口
type ConversationStore interface {
	CreateConversation(conv *model.Conversation) error
	GetConversationForUser(id, userID string) (*model.Conversation, error)
	ListConversationsByUser(userID string, offset, limit int) ([]*model.Conversation, error)
	TouchConversation(id string) error
	CreateMessage(msg *model.Message) error
	GetMessagesForUser(conversationID, userID string) ([]*model.Message, error)
}

// Runner 推理循环接口
type Runner interface {
	Run(ctx context.Context, ownerID string, history []*schema.Message) (*agent.Result, error)
}

// Limiter 模型调用限流接口
type Limiter interface {
	Allow(ctx context.Context, ownerID string) (bool, error)
}

// Service 聊天服务
type Service struct {
	store        ConversationStore
	loop         Runner
	limiter      Limiter
	historyLimit int
}

// NewService 创建聊天服务
func NewService(store ConversationStore, loop Runner, limiter Limiter, historyLimit int) *Service {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Service{
		store:        store,
		loop:         loop,
		limiter:      limiter,
		historyLimit: historyLimit,
	}
}

// Request 聊天请求
type Request struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

// Response 聊天响应
type Response struct {
	ConversationID string                `json:"conversation_id"`
	Response       string                `json:"response"`
	ToolCalls      model.ToolCallRecords `json:"tool_calls,omitempty"`
}

// Chat 处理一轮对话
// 流程：解析会话 → 加载历史 → 追加用户消息 → 推理循环 → 追加助手消息 → touch
func (s *Service) Chat(ctx context.Context, userID string, req *Request) (*Response, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.resolveConversation(userID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetMessagesForUser(conv.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	userMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        text,
	}
	if err := s.store.CreateMessage(userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	result := s.runLoop(ctx, userID, append(s.toModelHistory(history), schema.UserMessage(text)))

	assistantMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        result.Content,
		ToolCalls:      result.ToolCalls,
	}
	if err := s.store.CreateMessage(assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	if err := s.store.TouchConversation(conv.ID); err != nil {
		log.Printf("failed to touch conversation %s: %v", conv.ID, err)
	}

	return &Response{
		ConversationID: conv.ID,
		Response:       result.Content,
		ToolCalls:      result.ToolCalls,
	}, nil
}

// resolveConversation 获取或创建会话
// 带句柄的请求只在会话归属当前用户时命中，否则一律 NotFound
func (s *Service) resolveConversation(userID, conversationID string) (*model.Conversation, error) {
	if conversationID != "" {
		conv, err := s.store.GetConversationForUser(conversationID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrConversationNotFound
			}
			return nil, fmt.Errorf("failed to get conversation: %w", err)
		}
		return conv, nil
	}

	conv := &model.Conversation{
		ID:     uuid.New().String(),
		UserID: userID,
	}
	if err := s.store.CreateConversation(conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// runLoop 执行推理循环
// 限流命中与模型失败都吸收为兜底回复，用户始终得到连贯的文本
func (s *Service) runLoop(ctx context.Context, userID string, history []*schema.Message) *agent.Result {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, userID)
		if err != nil {
			log.Printf("rate limit check error for user %s: %v", userID, err)
		}
		if !allowed {
			return &agent.Result{Content: agent.FallbackResponse, Aborted: true}
		}
	}

	result, err := s.loop.Run(ctx, userID, history)
	if err != nil {
		log.Printf("reasoning loop error for user %s: %v", userID, err)
		return &agent.Result{Content: agent.FallbackResponse, Aborted: true}
	}
	return result
}

// toModelHistory 将持久化消息转换为模型输入，只保留最近 historyLimit 条
func (s *Service) toModelHistory(messages []*model.Message) []*schema.Message {
	if len(messages) > s.historyLimit {
		messages = messages[len(messages)-s.historyLimit:]
	}

	result := make([]*schema.Message, 0, len(messages)+1)
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleAssistant:
			result = append(result, schema.AssistantMessage(msg.Content, nil))
		default:
			result = append(result, schema.UserMessage(msg.Content))
		}
	}
	return result
}

// ListConversations 列出用户会话
func (s *Service) ListConversations(ctx context.Context, userID string, page, size int) ([]*model.Conversation, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	convs, err := s.store.ListConversationsByUser(userID, (page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// GetMessages 获取会话消息历史
func (s *Service) GetMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error) {
	if _, err := s.store.GetConversationForUser(conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	messages, err := s.store.GetMessagesForUser(conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}
