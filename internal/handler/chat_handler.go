package handler

import (
	"strconv"

	"github.com/ashwinyue/todo-chat/internal/middleware"
	"github.com/ashwinyue/todo-chat/internal/service"
	"github.com/ashwinyue/todo-chat/internal/service/chat"
	"github.com/gin-gonic/gin"
)

// ChatHandler 聊天处理器
type ChatHandler struct {
	svc *service.Services
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(svc *service.Services) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat 处理一轮对话
// POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	resp, err := h.svc.Chat.Chat(c.Request.Context(), userID, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}

// ListConversations 列出当前用户的会话
// GET /api/v1/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	convs, err := h.svc.Chat.ListConversations(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"conversations": convs,
		"total":         len(convs),
	})
}

// GetMessages 获取会话消息历史
// GET /api/v1/conversations/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	conversationID := c.Param("id")
	messages, err := h.svc.Chat.GetMessages(c.Request.Context(), userID, conversationID)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"conversation_id": conversationID,
		"messages":        messages,
		"total":           len(messages),
	})
}
