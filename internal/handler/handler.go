package handler

import (
	"github.com/ashwinyue/todo-chat/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Chat   *ChatHandler
	Task   *TaskHandler
	Auth   *AuthHandler
	System *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services, checks map[string]HealthCheck) *Handlers {
	return &Handlers{
		Chat:   NewChatHandler(svc),
		Task:   NewTaskHandler(svc),
		Auth:   NewAuthHandler(svc),
		System: NewSystemHandler(checks),
	}
}
