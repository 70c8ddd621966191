package router

import (
	"github.com/ashwinyue/todo-chat/internal/handler"
	"github.com/ashwinyue/todo-chat/internal/middleware"
	"github.com/ashwinyue/todo-chat/internal/service"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, svc *service.Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 就绪检查
	r.GET("/health", h.System.Health)

	// API v1
	v1 := r.Group("/api/v1")

	// Auth 认证（无需登录）
	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.RefreshToken)
	}

	// 业务路由，身份一律来自校验通过的令牌
	authed := v1.Group("")
	authed.Use(middleware.RequireAuth(svc.Auth))
	{
		// Chat 对话
		authed.POST("/chat", h.Chat.Chat)
		authed.GET("/conversations", h.Chat.ListConversations)
		authed.GET("/conversations/:id/messages", h.Chat.GetMessages)

		// Task 任务
		tasks := authed.Group("/tasks")
		{
			tasks.POST("", h.Task.Create)
			tasks.GET("", h.Task.List)
			tasks.GET("/:id", h.Task.Get)
			tasks.PUT("/:id", h.Task.Update)
			tasks.DELETE("/:id", h.Task.Delete)
			tasks.PATCH("/:id/complete", h.Task.Complete)
		}

		// 当前用户
		authed.GET("/auth/me", h.Auth.GetCurrentUser)
		authed.POST("/auth/logout", h.Auth.Logout)
		authed.POST("/auth/change-password", h.Auth.ChangePassword)
	}

	return r
}
