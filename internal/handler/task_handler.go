package handler

import (
	"github.com/ashwinyue/todo-chat/internal/middleware"
	"github.com/ashwinyue/todo-chat/internal/service"
	"github.com/ashwinyue/todo-chat/internal/service/tasks"
	"github.com/gin-gonic/gin"
)

// TaskHandler 任务处理器
// 与聊天工具共用同一个任务服务，REST 与对话两条路径语义一致
type TaskHandler struct {
	svc *service.Services
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(svc *service.Services) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// Create 创建任务
// POST /api/v1/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	var req tasks.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	task, err := h.svc.Tasks.Create(c.Request.Context(), userID, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, task)
}

// List 列出任务
// GET /api/v1/tasks?status=pending|complete|all
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	list, err := h.svc.Tasks.List(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"tasks": list,
		"total": len(list),
	})
}

// Get 获取单个任务
// GET /api/v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	task, err := h.svc.Tasks.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, task)
}

// Update 更新任务
// PUT /api/v1/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	var req tasks.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	task, err := h.svc.Tasks.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, task)
}

// Delete 删除任务
// DELETE /api/v1/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	if _, err := h.svc.Tasks.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// Complete 标记任务完成
// POST /api/v1/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	task, err := h.svc.Tasks.Complete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, task)
}
