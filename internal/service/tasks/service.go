// Package tasks 实现任务存储服务
// 所有操作以认证用户为键，归属校验在每次查询中强制执行
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashwinyue/todo-chat/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 标题长度上限（按字符计，不是字节），超出视为非法输入
const maxTitleLen = 500

var (
	// ErrTaskNotFound 任务不存在或不属于当前用户，二者不可区分
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTitle 标题为空或超长
	ErrInvalidTitle = errors.New("task title must be 1-500 characters")
	// ErrInvalidDueDate 截止日期格式非法
	ErrInvalidDueDate = errors.New("invalid due date, use YYYY-MM-DD or RFC3339")
	// ErrInvalidStatus 状态过滤取值非法
	ErrInvalidStatus = errors.New("status must be pending or complete")
	// ErrAmbiguousTitle 标题匹配到多个任务
	ErrAmbiguousTitle = errors.New("multiple tasks match the given title")
)

// Repository 任务数据访问接口
// 接口定义使 Service 层可以轻松 mock 进行单元测试
type Repository interface {
	Create(task *model.Task) error
	GetForUser(id, userID string) (*model.Task, error)
	ListByUser(userID string, completed *bool) ([]*model.Task, error)
	FindByTitleForUser(userID, title string) ([]*model.Task, error)
	Update(task *model.Task) error
	DeleteForUser(id, userID string) error
}

// Service 任务服务
type Service struct {
	repo Repository
}

// NewService 创建任务服务
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateRequest 创建任务请求
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

// UpdateRequest 更新任务请求，只更新提供的字段
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	Completed   *bool   `json:"completed"`
}

// Create 创建任务
func (s *Service) Create(ctx context.Context, userID string, req *CreateRequest) (*model.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return nil, ErrInvalidTitle
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		DueDate:     dueDate,
	}

	if err := s.repo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// Get 获取任务
func (s *Service) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.repo.GetForUser(taskID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List 列出用户任务
// status 取值 ""|"all"|"pending"|"complete"|"completed"
func (s *Service) List(ctx context.Context, userID, status string) ([]*model.Task, error) {
	var completed *bool
	switch status {
	case "", "all":
	case "pending":
		v := false
		completed = &v
	case "complete", "completed":
		v := true
		completed = &v
	default:
		return nil, ErrInvalidStatus
	}

	tasks, err := s.repo.ListByUser(userID, completed)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Update 更新任务
func (s *Service) Update(ctx context.Context, userID, taskID string, req *UpdateRequest) (*model.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
			return nil, ErrInvalidTitle
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.DueDate != nil {
		dueDate, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = dueDate
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	if err := s.repo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// Delete 删除任务，返回被删除的任务信息
func (s *Service) Delete(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteForUser(taskID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}

	return task, nil
}

// DeleteByTitle 按标题删除任务
// 模糊匹配到多个任务时返回 ErrAmbiguousTitle，不做猜测
func (s *Service) DeleteByTitle(ctx context.Context, userID, title string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}

	matches, err := s.repo.FindByTitleForUser(userID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, ErrTaskNotFound
	case 1:
		return s.Delete(ctx, userID, matches[0].ID)
	default:
		return nil, ErrAmbiguousTitle
	}
}

// SetCompleted 设置任务完成状态
func (s *Service) SetCompleted(ctx context.Context, userID, taskID string, completed bool) (*model.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	task.Completed = completed
	if err := s.repo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// Complete 标记任务完成
func (s *Service) Complete(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return s.SetCompleted(ctx, userID, taskID, true)
}

// parseDueDate 解析截止日期，空串返回 nil
func parseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	return nil, ErrInvalidDueDate
}
