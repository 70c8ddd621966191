// Package tools 实现任务管理工具注册表
// 五个工具对模型暴露为函数调用 schema；分发是对已知工具名的封闭匹配，
// 未注册的工具名作为错误结果返回，绝不动态调用
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ashwinyue/todo-chat/internal/model"
	"github.com/ashwinyue/todo-chat/internal/service/tasks"
	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonrepair"
)

// 注册的工具名
const (
	ToolAddTask      = "add_task"
	ToolListTasks    = "list_tasks"
	ToolUpdateTask   = "update_task"
	ToolDeleteTask   = "delete_task"
	ToolCompleteTask = "complete_task"
)

// TaskStore 工具包装的任务存储接口
// owner 恒为认证用户，绝不信任模型参数中的身份字段
type TaskStore interface {
	Create(ctx context.Context, userID string, req *tasks.CreateRequest) (*model.Task, error)
	List(ctx context.Context, userID, status string) ([]*model.Task, error)
	Update(ctx context.Context, userID, taskID string, req *tasks.UpdateRequest) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID string) (*model.Task, error)
	DeleteByTitle(ctx context.Context, userID, title string) (*model.Task, error)
	Complete(ctx context.Context, userID, taskID string) (*model.Task, error)
}

// Registry 工具注册表
type Registry struct {
	store TaskStore
}

// NewRegistry 创建工具注册表
func NewRegistry(store TaskStore) *Registry {
	return &Registry{store: store}
}

// Specs 返回广告给模型的工具 schema
func (r *Registry) Specs() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolAddTask,
			Desc: "Create a new task for the user. Title is required, due date is optional.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"title": {
					Type:     schema.String,
					Desc:     "Task title, use exactly what the user says (1-500 characters)",
					Required: true,
				},
				"description": {
					Type: schema.String,
					Desc: "Task details, only include if the user explicitly provides them",
				},
				"due_date": {
					Type: schema.String,
					Desc: "Optional due date in YYYY-MM-DD or RFC3339 format",
				},
			}),
		},
		{
			Name: ToolListTasks,
			Desc: "List the user's tasks. Use this when the user wants to see their todo list.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"status": {
					Type: schema.String,
					Desc: "Optional status filter",
					Enum: []string{"pending", "complete"},
				},
			}),
		},
		{
			Name: ToolUpdateTask,
			Desc: "Update a task's title, description or due date. Requires the task id; call list_tasks first if you only know the title.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"task_id": {
					Type:     schema.String,
					Desc:     "ID of the task to update",
					Required: true,
				},
				"title": {
					Type: schema.String,
					Desc: "New title",
				},
				"description": {
					Type: schema.String,
					Desc: "New description",
				},
				"due_date": {
					Type: schema.String,
					Desc: "New due date in YYYY-MM-DD or RFC3339 format",
				},
			}),
		},
		{
			Name: ToolDeleteTask,
			Desc: "Delete a task. Prefer task_id; a title can be given instead and is matched against existing tasks.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"task_id": {
					Type: schema.String,
					Desc: "ID of the task to delete",
				},
				"title": {
					Type: schema.String,
					Desc: "Title of the task to delete, used when task_id is unknown",
				},
			}),
		},
		{
			Name: ToolCompleteTask,
			Desc: "Mark a task as complete. Use this when the user indicates they finished a task.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"task_id": {
					Type:     schema.String,
					Desc:     "ID of the task to complete",
					Required: true,
				},
			}),
		},
	}
}

// ErrorPayload 工具失败结果
// 工具失败是数据而非异常，模型在下一轮据此做出反应
type ErrorPayload struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Dispatch 执行一次工具调用
// 返回值始终是结果载荷，失败编码在载荷内部，不向调用方抛出
func (r *Registry) Dispatch(ctx context.Context, ownerID, name, argumentsJSON string) json.RawMessage {
	switch name {
	case ToolAddTask:
		return r.addTask(ctx, ownerID, argumentsJSON)
	case ToolListTasks:
		return r.listTasks(ctx, ownerID, argumentsJSON)
	case ToolUpdateTask:
		return r.updateTask(ctx, ownerID, argumentsJSON)
	case ToolDeleteTask:
		return r.deleteTask(ctx, ownerID, argumentsJSON)
	case ToolCompleteTask:
		return r.completeTask(ctx, ownerID, argumentsJSON)
	default:
		return errorResult("unknown_tool", "tool not registered: "+name)
	}
}

type addTaskArgs struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

func (r *Registry) addTask(ctx context.Context, ownerID, argumentsJSON string) json.RawMessage {
	var args addTaskArgs
	if err := decodeArgs(argumentsJSON, &args); err != nil {
		return errorResult("validation", err.Error())
	}

	task, err := r.store.Create(ctx, ownerID, &tasks.CreateRequest{
		Title:       args.Title,
		Description: args.Description,
		DueDate:     args.DueDate,
	})
	if err != nil {
		return classifyError(err)
	}

	return marshalResult(map[string]interface{}{
		"success": true,
		"task_id": task.ID,
		"task":    summarize(task),
	})
}

type listTasksArgs struct {
	Status string `json:"status"`
}

func (r *Registry) listTasks(ctx context.Context, ownerID, argumentsJSON string) json.RawMessage {
	var args listTasksArgs
	if err := decodeArgs(argumentsJSON, &args); err != nil {
		return errorResult("validation", err.Error())
	}

	list, err := r.store.List(ctx, ownerID, args.Status)
	if err != nil {
		return classifyError(err)
	}

	summaries := make([]*taskSummary, 0, len(list))
	for _, task := range list {
		summaries = append(summaries, summarize(task))
	}

	return marshalResult(map[string]interface{}{
		"tasks": summaries,
		"total": len(summaries),
	})
}

type updateTaskArgs struct {
	TaskID      string  `json:"task_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
}

func (r *Registry) updateTask(ctx context.Context, ownerID, argumentsJSON string) json.RawMessage {
	var args updateTaskArgs
	if err := decodeArgs(argumentsJSON, &args); err != nil {
		return errorResult("validation", err.Error())
	}
	if args.TaskID == "" {
		return errorResult("validation", "task_id is required")
	}

	task, err := r.store.Update(ctx, ownerID, args.TaskID, &tasks.UpdateRequest{
		Title:       args.Title,
		Description: args.Description,
		DueDate:     args.DueDate,
	})
	if err != nil {
		return classifyError(err)
	}

	return marshalResult(map[string]interface{}{
		"success": true,
		"task_id": task.ID,
		"task":    summarize(task),
	})
}

type deleteTaskArgs struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
}

func (r *Registry) deleteTask(ctx context.Context, ownerID, argumentsJSON string) json.RawMessage {
	var args deleteTaskArgs
	if err := decodeArgs(argumentsJSON, &args); err != nil {
		return errorResult("validation", err.Error())
	}

	var task *model.Task
	var err error
	switch {
	case args.TaskID != "":
		task, err = r.store.Delete(ctx, ownerID, args.TaskID)
	case args.Title != "":
		task, err = r.store.DeleteByTitle(ctx, ownerID, args.Title)
	default:
		return errorResult("validation", "either task_id or title is required")
	}
	if err != nil {
		return classifyError(err)
	}

	return marshalResult(map[string]interface{}{
		"success": true,
		"task_id": task.ID,
		"title":   task.Title,
		"status":  "deleted",
	})
}

type completeTaskArgs struct {
	TaskID string `json:"task_id"`
}

func (r *Registry) completeTask(ctx context.Context, ownerID, argumentsJSON string) json.RawMessage {
	var args completeTaskArgs
	if err := decodeArgs(argumentsJSON, &args); err != nil {
		return errorResult("validation", err.Error())
	}
	if args.TaskID == "" {
		return errorResult("validation", "task_id is required")
	}

	task, err := r.store.Complete(ctx, ownerID, args.TaskID)
	if err != nil {
		return classifyError(err)
	}

	return marshalResult(map[string]interface{}{
		"success": true,
		"task_id": task.ID,
		"task":    summarize(task),
	})
}

// taskSummary 返回给模型的任务摘要
type taskSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	DueDate     string `json:"due_date,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func summarize(task *model.Task) *taskSummary {
	s := &taskSummary{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		CreatedAt:   task.CreatedAt.Format(time.RFC3339),
	}
	if task.DueDate != nil {
		s.DueDate = task.DueDate.Format(time.RFC3339)
	}
	return s
}

// decodeArgs 解析模型生成的参数 JSON
// 严格解析失败时先尝试修复再解析，修复不了按校验错误处理
func decodeArgs(raw string, v interface{}) error {
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return errors.New("malformed tool arguments: " + err.Error())
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return errors.New("malformed tool arguments: " + err.Error())
	}
	return nil
}

// classifyError 将存储层错误编码为结果载荷
func classifyError(err error) json.RawMessage {
	switch {
	case errors.Is(err, tasks.ErrTaskNotFound):
		return errorResult("not_found", err.Error())
	case errors.Is(err, tasks.ErrAmbiguousTitle):
		return errorResult("ambiguous", err.Error())
	case errors.Is(err, tasks.ErrInvalidTitle),
		errors.Is(err, tasks.ErrInvalidDueDate),
		errors.Is(err, tasks.ErrInvalidStatus):
		return errorResult("validation", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errorResult("timeout", "task store did not respond in time")
	default:
		return errorResult("internal", err.Error())
	}
}

func errorResult(code, message string) json.RawMessage {
	out, _ := json.Marshal(&ErrorPayload{Error: errorBody{Code: code, Message: message}})
	return out
}

func marshalResult(v interface{}) json.RawMessage {
	out, err := json.Marshal(v)
	if err != nil {
		return errorResult("internal", "failed to encode tool result")
	}
	return out
}
