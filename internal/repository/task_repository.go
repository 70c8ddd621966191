package repository

import (
	"github.com/ashwinyue/todo-chat/internal/model"
	"gorm.io/gorm"
)

// TaskRepository 任务数据访问
// 所有查询都按归属用户过滤
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓库
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create 创建任务
func (r *TaskRepository) Create(task *model.Task) error {
	return r.db.Create(task).Error
}

// GetForUser 获取任务
func (r *TaskRepository) GetForUser(id, userID string) (*model.Task, error) {
	var task model.Task
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByUser 列出用户任务，最新优先
// completed 为 nil 时返回全部
func (r *TaskRepository) ListByUser(userID string, completed *bool) ([]*model.Task, error) {
	var tasks []*model.Task
	query := r.db.Where("user_id = ?", userID)
	if completed != nil {
		query = query.Where("completed = ?", *completed)
	}
	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// FindByTitleForUser 按标题模糊匹配用户任务
func (r *TaskRepository) FindByTitleForUser(userID, title string) ([]*model.Task, error) {
	var tasks []*model.Task
	err := r.db.Where("user_id = ? AND title ILIKE ?", userID, "%"+title+"%").
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

// Update 更新任务
func (r *TaskRepository) Update(task *model.Task) error {
	return r.db.Save(task).Error
}

// DeleteForUser 删除任务，未命中返回 gorm.ErrRecordNotFound
func (r *TaskRepository) DeleteForUser(id, userID string) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
