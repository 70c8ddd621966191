package model

import "time"

// Task 用户待办任务
type Task struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"index;size:36;not null" json:"user_id"`
	Title       string     `gorm:"size:500;not null" json:"title"`
	Description string     `gorm:"size:5000" json:"description,omitempty"`
	Completed   bool       `gorm:"default:false;index" json:"completed"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Task) TableName() string {
	return "tasks"
}
