package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 消息角色（封闭集合，不允许第三种取值）
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation 会话，归属于唯一用户
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"index;size:36;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Messages  []Message `gorm:"foreignKey:ConversationID" json:"-"`
}

// Message 会话消息，写入后不可变（追加日志）
// Seq 由数据库序列分配，保证同会话消息的全序与插入序一致
type Message struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	Seq            int64           `gorm:"autoIncrement;uniqueIndex" json:"-"`
	ConversationID string          `gorm:"index;size:36;not null" json:"conversation_id"`
	Role           string          `gorm:"size:20;index" json:"role"` // user, assistant
	Content        string          `gorm:"type:text" json:"content"`
	ToolCalls      ToolCallRecords `gorm:"type:jsonb" json:"tool_calls,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
}

// ToolCallRecord 单次工具调用记录，嵌入 assistant 消息
type ToolCallRecord struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Result    json.RawMessage `json:"result"`
}

// ToolCallRecords jsonb 列类型
type ToolCallRecords []ToolCallRecord

// Value 实现 driver.Valuer
func (r ToolCallRecords) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan 实现 sql.Scanner
func (r *ToolCallRecords) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return errors.New("unsupported column type for tool_calls")
	}
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

func (Message) TableName() string {
	return "messages"
}
