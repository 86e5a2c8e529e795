// Package model 包含了应用的数据模型定义。
package model

// ChatSession 代表一次与机器人的会话。
// ID 创建后不可变，编辑操作只允许修改 Title。
type ChatSession struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(64);not null" json:"userId"`
	Title  string `gorm:"type:varchar(255);not null" json:"title"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// GetID 返回会话的唯一标识。
func (s ChatSession) GetID() string {
	return s.ID
}
