package model

import "time"

// AuthorRole 标识消息的发送方。
type AuthorRole string

const (
	AuthorRoleUser AuthorRole = "user"
	AuthorRoleBot  AuthorRole = "bot"
)

// Valid 判断角色是否为已知取值。
func (r AuthorRole) Valid() bool {
	return r == AuthorRoleUser || r == AuthorRoleBot
}

// ChatMessage 代表会话中的单条消息，创建后不可修改。
// ChatID 只是指向 ChatSession 的查找键，会话本身不持有消息列表。
type ChatMessage struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChatID     string     `gorm:"type:varchar(36);index;not null" json:"chatId"`
	Timestamp  time.Time  `gorm:"precision:6;index;not null" json:"timestamp"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	AuthorRole AuthorRole `gorm:"type:varchar(16);not null" json:"authorRole"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// GetID 返回消息的唯一标识。
func (m ChatMessage) GetID() string {
	return m.ID
}

// NewUserMessage 构造一条用户消息，ID 由调用方生成。
func NewUserMessage(id, chatID, content string, ts time.Time) ChatMessage {
	return ChatMessage{ID: id, ChatID: chatID, Timestamp: ts, Content: content, AuthorRole: AuthorRoleUser}
}

// NewBotMessage 构造一条机器人回复消息。
func NewBotMessage(id, chatID, content string, ts time.Time) ChatMessage {
	return ChatMessage{ID: id, ChatID: chatID, Timestamp: ts, Content: content, AuthorRole: AuthorRoleBot}
}
