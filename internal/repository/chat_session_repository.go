package repository

import (
	"copilot-chat-go/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ChatSessionRepository 定义了会话的持久化操作。
type ChatSessionRepository interface {
	Repository[model.ChatSession]
}

// NewChatSessionRepository 创建一个基于 GORM 的 ChatSessionRepository。
func NewChatSessionRepository(db *gorm.DB) ChatSessionRepository {
	return NewGormRepository[model.ChatSession](db)
}

// NewRedisChatSessionRepository 创建一个基于 Redis 的 ChatSessionRepository。
func NewRedisChatSessionRepository(redisClient *redis.Client) ChatSessionRepository {
	return NewRedisRepository[model.ChatSession](redisClient, "chat_session")
}

// NewMemoryChatSessionRepository 创建一个内存 ChatSessionRepository。
func NewMemoryChatSessionRepository() ChatSessionRepository {
	return NewMemoryRepository[model.ChatSession]()
}
