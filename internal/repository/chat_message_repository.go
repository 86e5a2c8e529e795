package repository

import (
	"context"
	"fmt"

	"copilot-chat-go/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ChatMessageRepository 定义了消息的持久化操作。
type ChatMessageRepository interface {
	Repository[model.ChatMessage]
	// FindByChatID 按存储（插入）顺序返回会话的全部消息；没有消息时返回空切片。
	// 它不区分"会话存在但没有消息"与"会话不存在"，由调用方自行判断。
	FindByChatID(ctx context.Context, chatID string) ([]model.ChatMessage, error)
}

type gormChatMessageRepository struct {
	*GormRepository[model.ChatMessage]
	db *gorm.DB
}

// NewChatMessageRepository 创建一个基于 GORM 的 ChatMessageRepository。
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &gormChatMessageRepository{GormRepository: NewGormRepository[model.ChatMessage](db), db: db}
}

// FindByChatID 以时间戳升序近似插入顺序，时间戳相同时按 ID 排序。
func (r *gormChatMessageRepository) FindByChatID(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	messages := make([]model.ChatMessage, 0)
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("timestamp asc").
		Order("id asc").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find messages of chat %q: %w", chatID, err)
	}
	return messages, nil
}

type redisChatMessageRepository struct {
	*RedisRepository[model.ChatMessage]
	redisClient *redis.Client
}

// NewRedisChatMessageRepository 创建一个基于 Redis 的 ChatMessageRepository。
// 每个会话在 "chat_messages:<chatId>" 列表中按插入顺序记录消息 ID。
func NewRedisChatMessageRepository(redisClient *redis.Client) ChatMessageRepository {
	return &redisChatMessageRepository{
		RedisRepository: NewRedisRepository[model.ChatMessage](redisClient, "chat_message"),
		redisClient:     redisClient,
	}
}

func chatIndexKey(chatID string) string {
	return fmt.Sprintf("chat_messages:%s", chatID)
}

// Create 在同一个事务中写入消息并把 ID 追加到会话索引。
func (r *redisChatMessageRepository) Create(ctx context.Context, message model.ChatMessage) error {
	return r.create(ctx, message, func(pipe redis.Pipeliner) {
		pipe.RPush(ctx, chatIndexKey(message.ChatID), message.ID)
	})
}

// FindByChatID 读取会话索引并批量获取消息。
func (r *redisChatMessageRepository) FindByChatID(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	ids, err := r.redisClient.LRange(ctx, chatIndexKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read message index of chat %q: %w", chatID, err)
	}
	return r.findMany(ctx, ids)
}

type memoryChatMessageRepository struct {
	*MemoryRepository[model.ChatMessage]
}

// NewMemoryChatMessageRepository 创建一个内存 ChatMessageRepository。
func NewMemoryChatMessageRepository() ChatMessageRepository {
	return &memoryChatMessageRepository{MemoryRepository: NewMemoryRepository[model.ChatMessage]()}
}

func (r *memoryChatMessageRepository) FindByChatID(_ context.Context, chatID string) ([]model.ChatMessage, error) {
	return r.Filter(func(m model.ChatMessage) bool { return m.ChatID == chatID }), nil
}
