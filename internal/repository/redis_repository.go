package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisRepository 是 Repository 的 Redis 实现，实体以 JSON 保存在 "<prefix>:<id>" 下。
// Create 使用 WATCH + MULTI/EXEC 实现“不存在才写入”，Update 使用 SET XX。
type RedisRepository[T Entity] struct {
	redisClient *redis.Client
	prefix      string
}

// NewRedisRepository 创建一个新的 RedisRepository 实例。
func NewRedisRepository[T Entity](redisClient *redis.Client, prefix string) *RedisRepository[T] {
	return &RedisRepository[T]{redisClient: redisClient, prefix: prefix}
}

func (r *RedisRepository[T]) key(id string) string {
	return r.prefix + ":" + id
}

// Create 仅在键不存在时写入。
func (r *RedisRepository[T]) Create(ctx context.Context, entity T) error {
	return r.create(ctx, entity, nil)
}

// create 在 WATCH 保护下检查键不存在，再用 MULTI/EXEC 一次性写入实体和 queue 追加的命令，
// 实体与其索引要么一起写入，要么都不写入。WATCH 的键被并发修改时按重复键处理。
func (r *RedisRepository[T]) create(ctx context.Context, entity T, queue func(pipe redis.Pipeliner)) error {
	id := entity.GetID()
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %q: %w", r.prefix, id, err)
	}
	key := r.key(id)
	err = r.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateKey
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if queue != nil {
				queue(pipe)
			}
			return nil
		})
		return err
	}, key)
	switch {
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("create %q: %w", id, ErrDuplicateKey)
	case err != nil:
		return fmt.Errorf("failed to create %s %q: %w", r.prefix, id, err)
	}
	return nil
}

// FindByID 读取并反序列化实体。
func (r *RedisRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var entity T
	data, err := r.redisClient.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return entity, fmt.Errorf("find %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return entity, fmt.Errorf("failed to get %s %q: %w", r.prefix, id, err)
	}
	if err := json.Unmarshal(data, &entity); err != nil {
		return entity, fmt.Errorf("failed to unmarshal %s %q: %w", r.prefix, id, err)
	}
	return entity, nil
}

// Update 仅在键已存在时覆盖。
func (r *RedisRepository[T]) Update(ctx context.Context, entity T) error {
	id := entity.GetID()
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %q: %w", r.prefix, id, err)
	}
	ok, err := r.redisClient.SetXX(ctx, r.key(id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update %s %q: %w", r.prefix, id, err)
	}
	if !ok {
		return fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	return nil
}

// findMany 按给定顺序批量读取实体，已不存在的键会被跳过。
func (r *RedisRepository[T]) findMany(ctx context.Context, ids []string) ([]T, error) {
	result := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget %s: %w", r.prefix, err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var entity T
		if err := json.Unmarshal([]byte(s), &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s %q: %w", r.prefix, ids[i], err)
		}
		result = append(result, entity)
	}
	return result, nil
}
