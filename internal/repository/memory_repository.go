package repository

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository 是 Repository 的内存实现。
// 实体以值的形式保存，读取时返回副本，调用方的修改只能通过 Update 生效。
type MemoryRepository[T Entity] struct {
	mu       sync.RWMutex
	entities map[string]T
	order    []string // 插入顺序
}

// NewMemoryRepository 创建一个空的内存仓库。
func NewMemoryRepository[T Entity]() *MemoryRepository[T] {
	return &MemoryRepository[T]{entities: make(map[string]T)}
}

// Create 在 ID 不存在时插入实体。
func (r *MemoryRepository[T]) Create(_ context.Context, entity T) error {
	id := entity.GetID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[id]; ok {
		return fmt.Errorf("create %q: %w", id, ErrDuplicateKey)
	}
	r.entities[id] = entity
	r.order = append(r.order, id)
	return nil
}

// FindByID 返回实体的副本。
func (r *MemoryRepository[T]) FindByID(_ context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.entities[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("find %q: %w", id, ErrNotFound)
	}
	return entity, nil
}

// Update 替换已存在的实体，不改变其插入顺序。
func (r *MemoryRepository[T]) Update(_ context.Context, entity T) error {
	id := entity.GetID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[id]; !ok {
		return fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	r.entities[id] = entity
	return nil
}

// Filter 按插入顺序返回所有满足条件的实体副本。
func (r *MemoryRepository[T]) Filter(match func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]T, 0)
	for _, id := range r.order {
		if entity := r.entities[id]; match(entity) {
			result = append(result, entity)
		}
	}
	return result
}
