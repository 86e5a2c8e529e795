// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound 表示指定 ID 的实体不存在。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey 表示创建时 ID 已被占用。
	ErrDuplicateKey = errors.New("duplicate key")
)

// Entity 是可以被 Repository 存储的实体，以字符串 ID 作为主键。
type Entity interface {
	GetID() string
}

// Repository 定义了针对单一实体类型的通用持久化操作。
// 所有实现都必须可以被多个请求并发调用。
type Repository[T Entity] interface {
	// Create 持久化一个新实体；ID 已存在时返回 ErrDuplicateKey。
	Create(ctx context.Context, entity T) error
	// FindByID 按 ID 查找实体；不存在时返回 ErrNotFound。
	FindByID(ctx context.Context, id string) (T, error)
	// Update 整体替换已存在的实体（后写者胜）；不存在时返回 ErrNotFound。
	Update(ctx context.Context, entity T) error
}
