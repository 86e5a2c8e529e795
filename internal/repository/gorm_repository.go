package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormRepository 是 Repository 的 GORM 实现。
// 打开 *gorm.DB 时需要设置 TranslateError: true，才能把唯一键冲突识别为 ErrDuplicateKey。
type GormRepository[T Entity] struct {
	db *gorm.DB
}

// NewGormRepository 创建一个新的 GormRepository 实例。
func NewGormRepository[T Entity](db *gorm.DB) *GormRepository[T] {
	return &GormRepository[T]{db: db}
}

// Create 在数据库中插入一条新记录。
func (r *GormRepository[T]) Create(ctx context.Context, entity T) error {
	err := r.db.WithContext(ctx).Create(&entity).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("create %q: %w", entity.GetID(), ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("create %q: %w", entity.GetID(), err)
	}
	return nil
}

// FindByID 根据主键查找一条记录。
func (r *GormRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var entity T
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity, fmt.Errorf("find %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return entity, fmt.Errorf("find %q: %w", id, err)
	}
	return entity, nil
}

// Update 在同一个事务中确认记录存在并整体保存。
func (r *GormRepository[T]) Update(ctx context.Context, entity T) error {
	id := entity.GetID()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing T
		err := tx.Where("id = ?", id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("update %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update %q: %w", id, err)
		}
		if err := tx.Save(&entity).Error; err != nil {
			return fmt.Errorf("update %q: %w", id, err)
		}
		return nil
	})
}
