// Package remote 文档存储接口：文档按斜杠路径的集合分组，支持过滤排序查询和原子计数
package remote

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrNotNumeric    = errors.New("field is not numeric")
	ErrInvalidPath   = errors.New("invalid field path")
)

// Document 一条文档，Data 为解码后的 JSON
type Document struct {
	ID         string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// Store 由 mysql 和 redis 两个 DocumentRepository 实现
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Create 只插入，id 已存在时返回 ErrAlreadyExists
	Create(ctx context.Context, collection, id string, data map[string]any) error
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update 合并写入，键可以是点分路径
	Update(ctx context.Context, collection, id string, partial map[string]any) error
	// Increment 原子加减数值字段，结果小于 0 时归零
	Increment(ctx context.Context, collection, id, path string, delta int64) error
	// Delete 幂等，removed 表示本次确实删除了文档
	Delete(ctx context.Context, collection, id string) (removed bool, err error)
}
