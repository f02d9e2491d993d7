package state

import (
	"errors"
	"sync"
)

// LoadStatus 远端集合的加载状态
type LoadStatus string

const (
	StatusIdle      LoadStatus = "idle"
	StatusLoading   LoadStatus = "loading"
	StatusSucceeded LoadStatus = "succeeded"
	StatusFailed    LoadStatus = "failed"
)

var ErrInvalidTransition = errors.New("invalid load status transition")

// Collection 带加载状态的列表。加载中读取返回上一次的结果
type Collection[T any] struct {
	mu     sync.RWMutex
	status LoadStatus
	items  []T
	err    string
}

func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{status: StatusIdle}
}

// Begin idle/succeeded/failed -> loading
func (c *Collection[T]) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusLoading {
		return ErrInvalidTransition
	}
	c.status = StatusLoading
	return nil
}

// Succeed loading -> succeeded，整体替换 items
func (c *Collection[T]) Succeed(items []T) error {
	return c.Resolve(func([]T) []T { return items })
}

// Resolve 与 Succeed 相同，但新数据由旧数据计算得出，整个过程持有写锁
func (c *Collection[T]) Resolve(fn func(prev []T) []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusLoading {
		return ErrInvalidTransition
	}
	c.status = StatusSucceeded
	c.items = append([]T(nil), fn(c.items)...)
	c.err = ""
	return nil
}

// Fail loading -> failed，保留旧数据
func (c *Collection[T]) Fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusLoading {
		return ErrInvalidTransition
	}
	c.status = StatusFailed
	if err != nil {
		c.err = err.Error()
	}
	return nil
}

func (c *Collection[T]) Status() (LoadStatus, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status, c.err
}

// Items 返回副本，调用方可随意修改
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Mutate 在写锁内修改条目，不改变加载状态
func (c *Collection[T]) Mutate(fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := fn(c.items)
	if err != nil {
		return err
	}
	c.items = items
	return nil
}
