package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"Niche_Community/internal/remote"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DocKeyPrefix = "doc"
	DocSeqKey    = "doc:seq" // 全局自增序号，用于还原创建顺序
	maxTxRetries = 16
)

// envelope 哈希字段中存放的内容
type envelope struct {
	Seq        int64          `json:"seq"`
	CreateTime int64          `json:"createTime"`
	UpdateTime int64          `json:"updateTime"`
	Data       map[string]any `json:"data"`
}

// DocumentRepository 每个集合一个 hash：doc:{collection}，field 为文档 id
type DocumentRepository struct {
	RDB *redis.Client
}

var _ remote.Store = (*DocumentRepository)(nil)

func NewDocumentRepository(rdb *redis.Client) *DocumentRepository {
	return &DocumentRepository{RDB: rdb}
}

func docKey(collection string) string {
	return fmt.Sprintf("%s:%s", DocKeyPrefix, collection)
}

func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	raw, err := r.RDB.HGet(ctx, docKey(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return remote.Document{}, remote.ErrNotFound
	}
	if err != nil {
		return remote.Document{}, err
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		return remote.Document{}, err
	}
	return env.document(id), nil
}

func (r *DocumentRepository) Query(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	all, err := r.RDB.HGetAll(ctx, docKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	type item struct {
		id  string
		env envelope
	}
	items := make([]item, 0, len(all))
	for id, raw := range all {
		env, err := decodeEnvelope(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item{id: id, env: env})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].env.Seq < items[j].env.Seq })
	docs := make([]remote.Document, 0, len(items))
	for _, it := range items {
		docs = append(docs, it.env.document(it.id))
	}
	return remote.Apply(docs, q), nil
}

func (r *DocumentRepository) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := r.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Create HSETNX 保证只插入一次
func (r *DocumentRepository) Create(ctx context.Context, collection, id string, data map[string]any) error {
	seq, err := r.RDB.Incr(ctx, DocSeqKey).Result()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	raw, err := encodeEnvelope(envelope{Seq: seq, CreateTime: now, UpdateTime: now, Data: data})
	if err != nil {
		return err
	}
	ok, err := r.RDB.HSetNX(ctx, docKey(collection), id, raw).Result()
	if err != nil {
		return err
	}
	if !ok {
		return remote.ErrAlreadyExists
	}
	return nil
}

// Set 覆盖写入；已存在的文档保留创建时间和序号
func (r *DocumentRepository) Set(ctx context.Context, collection, id string, data map[string]any) error {
	key := docKey(collection)
	return r.watch(ctx, key, func(tx *redis.Tx) error {
		now := time.Now().UnixMilli()
		env := envelope{CreateTime: now}
		raw, err := tx.HGet(ctx, key, id).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if env.Seq, err = tx.Incr(ctx, DocSeqKey).Result(); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if env, err = decodeEnvelope(raw); err != nil {
				return err
			}
		}
		env.UpdateTime = now
		env.Data = data
		return r.write(ctx, tx, key, id, env)
	})
}

func (r *DocumentRepository) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	return r.mutate(ctx, collection, id, func(data map[string]any) error {
		return remote.Merge(data, partial)
	})
}

// Increment WATCH + MULTI 保证并发自增不丢失，结果不小于 0
func (r *DocumentRepository) Increment(ctx context.Context, collection, id, path string, delta int64) error {
	return r.mutate(ctx, collection, id, func(data map[string]any) error {
		_, err := remote.IncrementField(data, path, delta)
		return err
	})
}

// Delete 幂等删除，removed 表示本次确实删掉了文档
func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) (bool, error) {
	n, err := r.RDB.HDel(ctx, docKey(collection), id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DocumentRepository) mutate(ctx context.Context, collection, id string, fn func(data map[string]any) error) error {
	key := docKey(collection)
	return r.watch(ctx, key, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return remote.ErrNotFound
		}
		if err != nil {
			return err
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			return err
		}
		if env.Data == nil {
			env.Data = map[string]any{}
		}
		if err := fn(env.Data); err != nil {
			return err
		}
		env.UpdateTime = time.Now().UnixMilli()
		return r.write(ctx, tx, key, id, env)
	})
}

func (r *DocumentRepository) write(ctx context.Context, tx *redis.Tx, key, id string, env envelope) error {
	raw, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, id, raw)
		return nil
	})
	return err
}

// watch 乐观锁冲突时重试
func (r *DocumentRepository) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.RDB.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func encodeEnvelope(env envelope) (string, error) {
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEnvelope(raw string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, fmt.Errorf("decode document envelope: %w", err)
	}
	return env, nil
}

func (e envelope) document(id string) remote.Document {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	return remote.Document{
		ID:         id,
		Data:       data,
		CreateTime: time.UnixMilli(e.CreateTime),
		UpdateTime: time.UnixMilli(e.UpdateTime),
	}
}
