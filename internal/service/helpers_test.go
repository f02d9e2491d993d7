package service

import (
	"context"
	"sync"
	"testing"

	"Niche_Community/internal/model"
	"Niche_Community/internal/remote"
	redisrepo "Niche_Community/internal/repository/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T) *redisrepo.DocumentRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisrepo.NewDocumentRepository(rdb)
}

func user(uid string) *model.Identity {
	return &model.Identity{UID: uid, DisplayName: "user " + uid, PhotoURL: uid + ".png"}
}

// faultyStore 按操作名注入错误
type faultyStore struct {
	remote.Store
	mu    sync.Mutex
	fails map[string]error
}

func newFaultyStore(inner remote.Store) *faultyStore {
	return &faultyStore{Store: inner, fails: map[string]error{}}
}

func (f *faultyStore) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fails, op)
		return
	}
	f.fails[op] = err
}

func (f *faultyStore) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fails[op]
}

func (f *faultyStore) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	if err := f.err("get"); err != nil {
		return remote.Document{}, err
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *faultyStore) Query(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	if err := f.err("query"); err != nil {
		return nil, err
	}
	return f.Store.Query(ctx, collection, q)
}

func (f *faultyStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := f.err("add"); err != nil {
		return "", err
	}
	return f.Store.Add(ctx, collection, data)
}

func (f *faultyStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if err := f.err("set"); err != nil {
		return err
	}
	return f.Store.Set(ctx, collection, id, data)
}

func (f *faultyStore) Increment(ctx context.Context, collection, id, path string, delta int64) error {
	if err := f.err("increment"); err != nil {
		return err
	}
	return f.Store.Increment(ctx, collection, id, path, delta)
}

type recordedEvent struct {
	Type, Aggregate, Actor string
	Payload                map[string]any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) Append(_ context.Context, eventType, aggregateID, actorID string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{eventType, aggregateID, actorID, payload})
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
