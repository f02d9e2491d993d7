package service

import (
	"context"
	"errors"
	"testing"

	"Niche_Community/internal/model"
	"Niche_Community/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedNotifications(t *testing.T, s interface {
	Set(ctx context.Context, collection, id string, data map[string]any) error
}, stamps map[string]int64) {
	t.Helper()
	for id, ts := range stamps {
		require.NoError(t, s.Set(context.Background(), NotificationsCollection, id, map[string]any{
			"message":    "m-" + id,
			"timestamp":  ts,
			"userAvatar": "a.png",
		}))
	}
}

func timestamps(list []model.Notification) []int64 {
	out := make([]int64, 0, len(list))
	for _, n := range list {
		out = append(out, n.Timestamp)
	}
	return out
}

func TestNotifications_MergedNewestFirst(t *testing.T) {
	primary, realtime := newStore(t), newStore(t)
	seedNotifications(t, primary, map[string]int64{"p1": 5, "p2": 1})
	seedNotifications(t, realtime, map[string]int64{"r1": 8, "r2": 2})
	svc := NewNotificationService(primary, realtime, zap.NewNop())

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 5, 2, 1}, timestamps(list))
	assert.Equal(t, model.SourceRealtime, list[0].Source)
	assert.Equal(t, model.SourcePrimary, list[1].Source)
	assert.Equal(t, "r1", list[0].ID)

	st, _ := svc.Status()
	assert.Equal(t, state.StatusSucceeded, st)
}

func TestNotifications_OneSourceDown(t *testing.T) {
	primary := newFaultyStore(newStore(t))
	realtime := newStore(t)
	seedNotifications(t, realtime, map[string]int64{"r1": 3, "r2": 7})
	primary.failOn("query", errors.New("permission denied"))
	svc := NewNotificationService(primary, realtime, zap.NewNop())

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 3}, timestamps(list))
}

func TestNotifications_BothSourcesDown(t *testing.T) {
	primary := newFaultyStore(newStore(t))
	realtime := newFaultyStore(newStore(t))
	primary.failOn("query", errors.New("a"))
	realtime.failOn("query", errors.New("b"))
	svc := NewNotificationService(primary, realtime, zap.NewNop())

	_, err := svc.List(context.Background())
	require.Error(t, err)
	st, msg := svc.Status()
	assert.Equal(t, state.StatusFailed, st)
	assert.Contains(t, msg, "primary")
	assert.Contains(t, msg, "realtime")
}

func TestMergeNotifications_StableOnTies(t *testing.T) {
	a := []model.Notification{{ID: "x", Source: model.SourcePrimary, Timestamp: 4}}
	b := []model.Notification{{ID: "x", Source: model.SourceRealtime, Timestamp: 4}}
	merged := MergeNotifications(a, b)
	require.Len(t, merged, 2)
	assert.Equal(t, model.SourcePrimary, merged[0].Source)
	assert.Equal(t, model.SourceRealtime, merged[1].Source)

	assert.Empty(t, MergeNotifications())
	assert.NotNil(t, MergeNotifications())
}

func TestNotifications_AddAndMarkRead(t *testing.T) {
	primary, realtime := newStore(t), newStore(t)
	svc := NewNotificationService(primary, realtime, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Add(ctx, AddNotificationReq{Message: "  ", UserAvatar: "a.png"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	n, err := svc.Add(ctx, AddNotificationReq{Message: "hi", UserAvatar: "a.png"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2, "same id in both sources")
	assert.Equal(t, n.ID, list[0].ID)
	assert.Equal(t, n.ID, list[1].ID)

	require.NoError(t, svc.MarkRead(ctx, model.SourceRealtime, n.ID))
	doc, err := realtime.Get(ctx, NotificationsCollection, n.ID)
	require.NoError(t, err)
	assert.Equal(t, true, doc.Data["read"])

	assert.ErrorIs(t, svc.MarkRead(ctx, "carrier-pigeon", n.ID), ErrInvalidArgument)
}
