package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/remote"
	"Niche_Community/internal/state"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const NotificationsCollection = "notifications"

// NotificationService 通知分别存放在主库和实时库，读取时按时间倒序合并
type NotificationService struct {
	primary  remote.Store
	realtime remote.Store
	list     *state.Collection[model.Notification]
	log      *zap.Logger
}

func NewNotificationService(primary, realtime remote.Store, log *zap.Logger) *NotificationService {
	return &NotificationService{primary: primary, realtime: realtime, list: state.NewCollection[model.Notification](), log: log}
}

type AddNotificationReq struct {
	Message    string `json:"message" validate:"required,nonblank"`
	UserAvatar string `json:"userAvatar" validate:"required,nonblank"`
}

// List 两个来源并发读取；单个来源失败时只返回另一个来源的数据，全部失败才返回错误。
// 两个来源的 id 可能重复，通过 Source 区分，不做去重
func (s *NotificationService) List(ctx context.Context) ([]model.Notification, error) {
	_ = s.list.Begin()
	var (
		g                 errgroup.Group
		fromPrimary       []model.Notification
		fromRealtime      []model.Notification
		errPrimary, errRT error
	)
	g.Go(func() error {
		fromPrimary, errPrimary = s.fetch(ctx, s.primary, model.SourcePrimary)
		return nil
	})
	g.Go(func() error {
		fromRealtime, errRT = s.fetch(ctx, s.realtime, model.SourceRealtime)
		return nil
	})
	_ = g.Wait()

	if errPrimary != nil && errRT != nil {
		err := errors.Join(errPrimary, errRT)
		_ = s.list.Fail(err)
		return nil, err
	}
	if errPrimary != nil {
		s.log.Warn("primary notifications unavailable", zap.Error(errPrimary))
	}
	if errRT != nil {
		s.log.Warn("realtime notifications unavailable", zap.Error(errRT))
	}
	merged := MergeNotifications(fromPrimary, fromRealtime)
	_ = s.list.Succeed(merged)
	return merged, nil
}

func (s *NotificationService) fetch(ctx context.Context, store remote.Store, source string) ([]model.Notification, error) {
	docs, err := store.Query(ctx, NotificationsCollection, remote.Query{}.Order("timestamp", remote.Desc))
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("query").Inc()
		return nil, fmt.Errorf("%s notifications: %w", source, err)
	}
	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		var n model.Notification
		if err := remote.Decode(d, &n); err != nil {
			return nil, err
		}
		n.ID = d.ID
		n.Source = source
		out = append(out, n)
	}
	return out, nil
}

// MergeNotifications 按 timestamp 倒序稳定合并
func MergeNotifications(lists ...[]model.Notification) []model.Notification {
	var out []model.Notification
	for _, l := range lists {
		out = append(out, l...)
	}
	if out == nil {
		out = []model.Notification{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

// Add 同一条通知写入两个来源，使用相同 id
func (s *NotificationService) Add(ctx context.Context, req AddNotificationReq) (model.Notification, error) {
	if err := validateStruct(req); err != nil {
		return model.Notification{}, err
	}
	n := model.Notification{Message: req.Message, UserAvatar: req.UserAvatar, Timestamp: nowMillis()}
	data := map[string]any{
		"message":    n.Message,
		"userAvatar": n.UserAvatar,
		"timestamp":  n.Timestamp,
		"read":       false,
	}
	id, err := s.primary.Add(ctx, NotificationsCollection, data)
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("add").Inc()
		return model.Notification{}, err
	}
	n.ID, n.Source = id, model.SourcePrimary
	if err := s.realtime.Set(ctx, NotificationsCollection, id, data); err != nil {
		pkg.RemoteErrors.WithLabelValues("set").Inc()
		s.log.Warn("realtime notification write failed", zap.String("id", id), zap.Error(err))
		return n, err
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, source, id string) error {
	var store remote.Store
	switch source {
	case model.SourcePrimary:
		store = s.primary
	case model.SourceRealtime:
		store = s.realtime
	default:
		return invalid("unknown notification source")
	}
	return store.Update(ctx, NotificationsCollection, id, map[string]any{"read": true})
}

func (s *NotificationService) Status() (state.LoadStatus, string) {
	return s.list.Status()
}
