package service

import (
	"context"
	"errors"

	"Niche_Community/internal/model"
	"Niche_Community/internal/remote"

	"go.uber.org/zap"
)

const LeaderboardCollection = "leaderboard"

// 积分规则
const (
	PointsDiscussion int64 = 5
	PointsReply      int64 = 2
	PointsVote       int64 = 1
)

type LeaderboardService struct {
	store remote.Store
	log   *zap.Logger
}

func NewLeaderboardService(store remote.Store, log *zap.Logger) *LeaderboardService {
	return &LeaderboardService{store: store, log: log}
}

// Top 积分从高到低，n<=0 时默认 10
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 || n > 100 {
		n = 10
	}
	docs, err := s.store.Query(ctx, LeaderboardCollection, remote.Query{}.Order("points", remote.Desc).Take(n))
	if err != nil {
		return nil, err
	}
	out := make([]model.LeaderboardEntry, 0, len(docs))
	for _, d := range docs {
		var e model.LeaderboardEntry
		if err := remote.Decode(d, &e); err != nil {
			return nil, err
		}
		e.ID = d.ID
		out = append(out, e)
	}
	return out, nil
}

// Award 原子加分，第一次加分时创建条目
func (s *LeaderboardService) Award(ctx context.Context, id *model.Identity, points int64) error {
	err := s.store.Increment(ctx, LeaderboardCollection, id.UID, "points", points)
	if !errors.Is(err, remote.ErrNotFound) {
		return err
	}
	err = s.store.Create(ctx, LeaderboardCollection, id.UID, map[string]any{
		"name":   displayName(id),
		"avatar": id.PhotoURL,
		"points": max(points, 0),
	})
	if errors.Is(err, remote.ErrAlreadyExists) {
		// 并发创建，退回自增
		return s.store.Increment(ctx, LeaderboardCollection, id.UID, "points", points)
	}
	return err
}

// award 积分失败不影响主流程，只记日志
func (s *LeaderboardService) award(ctx context.Context, id *model.Identity, points int64) {
	if s == nil {
		return
	}
	if err := s.Award(ctx, id, points); err != nil {
		s.log.Warn("leaderboard award failed", zap.String("uid", id.UID), zap.Int64("points", points), zap.Error(err))
	}
}
