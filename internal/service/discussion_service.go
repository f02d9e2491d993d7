package service

import (
	"context"
	"errors"
	"strings"

	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/remote"
	"Niche_Community/internal/state"

	"go.uber.org/zap"
)

// DiscussionService 讨论帖相关动作：先改本地状态，再写远端，最后按远端结果对齐
type DiscussionService struct {
	store  remote.Store
	state  *state.Store
	events EventLog
	board  *LeaderboardService
	log    *zap.Logger
}

func NewDiscussionService(store remote.Store, st *state.Store, events EventLog, board *LeaderboardService, log *zap.Logger) *DiscussionService {
	return &DiscussionService{store: store, state: st, events: events, board: board, log: log}
}

// VoteResult Changed=false 表示该用户已经投过票，本次没有计数
type VoteResult struct {
	Changed bool            `json:"changed"`
	Votes   model.VoteTally `json:"votes"`
}

type ReactResult struct {
	Changed   bool                `json:"changed"`
	Reactions model.ReactionTally `json:"reactions"`
}

// Load 拉取社区下全部讨论帖并整体替换本地数据
func (s *DiscussionService) Load(ctx context.Context, communityID string) ([]model.Discussion, error) {
	if err := s.state.Discussions.BeginLoad(communityID); err != nil {
		if errors.Is(err, state.ErrInvalidTransition) {
			// 已有加载在进行中，返回当前数据
			return s.state.Discussions.Discussions(communityID), nil
		}
		return nil, err
	}
	docs, err := s.store.Query(ctx, remote.DiscussionsPath(communityID), remote.Query{})
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("query").Inc()
		_ = s.state.Discussions.FailLoad(communityID, err)
		return nil, err
	}
	list := make([]model.Discussion, 0, len(docs))
	for _, d := range docs {
		var x model.Discussion
		if err := remote.Decode(d, &x); err != nil {
			_ = s.state.Discussions.FailLoad(communityID, err)
			return nil, err
		}
		x.ID = d.ID
		list = append(list, x)
	}
	before := s.state.Discussions.Discussions(communityID)
	if err := s.state.Discussions.Replace(communityID, list); err != nil {
		return nil, err
	}
	for _, x := range list {
		s.state.Votes.Reconcile(x.ID, x.Votes)
		s.state.Reactions.Reconcile(x.ID, x.Reactions)
	}
	current := s.state.Discussions.Discussions(communityID)
	kept := make(map[string]bool, len(current))
	for _, x := range current {
		kept[x.ID] = true
	}
	// 远端已删除的帖子不再保留计数
	for _, x := range before {
		if !kept[x.ID] {
			s.state.Forget(x.ID)
		}
	}
	return current, nil
}

func (s *DiscussionService) Status(communityID string) (state.LoadStatus, string) {
	return s.state.Discussions.Status(communityID)
}

// Add 发布讨论帖：先插入 pending 条目，远端成功后换成远端 id，失败则标记 failed
func (s *DiscussionService) Add(ctx context.Context, id *model.Identity, communityID, content string) (model.Discussion, error) {
	if err := requireIdentity(id); err != nil {
		return model.Discussion{}, err
	}
	if strings.TrimSpace(content) == "" {
		return model.Discussion{}, invalid("content required")
	}
	rec := s.state.Discussions.Add(communityID, model.Discussion{
		Content:   content,
		Author:    displayName(id),
		CreatedAt: nowMillis(),
	})

	serverID, err := s.store.Add(ctx, remote.DiscussionsPath(communityID), map[string]any{
		"communityId": communityID,
		"content":     rec.Content,
		"author":      rec.Author,
		"authorId":    id.UID,
		"createdAt":   rec.CreatedAt,
		"clientId":    rec.ClientID,
		"votes":       map[string]any{"upvotes": 0, "downvotes": 0},
		"reactions":   map[string]any{"thumbsUp": 0, "thumbsDown": 0},
	})
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("add").Inc()
		pkg.OptimisticRollbacks.WithLabelValues("discussion").Inc()
		_ = s.state.Discussions.Fail(communityID, rec.ClientID, err)
		s.log.Warn("add discussion failed", zap.String("community", communityID), zap.Error(err))
		return s.current(communityID, rec.ClientID, rec), err
	}
	if err := s.state.Discussions.Confirm(communityID, rec.ClientID, serverID, 0); err != nil {
		return model.Discussion{}, err
	}
	emit(ctx, s.events, s.log, EventDiscussionCreated, serverID, id.UID, map[string]any{"communityId": communityID})
	s.board.award(ctx, id, PointsDiscussion)
	return s.current(communityID, serverID, rec), nil
}

func (s *DiscussionService) current(communityID, id string, fallback model.Discussion) model.Discussion {
	if x, ok := s.state.Discussions.Get(communityID, id); ok {
		return x
	}
	return fallback
}

// Vote 每个用户对每个讨论帖只能投一次票；计数用原子自增写入远端
func (s *DiscussionService) Vote(ctx context.Context, id *model.Identity, communityID, discussionID, voteType string) (VoteResult, error) {
	vt, err := state.ParseVoteType(voteType)
	if err != nil {
		return VoteResult{}, err
	}
	if err := requireIdentity(id); err != nil {
		return VoteResult{}, err
	}
	if _, ok := s.state.Discussions.Get(communityID, discussionID); !ok {
		return VoteResult{}, state.ErrStaleReference
	}
	if err := s.state.Votes.RecordVote(discussionID, vt); err != nil {
		return VoteResult{}, err
	}

	voters := remote.VotersPath(communityID, discussionID)
	err = s.store.Create(ctx, voters, id.UID, map[string]any{"type": string(vt), "votedAt": nowMillis()})
	if errors.Is(err, remote.ErrAlreadyExists) {
		_ = s.state.Votes.RevertVote(discussionID, vt)
		return VoteResult{Changed: false, Votes: s.state.Votes.Votes(discussionID)}, nil
	}
	if err != nil {
		s.rollbackVote(discussionID, vt, "create_voter", err)
		return VoteResult{}, err
	}

	field := "votes.upvotes"
	if vt == state.Downvote {
		field = "votes.downvotes"
	}
	if err := s.store.Increment(ctx, remote.DiscussionsPath(communityID), discussionID, field, 1); err != nil {
		s.rollbackVote(discussionID, vt, "increment", err)
		if _, derr := s.store.Delete(ctx, voters, id.UID); derr != nil {
			s.log.Error("voter cleanup failed", zap.String("discussion", discussionID), zap.Error(derr))
		}
		return VoteResult{}, err
	}

	if doc, err := s.store.Get(ctx, remote.DiscussionsPath(communityID), discussionID); err == nil {
		var x model.Discussion
		if err := remote.Decode(doc, &x); err == nil {
			s.state.Votes.Reconcile(discussionID, x.Votes)
			if err := s.state.Discussions.ApplyVoteUpdate(communityID, discussionID, x.Votes); err != nil {
				s.log.Debug("vote confirmed after discussion left local state", zap.String("discussion", discussionID))
			}
		}
	} else {
		pkg.RemoteErrors.WithLabelValues("get").Inc()
		s.log.Warn("read back votes failed", zap.String("discussion", discussionID), zap.Error(err))
	}

	pkg.VotesTotal.WithLabelValues(string(vt)).Inc()
	emit(ctx, s.events, s.log, EventDiscussionVoted, discussionID, id.UID, map[string]any{"communityId": communityID, "type": string(vt)})
	s.board.award(ctx, id, PointsVote)
	return VoteResult{Changed: true, Votes: s.state.Votes.Votes(discussionID)}, nil
}

func (s *DiscussionService) rollbackVote(discussionID string, vt state.VoteType, op string, cause error) {
	_ = s.state.Votes.RevertVote(discussionID, vt)
	pkg.RemoteErrors.WithLabelValues(op).Inc()
	pkg.OptimisticRollbacks.WithLabelValues("vote").Inc()
	s.log.Warn("vote rolled back", zap.String("discussion", discussionID), zap.String("op", op), zap.Error(cause))
}

// React 与 Vote 相同的流程，去重集合为 reactors
func (s *DiscussionService) React(ctx context.Context, id *model.Identity, communityID, discussionID, reaction string) (ReactResult, error) {
	rt, err := state.ParseReactionType(reaction)
	if err != nil {
		return ReactResult{}, err
	}
	if err := requireIdentity(id); err != nil {
		return ReactResult{}, err
	}
	if _, ok := s.state.Discussions.Get(communityID, discussionID); !ok {
		return ReactResult{}, state.ErrStaleReference
	}
	if err := s.state.Reactions.RecordReaction(discussionID, rt); err != nil {
		return ReactResult{}, err
	}

	reactors := remote.ReactorsPath(communityID, discussionID)
	err = s.store.Create(ctx, reactors, id.UID, map[string]any{"type": string(rt), "reactedAt": nowMillis()})
	if errors.Is(err, remote.ErrAlreadyExists) {
		_ = s.state.Reactions.RevertReaction(discussionID, rt)
		return ReactResult{Changed: false, Reactions: s.state.Reactions.Reactions(discussionID)}, nil
	}
	if err != nil {
		s.rollbackReaction(discussionID, rt, "create_reactor", err)
		return ReactResult{}, err
	}

	if err := s.store.Increment(ctx, remote.DiscussionsPath(communityID), discussionID, "reactions."+string(rt), 1); err != nil {
		s.rollbackReaction(discussionID, rt, "increment", err)
		if _, derr := s.store.Delete(ctx, reactors, id.UID); derr != nil {
			s.log.Error("reactor cleanup failed", zap.String("discussion", discussionID), zap.Error(derr))
		}
		return ReactResult{}, err
	}

	if doc, err := s.store.Get(ctx, remote.DiscussionsPath(communityID), discussionID); err == nil {
		var x model.Discussion
		if err := remote.Decode(doc, &x); err == nil {
			s.state.Reactions.Reconcile(discussionID, x.Reactions)
			_ = s.state.Discussions.ApplyReactionUpdate(communityID, discussionID, x.Reactions)
		}
	} else {
		pkg.RemoteErrors.WithLabelValues("get").Inc()
		s.log.Warn("read back reactions failed", zap.String("discussion", discussionID), zap.Error(err))
	}

	pkg.ReactionsTotal.WithLabelValues(string(rt)).Inc()
	emit(ctx, s.events, s.log, EventDiscussionReacted, discussionID, id.UID, map[string]any{"communityId": communityID, "type": string(rt)})
	return ReactResult{Changed: true, Reactions: s.state.Reactions.Reactions(discussionID)}, nil
}

func (s *DiscussionService) rollbackReaction(discussionID string, rt state.ReactionType, op string, cause error) {
	_ = s.state.Reactions.RevertReaction(discussionID, rt)
	pkg.RemoteErrors.WithLabelValues(op).Inc()
	pkg.OptimisticRollbacks.WithLabelValues("reaction").Inc()
	s.log.Warn("reaction rolled back", zap.String("discussion", discussionID), zap.String("op", op), zap.Error(cause))
}

// Reply 乐观追加回复，远端确认后按 ClientID 原地替换
func (s *DiscussionService) Reply(ctx context.Context, id *model.Identity, communityID, discussionID, text string) (model.Reply, error) {
	if err := requireIdentity(id); err != nil {
		return model.Reply{}, err
	}
	r, err := s.state.Replies.AddReply(discussionID, text, displayName(id))
	if err != nil {
		return model.Reply{}, err
	}
	serverID, err := s.store.Add(ctx, remote.RepliesPath(communityID, discussionID), map[string]any{
		"text":      r.Text,
		"author":    r.Author,
		"authorId":  id.UID,
		"createdAt": r.CreatedAt,
		"clientId":  r.ClientID,
	})
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("add").Inc()
		pkg.OptimisticRollbacks.WithLabelValues("reply").Inc()
		pkg.RepliesTotal.WithLabelValues(string(model.SyncFailed)).Inc()
		_ = s.state.Replies.Fail(discussionID, r.ClientID, err)
		r.Status, r.Error = model.SyncFailed, err.Error()
		return r, err
	}
	if err := s.state.Replies.Confirm(discussionID, r.ClientID, serverID, 0); err != nil {
		return model.Reply{}, err
	}
	r.ID, r.Status = serverID, model.SyncConfirmed
	pkg.RepliesTotal.WithLabelValues(string(model.SyncConfirmed)).Inc()
	emit(ctx, s.events, s.log, EventReplyCreated, discussionID, id.UID, map[string]any{"communityId": communityID, "replyId": serverID})
	s.board.award(ctx, id, PointsReply)
	return r, nil
}

// Replies 拉取远端回复并合并到本地，返回合并后的序列
func (s *DiscussionService) Replies(ctx context.Context, communityID, discussionID string) ([]model.Reply, error) {
	docs, err := s.store.Query(ctx, remote.RepliesPath(communityID, discussionID), remote.Query{}.Order("createdAt", remote.Asc))
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("query").Inc()
		return nil, err
	}
	confirmed := make([]model.Reply, 0, len(docs))
	for _, d := range docs {
		var r model.Reply
		if err := remote.Decode(d, &r); err != nil {
			return nil, err
		}
		r.ID = d.ID
		confirmed = append(confirmed, r)
	}
	s.state.Replies.Merge(discussionID, confirmed)
	return s.state.Replies.Replies(discussionID), nil
}

func (s *DiscussionService) Votes(postID string) *model.VoteTally {
	return state.SelectVotesByPostID(s.state, postID)
}

func (s *DiscussionService) Reactions(postID string) *model.ReactionTally {
	return state.SelectReactionsByPostID(s.state, postID)
}
