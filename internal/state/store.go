// Package state 进程内的客户端状态：投票/反应计数、回复、讨论帖集合和选择器
package state

import "Niche_Community/internal/model"

// Store 启动时创建一次，由各 service 共享
type Store struct {
	Votes       *VoteLedger
	Reactions   *ReactionLedger
	Replies     *ReplyLedger
	Discussions *DiscussionCollection

	voteViews     memo[model.VoteTally]
	reactionViews memo[model.ReactionTally]
}

func NewStore() *Store {
	return &Store{
		Votes:       NewVoteLedger(),
		Reactions:   NewReactionLedger(),
		Replies:     NewReplyLedger(),
		Discussions: NewDiscussionCollection(),
	}
}

// Forget 丢弃帖子的计数和缓存视图，帖子不再出现在任何社区的数据中时调用
func (s *Store) Forget(postID string) {
	s.Votes.Forget(postID)
	s.Reactions.Forget(postID)
	s.voteViews.evict(postID)
	s.reactionViews.evict(postID)
}
