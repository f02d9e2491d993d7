package state

import (
	"sync"

	"Niche_Community/internal/model"
)

// memo 按 id 缓存派生视图，计数版本不变时返回同一个指针
type memo[T any] struct {
	mu    sync.Mutex
	views map[string]memoEntry[T]
}

type memoEntry[T any] struct {
	version uint64
	view    *T
}

func (m *memo[T]) get(id string, tally T, version uint64) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.views[id]; ok && e.version >= version {
		return e.view
	}
	if m.views == nil {
		m.views = make(map[string]memoEntry[T])
	}
	v := tally
	m.views[id] = memoEntry[T]{version: version, view: &v}
	return &v
}

func (m *memo[T]) evict(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, id)
}

// SelectVotesByPostID 返回帖子投票计数的视图，与缓存共享，调用方只读不写。
// 没有记录时每次返回新的 {0,0}，不进缓存
func SelectVotesByPostID(s *Store, postID string) *model.VoteTally {
	tally, version := s.Votes.l.snapshot(postID)
	if version == 0 {
		return &model.VoteTally{}
	}
	return s.voteViews.get(postID, tally, version)
}

// SelectReactionsByPostID 同上，默认 {thumbsUp:0, thumbsDown:0}
func SelectReactionsByPostID(s *Store, postID string) *model.ReactionTally {
	tally, version := s.Reactions.l.snapshot(postID)
	if version == 0 {
		return &model.ReactionTally{}
	}
	return s.reactionViews.get(postID, tally, version)
}
