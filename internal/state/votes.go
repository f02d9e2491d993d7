package state

import (
	"errors"
	"sync"

	"Niche_Community/internal/model"
)

var (
	ErrInvalidVoteType     = errors.New("invalid vote type")
	ErrInvalidReactionType = errors.New("invalid reaction type")
)

type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

func ParseVoteType(s string) (VoteType, error) {
	switch VoteType(s) {
	case Upvote, Downvote:
		return VoteType(s), nil
	}
	return "", ErrInvalidVoteType
}

type ReactionType string

const (
	ThumbsUp   ReactionType = "thumbsUp"
	ThumbsDown ReactionType = "thumbsDown"
)

func ParseReactionType(s string) (ReactionType, error) {
	switch ReactionType(s) {
	case ThumbsUp, ThumbsDown:
		return ReactionType(s), nil
	}
	return "", ErrInvalidReactionType
}

// ledger 以 id 为键的计数表，每次变更版本号递增，供选择器做缓存判断。
// 版本号取自整张表的序号，条目被 forget 后重建也不会回退
type ledger[T comparable] struct {
	mu      sync.RWMutex
	seq     uint64
	entries map[string]*ledgerEntry[T]
}

type ledgerEntry[T comparable] struct {
	tally   T
	version uint64
}

func newLedger[T comparable]() *ledger[T] {
	return &ledger[T]{entries: make(map[string]*ledgerEntry[T])}
}

func (l *ledger[T]) update(id string, fn func(t *T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &ledgerEntry[T]{}
		l.entries[id] = e
	}
	fn(&e.tally)
	l.seq++
	e.version = l.seq
}

// set 覆盖计数；值未变化时不递增版本号
func (l *ledger[T]) set(id string, tally T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if ok && e.tally == tally {
		return
	}
	if !ok {
		e = &ledgerEntry[T]{}
		l.entries[id] = e
	}
	e.tally = tally
	l.seq++
	e.version = l.seq
}

func (l *ledger[T]) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, id)
}

// snapshot 返回计数与版本号；未知 id 返回零值和版本 0
func (l *ledger[T]) snapshot(id string) (T, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		var zero T
		return zero, 0
	}
	return e.tally, e.version
}

func clampAdd(v *int64, delta int64) {
	*v += delta
	if *v < 0 {
		*v = 0
	}
}

// VoteLedger 每个帖子的赞/踩计数
type VoteLedger struct {
	l *ledger[model.VoteTally]
}

func NewVoteLedger() *VoteLedger {
	return &VoteLedger{l: newLedger[model.VoteTally]()}
}

// RecordVote 对应字段加 1；未知投票类型直接返回错误，不做任何修改
func (v *VoteLedger) RecordVote(postID string, vt VoteType) error {
	return v.add(postID, vt, 1)
}

// RevertVote 远端写入失败时撤销一次乐观计数，不会减到负数
func (v *VoteLedger) RevertVote(postID string, vt VoteType) error {
	return v.add(postID, vt, -1)
}

func (v *VoteLedger) add(postID string, vt VoteType, delta int64) error {
	if _, err := ParseVoteType(string(vt)); err != nil {
		return err
	}
	v.l.update(postID, func(t *model.VoteTally) {
		if vt == Upvote {
			clampAdd(&t.Upvotes, delta)
		} else {
			clampAdd(&t.Downvotes, delta)
		}
	})
	return nil
}

// Votes 未知 id 返回 {0,0}
func (v *VoteLedger) Votes(postID string) model.VoteTally {
	t, _ := v.l.snapshot(postID)
	return t
}

// Forget 丢弃该帖子的计数
func (v *VoteLedger) Forget(postID string) {
	v.l.forget(postID)
}

// Reconcile 用远端确认的计数覆盖本地计数
func (v *VoteLedger) Reconcile(postID string, tally model.VoteTally) {
	v.l.set(postID, model.VoteTally{Upvotes: max(tally.Upvotes, 0), Downvotes: max(tally.Downvotes, 0)})
}

// ReactionLedger 每个帖子的表情反应计数
type ReactionLedger struct {
	l *ledger[model.ReactionTally]
}

func NewReactionLedger() *ReactionLedger {
	return &ReactionLedger{l: newLedger[model.ReactionTally]()}
}

func (r *ReactionLedger) RecordReaction(postID string, rt ReactionType) error {
	return r.add(postID, rt, 1)
}

func (r *ReactionLedger) RevertReaction(postID string, rt ReactionType) error {
	return r.add(postID, rt, -1)
}

func (r *ReactionLedger) add(postID string, rt ReactionType, delta int64) error {
	if _, err := ParseReactionType(string(rt)); err != nil {
		return err
	}
	r.l.update(postID, func(t *model.ReactionTally) {
		if rt == ThumbsUp {
			clampAdd(&t.ThumbsUp, delta)
		} else {
			clampAdd(&t.ThumbsDown, delta)
		}
	})
	return nil
}

func (r *ReactionLedger) Reactions(postID string) model.ReactionTally {
	t, _ := r.l.snapshot(postID)
	return t
}

func (r *ReactionLedger) Forget(postID string) {
	r.l.forget(postID)
}

func (r *ReactionLedger) Reconcile(postID string, tally model.ReactionTally) {
	r.l.set(postID, model.ReactionTally{ThumbsUp: max(tally.ThumbsUp, 0), ThumbsDown: max(tally.ThumbsDown, 0)})
}
