package state

import (
	"errors"
	"sync"
	"time"

	"Niche_Community/internal/model"

	"github.com/google/uuid"
)

var ErrStaleReference = errors.New("discussion not present in local state")

// DiscussionCollection 按社区缓存讨论帖，社区之间互不影响
type DiscussionCollection struct {
	mu          sync.Mutex
	communities map[string]*Collection[model.Discussion]
}

func NewDiscussionCollection() *DiscussionCollection {
	return &DiscussionCollection{communities: make(map[string]*Collection[model.Discussion])}
}

func (d *DiscussionCollection) of(communityID string) *Collection[model.Discussion] {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.communities[communityID]
	if !ok {
		c = NewCollection[model.Discussion]()
		d.communities[communityID] = c
	}
	return c
}

func (d *DiscussionCollection) BeginLoad(communityID string) error {
	return d.of(communityID).Begin()
}

// Replace 用远端结果整体替换该社区的数据。
// 尚未确认的乐观条目若不在结果中（按 ClientID 匹配）则保留在末尾，等待 Confirm/Fail
func (d *DiscussionCollection) Replace(communityID string, loaded []model.Discussion) error {
	seen := make(map[string]bool, len(loaded))
	items := make([]model.Discussion, 0, len(loaded))
	for _, x := range loaded {
		seen[x.ID] = true
		if x.ClientID != "" {
			seen[x.ClientID] = true
		}
		x.CommunityID = communityID
		if x.Status == "" {
			x.Status = model.SyncConfirmed
		}
		items = append(items, x)
	}
	return d.of(communityID).Resolve(func(prev []model.Discussion) []model.Discussion {
		for _, x := range prev {
			if x.Status == model.SyncPending && !seen[x.ClientID] {
				items = append(items, x)
			}
		}
		return items
	})
}

func (d *DiscussionCollection) FailLoad(communityID string, err error) error {
	return d.of(communityID).Fail(err)
}

func (d *DiscussionCollection) Status(communityID string) (LoadStatus, string) {
	return d.of(communityID).Status()
}

func (d *DiscussionCollection) Discussions(communityID string) []model.Discussion {
	return d.of(communityID).Items()
}

func (d *DiscussionCollection) Get(communityID, id string) (model.Discussion, bool) {
	for _, x := range d.Discussions(communityID) {
		if x.ID == id {
			return x, true
		}
	}
	return model.Discussion{}, false
}

// Add 追加一条 pending 讨论帖，ID 先使用客户端生成的 ClientID
func (d *DiscussionCollection) Add(communityID string, rec model.Discussion) model.Discussion {
	if rec.ClientID == "" {
		rec.ClientID = uuid.NewString()
	}
	rec.ID = rec.ClientID
	rec.CommunityID = communityID
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	rec.Status = model.SyncPending
	rec.Error = ""
	_ = d.of(communityID).Mutate(func(items []model.Discussion) ([]model.Discussion, error) {
		return append(items, rec), nil
	})
	return rec
}

// Confirm 乐观 id 原地替换为远端 id
func (d *DiscussionCollection) Confirm(communityID, clientID, serverID string, createdAt int64) error {
	return d.modify(communityID, func(x *model.Discussion) bool { return x.ClientID == clientID }, func(x *model.Discussion) {
		x.ID = serverID
		if createdAt > 0 {
			x.CreatedAt = createdAt
		}
		x.Status = model.SyncConfirmed
		x.Error = ""
	})
}

func (d *DiscussionCollection) Fail(communityID, clientID string, cause error) error {
	return d.modify(communityID, func(x *model.Discussion) bool { return x.ClientID == clientID }, func(x *model.Discussion) {
		x.Status = model.SyncFailed
		if cause != nil {
			x.Error = cause.Error()
		}
	})
}

// ApplyVoteUpdate 替换内嵌的投票计数，本地没有该帖子时返回 ErrStaleReference
func (d *DiscussionCollection) ApplyVoteUpdate(communityID, id string, tally model.VoteTally) error {
	return d.modify(communityID, byID(id), func(x *model.Discussion) { x.Votes = tally })
}

func (d *DiscussionCollection) ApplyReactionUpdate(communityID, id string, tally model.ReactionTally) error {
	return d.modify(communityID, byID(id), func(x *model.Discussion) { x.Reactions = tally })
}

func byID(id string) func(x *model.Discussion) bool {
	return func(x *model.Discussion) bool { return x.ID == id }
}

func (d *DiscussionCollection) modify(communityID string, match func(*model.Discussion) bool, fn func(*model.Discussion)) error {
	return d.of(communityID).Mutate(func(items []model.Discussion) ([]model.Discussion, error) {
		for i := range items {
			if match(&items[i]) {
				fn(&items[i])
				return items, nil
			}
		}
		return nil, ErrStaleReference
	})
}
