package state

import (
	"errors"
	"strings"
	"sync"
	"time"

	"Niche_Community/internal/model"

	"github.com/google/uuid"
)

var (
	ErrEmptyReply    = errors.New("reply text is empty")
	ErrReplyNotFound = errors.New("reply not found")
)

// ReplyLedger 每个帖子一条只追加的回复序列。
// 乐观条目带客户端生成的 ClientID，远端确认后按 ClientID 原地替换
type ReplyLedger struct {
	mu      sync.RWMutex
	replies map[string][]model.Reply
}

func NewReplyLedger() *ReplyLedger {
	return &ReplyLedger{replies: make(map[string][]model.Reply)}
}

// AddReply 追加一条 pending 回复，空白文本直接拒绝
func (l *ReplyLedger) AddReply(postID, text, author string) (model.Reply, error) {
	if strings.TrimSpace(text) == "" {
		return model.Reply{}, ErrEmptyReply
	}
	clientID := uuid.NewString()
	r := model.Reply{
		ID:        clientID,
		ClientID:  clientID,
		Text:      text,
		Author:    author,
		CreatedAt: time.Now().UnixMilli(),
		Status:    model.SyncPending,
	}
	l.mu.Lock()
	l.replies[postID] = append(l.replies[postID], r)
	l.mu.Unlock()
	return r, nil
}

// Replies 返回副本；未知 id 返回空切片
func (l *ReplyLedger) Replies(postID string) []model.Reply {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.replies[postID]
	out := make([]model.Reply, len(src))
	copy(out, src)
	return out
}

// Confirm 远端写入成功，换成远端 id 和时间
func (l *ReplyLedger) Confirm(postID, clientID, serverID string, createdAt int64) error {
	return l.modify(postID, clientID, func(r *model.Reply) {
		r.ID = serverID
		if createdAt > 0 {
			r.CreatedAt = createdAt
		}
		r.Status = model.SyncConfirmed
		r.Error = ""
	})
}

// Fail 远端写入失败，条目保留但标记为 failed
func (l *ReplyLedger) Fail(postID, clientID string, cause error) error {
	return l.modify(postID, clientID, func(r *model.Reply) {
		r.Status = model.SyncFailed
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}

func (l *ReplyLedger) modify(postID, clientID string, fn func(r *model.Reply)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.replies[postID]
	for i := range list {
		if list[i].ClientID == clientID {
			fn(&list[i])
			return nil
		}
	}
	return ErrReplyNotFound
}

// Merge 把远端回复并入本地序列：能按 ClientID 或 ID 匹配上的原地替换，
// 其余按远端顺序追加，保证同一条回复只出现一次
func (l *ReplyLedger) Merge(postID string, confirmed []model.Reply) {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.replies[postID]
	for _, rc := range confirmed {
		rc.Status = model.SyncConfirmed
		rc.Error = ""
		idx := -1
		for i := range list {
			if (rc.ClientID != "" && list[i].ClientID == rc.ClientID) || list[i].ID == rc.ID {
				idx = i
				break
			}
		}
		if idx >= 0 {
			if rc.ClientID == "" {
				rc.ClientID = list[idx].ClientID
			}
			list[idx] = rc
			continue
		}
		list = append(list, rc)
	}
	l.replies[postID] = list
}
