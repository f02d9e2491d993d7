package model

// SyncStatus 乐观更新条目的同步状态
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncConfirmed SyncStatus = "confirmed"
	SyncFailed    SyncStatus = "failed"
)

// VoteTally 赞/踩计数，两个字段均不小于 0
type VoteTally struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}

// ReactionTally 表情反应计数
type ReactionTally struct {
	ThumbsUp   int64 `json:"thumbsUp"`
	ThumbsDown int64 `json:"thumbsDown"`
}

// Discussion 讨论帖，存放在 communities/{communityId}/discussions
type Discussion struct {
	ID          string        `json:"id"`
	CommunityID string        `json:"communityId"`
	Content     string        `json:"content"`
	Author      string        `json:"author"`
	CreatedAt   int64         `json:"createdAt"`
	Votes       VoteTally     `json:"votes"`
	Reactions   ReactionTally `json:"reactions"`

	// 以下字段只存在于本地状态，不写入远端
	ClientID string     `json:"clientId,omitempty"`
	Status   SyncStatus `json:"status,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Reply 讨论下的回复，只追加不修改
type Reply struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"clientId"`
	Text      string     `json:"text"`
	Author    string     `json:"author"`
	CreatedAt int64      `json:"createdAt"`
	Status    SyncStatus `json:"status,omitempty"`
	Error     string     `json:"error,omitempty"`
}
