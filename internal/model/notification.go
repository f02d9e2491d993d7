package model

// 通知来源
const (
	SourcePrimary  = "primary"
	SourceRealtime = "realtime"
)

type Notification struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
	UserAvatar string `json:"userAvatar"`
	Read       bool   `json:"read"`
}
