package model

import "time"

const (
	OutboxPending = 0
	OutboxSent    = 1
	OutboxFailed  = 2
)

// CommunityOutbox 社区事件投递表
type CommunityOutbox struct {
	ID          uint64 `gorm:"primaryKey"`
	EventType   string `gorm:"size:32;not null"` // discussion.voted / reply.created ...
	AggregateID string `gorm:"size:64;not null;index"`
	ActorID     string `gorm:"size:64;not null"`
	Payload     string `gorm:"type:text;not null"`
	Status      int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry       int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (CommunityOutbox) TableName() string { return "community_outbox" }
