package mysql

import (
	"context"
	"encoding/json"
	"time"

	"Niche_Community/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	DB *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

// Append 写入一条待投递事件
func (r *OutboxRepository) Append(ctx context.Context, eventType, aggregateID, actorID string, payload map[string]any) error {
	body := map[string]any{"event_time": time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range payload {
		body[k] = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Create(&model.CommunityOutbox{
		EventType:   eventType,
		AggregateID: aggregateID,
		ActorID:     actorID,
		Payload:     string(b),
		Status:      model.OutboxPending,
	}).Error
}

// List 查询待投递和可重试的事件
func (r *OutboxRepository) List(ctx context.Context, batchSize, maxRetry int) ([]model.CommunityOutbox, error) {
	var list []model.CommunityOutbox
	if err := r.DB.WithContext(ctx).
		Where("status IN ? AND retry < ?", []int8{model.OutboxPending, model.OutboxFailed}, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate 投递失败，记录重试次数
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.CommunityOutbox{}).Where("id=?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate 投递成功
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.CommunityOutbox{}).Where("id=?", id).
		Update("status", model.OutboxSent).Error
}
