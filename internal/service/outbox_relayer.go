package service

import (
	"context"
	"time"

	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const outboxLockName = "outbox:relay"

type Sender func(ctx context.Context, ob *model.CommunityOutbox) error

// OutboxStore 由 mysql.OutboxRepository 实现
type OutboxStore interface {
	List(ctx context.Context, batchSize, maxRetry int) ([]model.CommunityOutbox, error)
	RetryUpdate(ctx context.Context, id uint64) error
	SuccessUpdate(ctx context.Context, id uint64) error
}

// Locker 由 redis.DistLock 实现，多实例部署时只有一个实例在投递
type Locker interface {
	Acquire(ctx context.Context, name, token string) (bool, error)
	Release(ctx context.Context, name, token string) error
}

// OutboxRelayer outbox表相关服务
type OutboxRelayer struct {
	repo      OutboxStore
	lock      Locker
	batchSize int
	maxRetry  int
	interval  time.Duration
	sender    Sender
	log       *zap.Logger
}

func NewOutboxRelayer(repo OutboxStore, lock Locker, sender Sender, interval time.Duration, log *zap.Logger) *OutboxRelayer {
	return &OutboxRelayer{
		repo:      repo,
		lock:      lock,
		batchSize: 200,
		maxRetry:  5,
		interval:  interval,
		sender:    sender,
		log:       log,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.drainOnce(ctx); err != nil {
				r.log.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// drainOnce 从数据库读取事件交给 sender，返回成功投递的条数
func (r *OutboxRelayer) drainOnce(ctx context.Context) (int, error) {
	token := uuid.NewString()
	ok, err := r.lock.Acquire(ctx, outboxLockName, token)
	if err != nil || !ok {
		return 0, err
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), outboxLockName, token); err != nil {
			r.log.Warn("outbox lock release failed", zap.Error(err))
		}
	}()

	rows, err := r.repo.List(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			pkg.OutboxDelivered.WithLabelValues("retry").Inc()
			r.log.Warn("outbox send failed", zap.Uint64("id", ob.ID), zap.String("event", ob.EventType), zap.Int("retry", ob.Retry+1), zap.Error(err))
			if err := r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.log.Error("outbox retry update failed", zap.Uint64("id", ob.ID), zap.Error(err))
			}
			continue
		}
		if err := r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.log.Error("outbox success update failed", zap.Uint64("id", ob.ID), zap.Error(err))
			continue
		}
		pkg.OutboxDelivered.WithLabelValues("sent").Inc()
		sent++
	}
	return sent, nil
}

// KafkaSender 以 AggregateID 作为消息 key
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.CommunityOutbox) error {
		return p.Send(ctx, ob.AggregateID, []byte(ob.Payload), map[string]string{
			"event_type": ob.EventType,
			"actor_id":   ob.ActorID,
		})
	}
}

// LogSender 未配置 Kafka 时使用，只打印事件
func LogSender(log *zap.Logger) Sender {
	return func(ctx context.Context, ob *model.CommunityOutbox) error {
		log.Info("outbox send",
			zap.String("type", ob.EventType),
			zap.String("aggregate", ob.AggregateID),
			zap.String("actor", ob.ActorID),
			zap.String("payload", ob.Payload))
		return nil
	}
}
