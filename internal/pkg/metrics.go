package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal 已确认的投票，按类型统计
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_votes_total",
		Help: "Total number of confirmed discussion votes by type",
	}, []string{"type"})

	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_reactions_total",
		Help: "Total number of confirmed discussion reactions by type",
	}, []string{"type"})

	RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_replies_total",
		Help: "Total number of replies by final sync status",
	}, []string{"status"})

	// OptimisticRollbacks 远端写入失败后撤销或标记失败的乐观更新
	OptimisticRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_optimistic_rollbacks_total",
		Help: "Total number of optimistic updates rolled back or marked failed",
	}, []string{"kind"})

	RemoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_remote_store_errors_total",
		Help: "Total number of remote document store errors by operation",
	}, []string{"operation"})

	OutboxDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_outbox_delivered_total",
		Help: "Outbox events handed to the sender, by result",
	}, []string{"result"})
)
