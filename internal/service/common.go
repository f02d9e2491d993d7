package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/model"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
)

// EventLog 事件写入 outbox，由 mysql.OutboxRepository 实现
type EventLog interface {
	Append(ctx context.Context, eventType, aggregateID, actorID string, payload map[string]any) error
}

const (
	EventDiscussionCreated = "discussion.created"
	EventDiscussionVoted   = "discussion.voted"
	EventDiscussionReacted = "discussion.reacted"
	EventReplyCreated      = "reply.created"
	EventPollVoted         = "poll.voted"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateStruct 校验失败统一包装为 ErrInvalidArgument
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	fields := make([]string, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(fields, ", "))
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func requireIdentity(id *model.Identity) error {
	if id == nil || id.UID == "" {
		return auth.ErrUnauthenticated
	}
	return nil
}

func displayName(id *model.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.UID
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// emit 写 outbox 失败只记日志，不影响已经成功的远端写入
func emit(ctx context.Context, events EventLog, log *zap.Logger, eventType, aggregateID, actorID string, payload map[string]any) {
	if events == nil {
		return
	}
	if err := events.Append(ctx, eventType, aggregateID, actorID, payload); err != nil {
		log.Warn("outbox append failed", zap.String("event", eventType), zap.Error(err))
	}
}
