package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrRedisUnavailable = errors.New("redis unavailable")
	ErrExtendFailed     = errors.New("token extend failed")
	ErrTokenDeleted     = errors.New("token delete failed")
)

const (
	UserTokenPrefix   = "login:user:token"
	UserRefreshPrefix = "login:user:refresh"
	UserTokenExpire   = 30 * time.Minute
	UserRefreshExpire = 24 * time.Hour
)

// SessionRepository 每个用户只保留一个有效的 access token
type SessionRepository struct {
	RDB *redis.Client
}

func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{RDB: rdb}
}

func tokenKey(uid string) string {
	return fmt.Sprintf("%s:%s", UserTokenPrefix, uid)
}

func refreshKey(uid string) string {
	return fmt.Sprintf("%s:%s", UserRefreshPrefix, uid)
}

func (r *SessionRepository) AddUserToken(ctx context.Context, uid, token string) error {
	if err := r.RDB.Set(ctx, tokenKey(uid), token, UserTokenExpire).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

func (r *SessionRepository) GetUserToken(ctx context.Context, uid string) (string, error) {
	token, err := r.RDB.Get(ctx, tokenKey(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", ErrRedisUnavailable
	}
	return token, nil
}

// ExtendUserToken 续期
func (r *SessionRepository) ExtendUserToken(ctx context.Context, uid string) error {
	if err := r.RDB.Expire(ctx, tokenKey(uid), UserTokenExpire).Err(); err != nil {
		return ErrExtendFailed
	}
	return nil
}

// DeleteUserToken access 和 refresh 一起删除
func (r *SessionRepository) DeleteUserToken(ctx context.Context, uid string) error {
	if err := r.RDB.Del(ctx, tokenKey(uid), refreshKey(uid)).Err(); err != nil {
		return ErrTokenDeleted
	}
	return nil
}

// AddRefreshID 记录当前会话 refresh token 的 jti
func (r *SessionRepository) AddRefreshID(ctx context.Context, uid, jti string) error {
	if err := r.RDB.Set(ctx, refreshKey(uid), jti, UserRefreshExpire).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

func (r *SessionRepository) GetRefreshID(ctx context.Context, uid string) (string, error) {
	jti, err := r.RDB.Get(ctx, refreshKey(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", ErrRedisUnavailable
	}
	return jti, nil
}
