// Package auth 认证方：由上游身份断言登录，签发会话令牌，并向订阅者广播当前用户变化
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/repository/redis"

	"go.uber.org/zap"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrSessionReplaced = errors.New("account has been logging elsewhere")
)

// SessionStore 会话令牌存储，由 redis.SessionRepository 实现。
// 键不存在时 Get 系列返回 redis.ErrTokenNotFound
type SessionStore interface {
	AddUserToken(ctx context.Context, uid, token string) error
	GetUserToken(ctx context.Context, uid string) (string, error)
	ExtendUserToken(ctx context.Context, uid string) error
	DeleteUserToken(ctx context.Context, uid string) error
	AddRefreshID(ctx context.Context, uid, jti string) error
	GetRefreshID(ctx context.Context, uid string) (string, error)
}

type Session struct {
	Identity model.Identity `json:"identity"`
	*pkg.Pair
}

// Event Identity 为 nil 表示该用户已退出
type Event struct {
	UID      string
	Identity *model.Identity
}

type Observer func(ctx context.Context, ev Event)

// Provider 进程内只创建一个
type Provider struct {
	tokens   *pkg.TokenIssuer
	sessions SessionStore
	log      *zap.Logger

	mu        sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64
}

func NewProvider(tokens *pkg.TokenIssuer, sessions SessionStore, log *zap.Logger) *Provider {
	return &Provider{
		tokens:    tokens,
		sessions:  sessions,
		log:       log,
		observers: make(map[uint64]Observer),
	}
}

// Subscribe 注册观察者，返回取消订阅函数
func (p *Provider) Subscribe(fn Observer) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.observers, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) notify(ctx context.Context, ev Event) {
	p.mu.RLock()
	fns := make([]Observer, 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, ev)
	}
}

// SignIn 校验身份断言并建立会话，旧会话被顶掉
func (p *Provider) SignIn(ctx context.Context, assertion string) (*Session, error) {
	claims, err := p.tokens.ParseIdentity(assertion)
	if err != nil {
		return nil, err
	}
	id := model.Identity{
		UID:         claims.UID,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}
	pair, err := p.tokens.GeneratePair(pkg.Principal{
		UID:     id.UID,
		Email:   id.Email,
		Name:    id.DisplayName,
		Picture: id.PhotoURL,
	})
	if err != nil {
		return nil, err
	}
	if err := p.store(ctx, id.UID, pair); err != nil {
		return nil, err
	}
	p.log.Info("user signed in", zap.String("uid", id.UID))
	p.notify(ctx, Event{UID: id.UID, Identity: &id})
	return &Session{Identity: id, Pair: pair}, nil
}

// SignOut 幂等
func (p *Provider) SignOut(ctx context.Context, uid string) error {
	if err := p.sessions.DeleteUserToken(ctx, uid); err != nil {
		return err
	}
	p.log.Info("user signed out", zap.String("uid", uid))
	p.notify(ctx, Event{UID: uid})
	return nil
}

// Authenticate 校验 access token，且必须是该用户当前有效的会话
func (p *Provider) Authenticate(ctx context.Context, accessToken string) (*model.Identity, error) {
	claims, err := p.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	current, err := p.sessions.GetUserToken(ctx, claims.UID)
	if errors.Is(err, redis.ErrTokenNotFound) {
		return nil, ErrSessionReplaced
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", claims.UID, err)
	}
	if current != accessToken {
		return nil, ErrSessionReplaced
	}
	// 校验通过后更新过期时间
	if err := p.sessions.ExtendUserToken(ctx, claims.UID); err != nil {
		return nil, err
	}
	return &model.Identity{
		UID:         claims.UID,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}

// Refresh 用 refresh token 换新的一对令牌；refresh 必须属于当前会话，用过即作废
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := p.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	current, err := p.sessions.GetRefreshID(ctx, claims.UID)
	if errors.Is(err, redis.ErrTokenNotFound) {
		return nil, pkg.ErrRefreshInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", claims.UID, err)
	}
	if current != claims.ID {
		return nil, pkg.ErrRefreshInvalid
	}
	pair, err := p.tokens.GeneratePair(claims.Principal)
	if err != nil {
		return nil, err
	}
	if err := p.store(ctx, claims.UID, pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (p *Provider) store(ctx context.Context, uid string, pair *pkg.Pair) error {
	if err := p.sessions.AddUserToken(ctx, uid, pair.AccessToken); err != nil {
		return err
	}
	return p.sessions.AddRefreshID(ctx, uid, pair.RefreshID)
}
