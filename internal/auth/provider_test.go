package auth

import (
	"context"
	"sync"
	"testing"

	"Niche_Community/internal/pkg"
	"Niche_Community/internal/repository/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProvider(t *testing.T) (*Provider, *pkg.TokenIssuer) {
	t.Helper()
	p, iss, _ := newProviderWithRedis(t)
	return p, iss
}

func newProviderWithRedis(t *testing.T) (*Provider, *pkg.TokenIssuer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	iss := pkg.NewTokenIssuer("access", "refresh", "identity")
	return NewProvider(iss, redis.NewSessionRepository(rdb), zap.NewNop()), iss, mr
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestSignIn_NotifiesAndAuthenticates(t *testing.T) {
	p, iss := newProvider(t)
	ctx := context.Background()
	rec := &recorder{}
	unsubscribe := p.Subscribe(rec.observe)
	defer unsubscribe()

	assertion, err := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Email: "grace@example.com", Picture: "p.png"})
	require.NoError(t, err)

	sess, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)
	assert.Equal(t, "grace", sess.Identity.DisplayName)

	require.Len(t, rec.events, 1)
	require.NotNil(t, rec.events[0].Identity)
	assert.Equal(t, "u1", rec.events[0].Identity.UID)

	id, err := p.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, "grace", id.DisplayName)
	assert.Equal(t, "p.png", id.PhotoURL)
}

func TestSignIn_RejectsBadAssertion(t *testing.T) {
	p, _ := newProvider(t)
	_, err := p.SignIn(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, pkg.ErrAssertionInvalid)
}

func TestAuthenticate_SingleActiveSession(t *testing.T) {
	p, iss := newProvider(t)
	ctx := context.Background()
	assertion, _ := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Name: "Ada"})

	first, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)
	second, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)

	_, err = p.Authenticate(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrSessionReplaced)
	_, err = p.Authenticate(ctx, second.AccessToken)
	assert.NoError(t, err)
}

func TestSignOut_NotifiesAbsentIdentity(t *testing.T) {
	p, iss := newProvider(t)
	ctx := context.Background()
	rec := &recorder{}
	p.Subscribe(rec.observe)

	assertion, _ := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Name: "Ada"})
	sess, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, "u1"))
	require.Len(t, rec.events, 2)
	assert.Equal(t, "u1", rec.events[1].UID)
	assert.Nil(t, rec.events[1].Identity)

	_, err = p.Authenticate(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrSessionReplaced)
}

func TestUnsubscribe(t *testing.T) {
	p, iss := newProvider(t)
	rec := &recorder{}
	unsubscribe := p.Subscribe(rec.observe)
	unsubscribe()
	unsubscribe()

	assertion, _ := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Name: "Ada"})
	_, err := p.SignIn(context.Background(), assertion)
	require.NoError(t, err)
	assert.Empty(t, rec.events)
}

func TestRefresh_ReplacesSession(t *testing.T) {
	p, iss := newProvider(t)
	ctx := context.Background()
	assertion, _ := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Name: "Ada"})
	sess, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)

	pair, err := p.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)

	id, err := p.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Ada", id.DisplayName)

	_, err = p.Refresh(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, pkg.ErrRefreshInvalid)
}

func TestRefresh_AfterSignOutFails(t *testing.T) {
	p, iss := newProvider(t)
	ctx := context.Background()
	rec := &recorder{}
	p.Subscribe(rec.observe)

	assertion, _ := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Name: "Ada"})
	sess, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx, "u1"))

	_, err = p.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, pkg.ErrRefreshInvalid)
	_, err = p.Authenticate(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrSessionReplaced)
	assert.Len(t, rec.events, 2)
}

func TestRefresh_RotatesRefreshToken(t *testing.T) {
	p, iss := newProvider(t)
	ctx := context.Background()
	assertion, _ := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Name: "Ada"})
	first, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)

	pair, err := p.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	// 同一个 refresh 不能用两次
	_, err = p.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, pkg.ErrRefreshInvalid)

	// 重新登录后旧会话的 refresh 作废
	_, err = p.SignIn(ctx, assertion)
	require.NoError(t, err)
	_, err = p.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, pkg.ErrRefreshInvalid)
}

func TestAuthenticate_StoreOutageIsNotReplaced(t *testing.T) {
	p, iss, mr := newProviderWithRedis(t)
	ctx := context.Background()
	assertion, _ := iss.SignIdentity(pkg.IdentityClaims{UID: "u1", Name: "Ada"})
	sess, err := p.SignIn(ctx, assertion)
	require.NoError(t, err)

	mr.Close()
	_, err = p.Authenticate(ctx, sess.AccessToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionReplaced)
	assert.ErrorIs(t, err, redis.ErrRedisUnavailable)

	_, err = p.Refresh(ctx, sess.RefreshToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, pkg.ErrRefreshInvalid)
}
