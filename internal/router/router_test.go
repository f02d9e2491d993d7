package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/pkg"
	redisrepo "Niche_Community/internal/repository/redis"
	"Niche_Community/internal/service"
	"Niche_Community/internal/state"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	issuer *pkg.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	primary := redisrepo.NewDocumentRepository(rdb)
	rdb2 := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { _ = rdb2.Close() })
	realtime := redisrepo.NewDocumentRepository(rdb2)
	issuer := pkg.NewTokenIssuer("access", "refresh", "identity")
	provider := auth.NewProvider(issuer, redisrepo.NewSessionRepository(rdb), log)

	board := service.NewLeaderboardService(primary, log)
	communities := service.NewCommunityService(primary, log)
	posts := service.NewPostService(primary, communities, log)
	profiles := service.NewProfileService(primary, posts, log)
	t.Cleanup(profiles.Watch(provider))

	engine := InitRouter(Services{
		Provider:      provider,
		Discussions:   service.NewDiscussionService(primary, state.NewStore(), nil, board, log),
		Communities:   communities,
		Posts:         posts,
		Feed:          service.NewFeedService(primary),
		Polls:         service.NewPollService(primary, nil, log),
		Notifications: service.NewNotificationService(primary, realtime, log),
		Profiles:      profiles,
		Leaderboard:   board,
	}, log)
	return &testServer{t: t, engine: engine, issuer: issuer}
}

func (s *testServer) signIn(uid string) string {
	s.t.Helper()
	assertion, err := s.issuer.SignIdentity(pkg.IdentityClaims{UID: uid, Email: uid + "@example.com"})
	require.NoError(s.t, err)
	w := s.do(http.MethodPost, "/api/auth/signin", "", map[string]any{"assertion": assertion})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.AccessToken
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestDiscussionFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signIn("alice")
	bob := s.signIn("bob")

	w := s.do(http.MethodPost, "/api/communities", alice, map[string]any{"name": "Mycology", "category": "Science"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cid := decode(t, w)["id"].(string)

	w = s.do(http.MethodPost, "/api/communities/"+cid+"/discussions", alice, map[string]any{"content": "Best spore prints?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	did := decode(t, w)["id"].(string)

	w = s.do(http.MethodGet, "/api/communities/"+cid+"/discussions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "succeeded", body["status"])
	assert.Len(t, body["list"], 1)

	base := "/api/communities/" + cid + "/discussions/" + did
	w = s.do(http.MethodPost, base+"/vote", "", map[string]any{"type": "upvote"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, base+"/vote", bob, map[string]any{"type": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/communities/"+cid+"/discussions/nope/vote", bob, map[string]any{"type": "upvote"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, base+"/vote", bob, map[string]any{"type": "upvote"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, true, body["changed"])
	assert.Equal(t, float64(1), body["votes"].(map[string]any)["upvotes"])

	w = s.do(http.MethodPost, base+"/vote", bob, map[string]any{"type": "upvote"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["changed"])

	w = s.do(http.MethodGet, base+"/tally", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["votes"].(map[string]any)["upvotes"])

	w = s.do(http.MethodPost, base+"/replies", bob, map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, base+"/replies", bob, map[string]any{"text": "Black paper works"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, base+"/replies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["list"], 1)

	w = s.do(http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["list"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].(map[string]any)["id"])
}

func TestCommunityPermissions(t *testing.T) {
	s := newTestServer(t)
	owner := s.signIn("owner")
	other := s.signIn("other")

	w := s.do(http.MethodPost, "/api/communities", owner, map[string]any{"name": "Bonsai"})
	require.Equal(t, http.StatusCreated, w.Code)
	cid := decode(t, w)["id"].(string)

	w = s.do(http.MethodPatch, "/api/communities/"+cid, other, map[string]any{"name": "Mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/communities/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/communities/"+cid+"/join", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["changed"])

	w = s.do(http.MethodGet, "/api/communities?sortBy=popularity", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["list"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(2), first["membersCount"])
}

func TestPollAndProfile(t *testing.T) {
	s := newTestServer(t)
	u := s.signIn("u1")

	w := s.do(http.MethodPost, "/api/polls", u, map[string]any{
		"question": "Favourite moss?",
		"options":  []string{"sphagnum", "haircap"},
		"pollType": "multiple",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pid := decode(t, w)["id"].(string)

	w = s.do(http.MethodPost, "/api/polls/"+pid+"/vote", u, map[string]any{"options": []int{1}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{float64(0), float64(1)}, decode(t, w)["votes"])

	w = s.do(http.MethodPost, "/api/polls/"+pid+"/vote", u, map[string]any{"options": []int{0}})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 登录时已经创建资料
	w = s.do(http.MethodGet, "/api/profile", u, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", decode(t, w)["displayName"])

	w = s.do(http.MethodPut, "/api/profile/bio", u, map[string]any{"bio": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/users/u1/achievements", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Newcomer", decode(t, w)["level"])
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	first := s.signIn("u1")
	second := s.signIn("u1")

	w := s.do(http.MethodGet, "/api/auth/me", first, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "replaced session")

	w = s.do(http.MethodGet, "/api/auth/me", second, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", decode(t, w)["uid"])

	w = s.do(http.MethodPost, "/api/auth/signout", second, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/auth/me", second, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{"refresh_token": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)
	w := s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
