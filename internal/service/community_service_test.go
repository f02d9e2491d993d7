package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/model"
	"Niche_Community/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func names(list []model.Community) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name)
	}
	return out
}

func TestCommunity_CreateAndList(t *testing.T) {
	svc := NewCommunityService(newStore(t), zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreateCommunity(ctx, nil, CreateCommunityReq{Name: "Go"})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	_, err = svc.CreateCommunity(ctx, user("u1"), CreateCommunityReq{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	g, err := svc.CreateCommunity(ctx, user("u1"), CreateCommunityReq{Name: "Gophers", Category: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.MembersCount)
	_, err = svc.CreateCommunity(ctx, user("u1"), CreateCommunityReq{Name: "Gardening", Category: "Hobby"})
	require.NoError(t, err)
	_, err = svc.CreateCommunity(ctx, user("u2"), CreateCommunityReq{Name: "Rustaceans", Category: "Tech"})
	require.NoError(t, err)

	all, err := svc.ListCommunities(ctx, ListCommunitiesReq{Category: CategoryAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gophers", "Gardening", "Rustaceans"}, names(all))

	tech, err := svc.ListCommunities(ctx, ListCommunitiesReq{Category: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gophers", "Rustaceans"}, names(tech))

	prefixed, err := svc.ListCommunities(ctx, ListCommunitiesReq{Search: "G"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Gophers", "Gardening"}, names(prefixed))

	_, err = svc.ListCommunities(ctx, ListCommunitiesReq{SortBy: "alphabetical"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	member, err := svc.IsMember(ctx, "u1", g.ID)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestCommunity_JoinLeaveCounts(t *testing.T) {
	store := newStore(t)
	svc := NewCommunityService(store, zap.NewNop())
	ctx := context.Background()

	c, err := svc.CreateCommunity(ctx, user("owner"), CreateCommunityReq{Name: "Knitting"})
	require.NoError(t, err)

	changed, err := svc.JoinCommunity(ctx, user("u1"), c.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = svc.JoinCommunity(ctx, user("u1"), c.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := svc.GetCommunity(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MembersCount)

	changed, err = svc.LeaveCommunity(ctx, user("u1"), c.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = svc.LeaveCommunity(ctx, user("u1"), c.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err = svc.GetCommunity(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.MembersCount)

	_, err = svc.JoinCommunity(ctx, user("u1"), "missing")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestCommunity_ConcurrentLeaveDecrementsOnce(t *testing.T) {
	svc := NewCommunityService(newStore(t), zap.NewNop())
	ctx := context.Background()

	c, err := svc.CreateCommunity(ctx, user("owner"), CreateCommunityReq{Name: "Pottery"})
	require.NoError(t, err)
	_, err = svc.JoinCommunity(ctx, user("u1"), c.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var left atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := svc.LeaveCommunity(ctx, user("u1"), c.ID)
			assert.NoError(t, err)
			if changed {
				left.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), left.Load())
	got, err := svc.GetCommunity(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.MembersCount)
}

func TestCommunity_PopularitySort(t *testing.T) {
	svc := NewCommunityService(newStore(t), zap.NewNop())
	ctx := context.Background()

	small, err := svc.CreateCommunity(ctx, user("a"), CreateCommunityReq{Name: "Small"})
	require.NoError(t, err)
	big, err := svc.CreateCommunity(ctx, user("b"), CreateCommunityReq{Name: "Big"})
	require.NoError(t, err)
	for _, uid := range []string{"u1", "u2"} {
		_, err := svc.JoinCommunity(ctx, user(uid), big.ID)
		require.NoError(t, err)
	}

	list, err := svc.ListCommunities(ctx, ListCommunitiesReq{SortBy: SortPopularity})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, big.ID, list[0].ID)
	assert.Equal(t, small.ID, list[1].ID)
}

func TestCommunity_OnlyCreatorMayEdit(t *testing.T) {
	svc := NewCommunityService(newStore(t), zap.NewNop())
	ctx := context.Background()

	c, err := svc.CreateCommunity(ctx, user("owner"), CreateCommunityReq{Name: "Birding"})
	require.NoError(t, err)

	name := "Birdwatching"
	_, err = svc.UpdateCommunity(ctx, user("intruder"), c.ID, UpdateCommunityReq{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.DeleteCommunity(ctx, user("intruder"), c.ID), ErrForbidden)

	got, err := svc.UpdateCommunity(ctx, user("owner"), c.ID, UpdateCommunityReq{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Birdwatching", got.Name)

	require.NoError(t, svc.DeleteCommunity(ctx, user("owner"), c.ID))
	_, err = svc.GetCommunity(ctx, c.ID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}
