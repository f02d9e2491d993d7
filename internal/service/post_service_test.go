package service

import (
	"context"
	"testing"

	"Niche_Community/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPost_CommunityMembershipRequired(t *testing.T) {
	store := newStore(t)
	communities := NewCommunityService(store, zap.NewNop())
	posts := NewPostService(store, communities, zap.NewNop())
	ctx := context.Background()

	c, err := communities.CreateCommunity(ctx, user("owner"), CreateCommunityReq{Name: "Chess"})
	require.NoError(t, err)

	_, err = posts.CreatePost(ctx, user("u1"), CreatePostReq{CommunityID: c.ID, Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = communities.JoinCommunity(ctx, user("u1"), c.ID)
	require.NoError(t, err)
	p, err := posts.CreatePost(ctx, user("u1"), CreatePostReq{CommunityID: c.ID, Title: "Opening", Content: "e4"})
	require.NoError(t, err)

	list, err := posts.ListPosts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	other, err := posts.ListPosts(ctx, "elsewhere")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPost_AuthorOnlyEditsAndFeed(t *testing.T) {
	store := newStore(t)
	posts := NewPostService(store, NewCommunityService(store, zap.NewNop()), zap.NewNop())
	feed := NewFeedService(store)
	ctx := context.Background()

	_, err := posts.CreatePost(ctx, user("u1"), CreatePostReq{Title: " ", Content: "c"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	p, err := posts.CreatePost(ctx, user("u1"), CreatePostReq{Title: "Hello", Content: "world"})
	require.NoError(t, err)

	items, err := feed.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, p.ID, items[0].ID)
	assert.Equal(t, "Hello", items[0].Content)

	title := "Edited"
	_, err = posts.UpdatePost(ctx, user("u2"), p.ID, UpdatePostReq{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := posts.UpdatePost(ctx, user("u1"), p.ID, UpdatePostReq{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Title)
	assert.Equal(t, "world", got.Content)

	assert.ErrorIs(t, posts.DeletePost(ctx, user("u2"), p.ID), ErrForbidden)
	require.NoError(t, posts.DeletePost(ctx, user("u1"), p.ID))
	_, err = store.Get(ctx, FeedsCollection, p.ID)
	assert.ErrorIs(t, err, remote.ErrNotFound)

	n, err := posts.CountByAuthor(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
