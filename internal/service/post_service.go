package service

import (
	"context"

	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/remote"
	"Niche_Community/internal/state"

	"go.uber.org/zap"
)

const (
	PostsCollection = "posts"
	FeedsCollection = "feeds"
)

type PostService struct {
	store       remote.Store
	communities *CommunityService
	list        *state.Collection[model.Post]
	log         *zap.Logger
}

func NewPostService(store remote.Store, communities *CommunityService, log *zap.Logger) *PostService {
	return &PostService{store: store, communities: communities, list: state.NewCollection[model.Post](), log: log}
}

type CreatePostReq struct {
	CommunityID string `json:"communityId"`
	Title       string `json:"title" validate:"required,nonblank,max=128"`
	Content     string `json:"content" validate:"required,nonblank"`
}

type UpdatePostReq struct {
	Title   *string `json:"title" validate:"omitempty,nonblank,max=128"`
	Content *string `json:"content" validate:"omitempty,nonblank"`
}

// CreatePost 指定社区时必须是社区成员；发帖同时写一条首页动态
func (s *PostService) CreatePost(ctx context.Context, id *model.Identity, req CreatePostReq) (model.Post, error) {
	if err := requireIdentity(id); err != nil {
		return model.Post{}, err
	}
	if err := validateStruct(req); err != nil {
		return model.Post{}, err
	}
	if req.CommunityID != "" {
		// 判断是否是 community 成员
		ok, err := s.communities.IsMember(ctx, id.UID, req.CommunityID)
		if err != nil {
			return model.Post{}, err
		}
		if !ok {
			return model.Post{}, ErrForbidden
		}
	}
	p := model.Post{
		CommunityID: req.CommunityID,
		AuthorID:    id.UID,
		Title:       req.Title,
		Content:     req.Content,
		CreatedAt:   nowMillis(),
	}
	data, err := remote.Encode(p)
	if err != nil {
		return model.Post{}, err
	}
	delete(data, "id")
	if p.ID, err = s.store.Add(ctx, PostsCollection, data); err != nil {
		pkg.RemoteErrors.WithLabelValues("add").Inc()
		return model.Post{}, err
	}
	if err := s.store.Set(ctx, FeedsCollection, p.ID, map[string]any{
		"authorId":  p.AuthorID,
		"content":   p.Title,
		"timestamp": p.CreatedAt,
	}); err != nil {
		s.log.Warn("feed write failed", zap.String("post", p.ID), zap.Error(err))
	}
	return p, nil
}

// ListPosts communityID 为空时返回全部帖子，按创建时间倒序
func (s *PostService) ListPosts(ctx context.Context, communityID string) ([]model.Post, error) {
	q := remote.Query{}.Order("createdAt", remote.Desc)
	if communityID != "" {
		q = q.Where("communityId", remote.OpEq, communityID)
	}
	_ = s.list.Begin()
	docs, err := s.store.Query(ctx, PostsCollection, q)
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("query").Inc()
		_ = s.list.Fail(err)
		return nil, err
	}
	out := make([]model.Post, 0, len(docs))
	for _, d := range docs {
		p, err := decodePost(d)
		if err != nil {
			_ = s.list.Fail(err)
			return nil, err
		}
		out = append(out, p)
	}
	_ = s.list.Succeed(out)
	return out, nil
}

// CountByAuthor 用于计算成就
func (s *PostService) CountByAuthor(ctx context.Context, uid string) (int, error) {
	docs, err := s.store.Query(ctx, PostsCollection, remote.Query{}.Where("authorId", remote.OpEq, uid))
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *PostService) UpdatePost(ctx context.Context, id *model.Identity, postID string, req UpdatePostReq) (model.Post, error) {
	if _, err := s.authored(ctx, id, postID); err != nil {
		return model.Post{}, err
	}
	if err := validateStruct(req); err != nil {
		return model.Post{}, err
	}
	partial := map[string]any{}
	if req.Title != nil {
		partial["title"] = *req.Title
	}
	if req.Content != nil {
		partial["content"] = *req.Content
	}
	if len(partial) > 0 {
		if err := s.store.Update(ctx, PostsCollection, postID, partial); err != nil {
			return model.Post{}, err
		}
	}
	d, err := s.store.Get(ctx, PostsCollection, postID)
	if err != nil {
		return model.Post{}, err
	}
	return decodePost(d)
}

// DeletePost 只有作者可以删除，同时删除首页动态
func (s *PostService) DeletePost(ctx context.Context, id *model.Identity, postID string) error {
	if _, err := s.authored(ctx, id, postID); err != nil {
		return err
	}
	if _, err := s.store.Delete(ctx, PostsCollection, postID); err != nil {
		return err
	}
	_, err := s.store.Delete(ctx, FeedsCollection, postID)
	return err
}

func (s *PostService) authored(ctx context.Context, id *model.Identity, postID string) (model.Post, error) {
	if err := requireIdentity(id); err != nil {
		return model.Post{}, err
	}
	d, err := s.store.Get(ctx, PostsCollection, postID)
	if err != nil {
		return model.Post{}, err
	}
	p, err := decodePost(d)
	if err != nil {
		return model.Post{}, err
	}
	if p.AuthorID != id.UID {
		return model.Post{}, ErrForbidden
	}
	return p, nil
}

func (s *PostService) Status() (state.LoadStatus, string) {
	return s.list.Status()
}

func decodePost(d remote.Document) (model.Post, error) {
	var p model.Post
	if err := remote.Decode(d, &p); err != nil {
		return model.Post{}, err
	}
	p.ID = d.ID
	return p, nil
}

// FeedService 首页动态，只读
type FeedService struct {
	store remote.Store
	list  *state.Collection[model.FeedItem]
}

func NewFeedService(store remote.Store) *FeedService {
	return &FeedService{store: store, list: state.NewCollection[model.FeedItem]()}
}

func (s *FeedService) List(ctx context.Context) ([]model.FeedItem, error) {
	_ = s.list.Begin()
	docs, err := s.store.Query(ctx, FeedsCollection, remote.Query{}.Order("timestamp", remote.Desc))
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("query").Inc()
		_ = s.list.Fail(err)
		return nil, err
	}
	out := make([]model.FeedItem, 0, len(docs))
	for _, d := range docs {
		var f model.FeedItem
		if err := remote.Decode(d, &f); err != nil {
			_ = s.list.Fail(err)
			return nil, err
		}
		f.ID = d.ID
		out = append(out, f)
	}
	_ = s.list.Succeed(out)
	return out, nil
}

func (s *FeedService) Status() (state.LoadStatus, string) {
	return s.list.Status()
}
