package service

import (
	"context"
	"errors"

	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/remote"
	"Niche_Community/internal/state"

	"go.uber.org/zap"
)

const CategoryAll = "All"

// 排序方式
const (
	SortPopularity = "popularity"
	SortRecent     = "recent"
)

type CommunityService struct {
	store remote.Store
	list  *state.Collection[model.Community]
	log   *zap.Logger
}

func NewCommunityService(store remote.Store, log *zap.Logger) *CommunityService {
	return &CommunityService{store: store, list: state.NewCollection[model.Community](), log: log}
}

type CreateCommunityReq struct {
	Name        string `json:"name" validate:"required,nonblank,max=64"`
	Description string `json:"description" validate:"max=500"`
	Category    string `json:"category" validate:"max=32"`
}

type UpdateCommunityReq struct {
	Name        *string `json:"name" validate:"omitempty,nonblank,max=64"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    *string `json:"category" validate:"omitempty,max=32"`
}

type ListCommunitiesReq struct {
	Category string `form:"category"`
	Search   string `form:"search"`
	SortBy   string `form:"sortBy"`
}

// CreateCommunity 创建者自动成为管理员，成员数从 1 开始
func (s *CommunityService) CreateCommunity(ctx context.Context, id *model.Identity, req CreateCommunityReq) (model.Community, error) {
	if err := requireIdentity(id); err != nil {
		return model.Community{}, err
	}
	if err := validateStruct(req); err != nil {
		return model.Community{}, err
	}
	c := model.Community{
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		CreatedAt:    nowMillis(),
		CreatedBy:    id.UID,
		MembersCount: 1,
	}
	data, err := remote.Encode(c)
	if err != nil {
		return model.Community{}, err
	}
	delete(data, "id")
	if c.ID, err = s.store.Add(ctx, remote.CommunitiesPath(), data); err != nil {
		pkg.RemoteErrors.WithLabelValues("add").Inc()
		return model.Community{}, err
	}
	// 幂等加入：已存在视为成功
	err = s.store.Create(ctx, remote.MembersPath(c.ID), id.UID, map[string]any{
		"userId":   id.UID,
		"role":     model.RoleAdmin,
		"joinedAt": c.CreatedAt,
	})
	if err != nil && !errors.Is(err, remote.ErrAlreadyExists) {
		return model.Community{}, err
	}
	return c, nil
}

// ListCommunities category 为 All 或空时不过滤；search 按名称前缀匹配
func (s *CommunityService) ListCommunities(ctx context.Context, req ListCommunitiesReq) ([]model.Community, error) {
	q := remote.Query{}
	if req.Category != "" && req.Category != CategoryAll {
		q = q.Where("category", remote.OpEq, req.Category)
	}
	if req.Search != "" {
		q = q.Where("name", remote.OpGte, req.Search).Where("name", remote.OpLte, req.Search+"\uf8ff")
	}
	switch req.SortBy {
	case SortPopularity:
		q = q.Order("membersCount", remote.Desc)
	case SortRecent:
		q = q.Order("createdAt", remote.Desc)
	case "":
	default:
		return nil, invalid("unknown sort " + req.SortBy)
	}

	_ = s.list.Begin()
	docs, err := s.store.Query(ctx, remote.CommunitiesPath(), q)
	if err != nil {
		pkg.RemoteErrors.WithLabelValues("query").Inc()
		_ = s.list.Fail(err)
		return nil, err
	}
	out := make([]model.Community, 0, len(docs))
	for _, d := range docs {
		c, err := decodeCommunity(d)
		if err != nil {
			_ = s.list.Fail(err)
			return nil, err
		}
		out = append(out, c)
	}
	_ = s.list.Succeed(out)
	return out, nil
}

func (s *CommunityService) GetCommunity(ctx context.Context, communityID string) (model.Community, error) {
	d, err := s.store.Get(ctx, remote.CommunitiesPath(), communityID)
	if err != nil {
		return model.Community{}, err
	}
	return decodeCommunity(d)
}

// UpdateCommunity 只有创建者可以修改
func (s *CommunityService) UpdateCommunity(ctx context.Context, id *model.Identity, communityID string, req UpdateCommunityReq) (model.Community, error) {
	if _, err := s.owned(ctx, id, communityID); err != nil {
		return model.Community{}, err
	}
	if err := validateStruct(req); err != nil {
		return model.Community{}, err
	}
	partial := map[string]any{}
	if req.Name != nil {
		partial["name"] = *req.Name
	}
	if req.Description != nil {
		partial["description"] = *req.Description
	}
	if req.Category != nil {
		partial["category"] = *req.Category
	}
	if len(partial) > 0 {
		if err := s.store.Update(ctx, remote.CommunitiesPath(), communityID, partial); err != nil {
			return model.Community{}, err
		}
	}
	return s.GetCommunity(ctx, communityID)
}

// DeleteCommunity 只有创建者可以删除
func (s *CommunityService) DeleteCommunity(ctx context.Context, id *model.Identity, communityID string) error {
	if _, err := s.owned(ctx, id, communityID); err != nil {
		return err
	}
	_, err := s.store.Delete(ctx, remote.CommunitiesPath(), communityID)
	return err
}

func (s *CommunityService) owned(ctx context.Context, id *model.Identity, communityID string) (model.Community, error) {
	if err := requireIdentity(id); err != nil {
		return model.Community{}, err
	}
	c, err := s.GetCommunity(ctx, communityID)
	if err != nil {
		return model.Community{}, err
	}
	if c.CreatedBy != id.UID {
		return model.Community{}, ErrForbidden
	}
	return c, nil
}

// JoinCommunity 返回 changed=false 表示已经是成员
func (s *CommunityService) JoinCommunity(ctx context.Context, id *model.Identity, communityID string) (bool, error) {
	if err := requireIdentity(id); err != nil {
		return false, err
	}
	if _, err := s.GetCommunity(ctx, communityID); err != nil {
		return false, err
	}
	members := remote.MembersPath(communityID)
	err := s.store.Create(ctx, members, id.UID, map[string]any{
		"userId":   id.UID,
		"role":     model.RoleMember,
		"joinedAt": nowMillis(),
	})
	if errors.Is(err, remote.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.store.Increment(ctx, remote.CommunitiesPath(), communityID, "membersCount", 1); err != nil {
		if _, derr := s.store.Delete(ctx, members, id.UID); derr != nil {
			s.log.Error("member cleanup failed", zap.String("community", communityID), zap.Error(derr))
		}
		return false, err
	}
	return true, nil
}

// LeaveCommunity 返回 changed=false 表示本来就不是成员；只有真正删掉成员记录的一方扣减人数
func (s *CommunityService) LeaveCommunity(ctx context.Context, id *model.Identity, communityID string) (bool, error) {
	if err := requireIdentity(id); err != nil {
		return false, err
	}
	removed, err := s.store.Delete(ctx, remote.MembersPath(communityID), id.UID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if err := s.store.Increment(ctx, remote.CommunitiesPath(), communityID, "membersCount", -1); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return true, err
	}
	return true, nil
}

func (s *CommunityService) IsMember(ctx context.Context, uid, communityID string) (bool, error) {
	_, err := s.store.Get(ctx, remote.MembersPath(communityID), uid)
	if errors.Is(err, remote.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *CommunityService) Status() (state.LoadStatus, string) {
	return s.list.Status()
}

func decodeCommunity(d remote.Document) (model.Community, error) {
	var c model.Community
	if err := remote.Decode(d, &c); err != nil {
		return model.Community{}, err
	}
	c.ID = d.ID
	return c, nil
}
