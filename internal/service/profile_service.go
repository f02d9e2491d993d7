package service

import (
	"context"
	"errors"
	"strings"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/model"
	"Niche_Community/internal/remote"

	"go.uber.org/zap"
)

const (
	UsersCollection    = "users"
	DefaultDisplayName = "New User"
)

// 成就等级
const (
	AchievementNewcomer    = "Newcomer"
	AchievementContributor = "Contributor"
	AchievementExpert      = "Expert"
)

type ProfileService struct {
	store remote.Store
	posts *PostService
	log   *zap.Logger
}

func NewProfileService(store remote.Store, posts *PostService, log *zap.Logger) *ProfileService {
	return &ProfileService{store: store, posts: posts, log: log}
}

type UpdateProfileReq struct {
	DisplayName *string `json:"displayName" validate:"omitempty,nonblank,max=64"`
	PhotoURL    *string `json:"photoURL" validate:"omitempty,url"`
}

type Achievements struct {
	Posts int    `json:"posts"`
	Level string `json:"level"`
}

// Watch 登录时创建资料文档，返回取消订阅函数
func (s *ProfileService) Watch(p *auth.Provider) func() {
	return p.Subscribe(func(ctx context.Context, ev auth.Event) {
		if ev.Identity == nil {
			return
		}
		if _, err := s.Get(ctx, ev.Identity); err != nil {
			s.log.Warn("profile bootstrap failed", zap.String("uid", ev.UID), zap.Error(err))
		}
	})
}

// Get 第一次访问时创建资料文档
func (s *ProfileService) Get(ctx context.Context, id *model.Identity) (model.Profile, error) {
	if err := requireIdentity(id); err != nil {
		return model.Profile{}, err
	}
	d, err := s.store.Get(ctx, UsersCollection, id.UID)
	if err == nil {
		return decodeProfile(d)
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return model.Profile{}, err
	}

	p := model.Profile{
		UID:         id.UID,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		CreatedAt:   nowMillis(),
	}
	if p.DisplayName == "" {
		p.DisplayName = DefaultDisplayName
	}
	data, err := remote.Encode(p)
	if err != nil {
		return model.Profile{}, err
	}
	err = s.store.Create(ctx, UsersCollection, id.UID, data)
	if errors.Is(err, remote.ErrAlreadyExists) {
		// 并发创建，读已有的
		d, err := s.store.Get(ctx, UsersCollection, id.UID)
		if err != nil {
			return model.Profile{}, err
		}
		return decodeProfile(d)
	}
	if err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

func (s *ProfileService) UpdateBio(ctx context.Context, id *model.Identity, bio string) (model.Profile, error) {
	if err := requireIdentity(id); err != nil {
		return model.Profile{}, err
	}
	if strings.TrimSpace(bio) == "" {
		return model.Profile{}, invalid("bio required")
	}
	return s.update(ctx, id, map[string]any{"bio": bio})
}

func (s *ProfileService) Update(ctx context.Context, id *model.Identity, req UpdateProfileReq) (model.Profile, error) {
	if err := requireIdentity(id); err != nil {
		return model.Profile{}, err
	}
	if err := validateStruct(req); err != nil {
		return model.Profile{}, err
	}
	partial := map[string]any{}
	if req.DisplayName != nil {
		partial["displayName"] = *req.DisplayName
	}
	if req.PhotoURL != nil {
		partial["photoURL"] = *req.PhotoURL
	}
	return s.update(ctx, id, partial)
}

func (s *ProfileService) update(ctx context.Context, id *model.Identity, partial map[string]any) (model.Profile, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return model.Profile{}, err
	}
	if len(partial) > 0 {
		if err := s.store.Update(ctx, UsersCollection, id.UID, partial); err != nil {
			return model.Profile{}, err
		}
	}
	return s.Get(ctx, id)
}

func (s *ProfileService) Achievements(ctx context.Context, uid string) (Achievements, error) {
	n, err := s.posts.CountByAuthor(ctx, uid)
	if err != nil {
		return Achievements{}, err
	}
	return Achievements{Posts: n, Level: AchievementLevel(n)}, nil
}

// AchievementLevel 按发帖数计算等级
func AchievementLevel(posts int) string {
	switch {
	case posts >= 20:
		return AchievementExpert
	case posts >= 5:
		return AchievementContributor
	default:
		return AchievementNewcomer
	}
}

func decodeProfile(d remote.Document) (model.Profile, error) {
	var p model.Profile
	if err := remote.Decode(d, &p); err != nil {
		return model.Profile{}, err
	}
	p.UID = d.ID
	return p, nil
}
