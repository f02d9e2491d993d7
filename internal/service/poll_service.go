package service

import (
	"context"
	"errors"
	"strconv"

	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/remote"

	"go.uber.org/zap"
)

const PollsCollection = "polls"

var ErrAlreadyVoted = errors.New("already voted")

type PollService struct {
	store  remote.Store
	events EventLog
	log    *zap.Logger
}

func NewPollService(store remote.Store, events EventLog, log *zap.Logger) *PollService {
	return &PollService{store: store, events: events, log: log}
}

type CreatePollReq struct {
	Question string   `json:"question" validate:"required,nonblank"`
	Options  []string `json:"options" validate:"required,min=1,dive,required,nonblank"`
	PollType string   `json:"pollType" validate:"required,oneof=multiple multiple-selection"`
}

func (s *PollService) Create(ctx context.Context, id *model.Identity, req CreatePollReq) (model.Poll, error) {
	if err := requireIdentity(id); err != nil {
		return model.Poll{}, err
	}
	if err := validateStruct(req); err != nil {
		return model.Poll{}, err
	}
	p := model.Poll{
		Question:  req.Question,
		Options:   req.Options,
		Votes:     make([]int64, len(req.Options)),
		PollType:  req.PollType,
		CreatedBy: id.UID,
		CreatedAt: nowMillis(),
	}
	data, err := remote.Encode(p)
	if err != nil {
		return model.Poll{}, err
	}
	delete(data, "id")
	if p.ID, err = s.store.Add(ctx, PollsCollection, data); err != nil {
		pkg.RemoteErrors.WithLabelValues("add").Inc()
		return model.Poll{}, err
	}
	return p, nil
}

func (s *PollService) Get(ctx context.Context, pollID string) (model.Poll, error) {
	d, err := s.store.Get(ctx, PollsCollection, pollID)
	if err != nil {
		return model.Poll{}, err
	}
	return decodePoll(d)
}

// List 最新的投票在前
func (s *PollService) List(ctx context.Context) ([]model.Poll, error) {
	docs, err := s.store.Query(ctx, PollsCollection, remote.Query{}.Order("createdAt", remote.Desc))
	if err != nil {
		return nil, err
	}
	out := make([]model.Poll, 0, len(docs))
	for _, d := range docs {
		p, err := decodePoll(d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Vote 单选只能选一个选项，多选至少一个且不能重复；每个用户只能投一次
func (s *PollService) Vote(ctx context.Context, id *model.Identity, pollID string, options []int) (model.Poll, error) {
	if err := requireIdentity(id); err != nil {
		return model.Poll{}, err
	}
	p, err := s.Get(ctx, pollID)
	if err != nil {
		return model.Poll{}, err
	}
	if err := checkSelection(p, options); err != nil {
		return model.Poll{}, err
	}

	ballots := remote.BallotsPath(pollID)
	err = s.store.Create(ctx, ballots, id.UID, map[string]any{
		"userId":  id.UID,
		"options": options,
		"castAt":  nowMillis(),
	})
	if errors.Is(err, remote.ErrAlreadyExists) {
		return model.Poll{}, ErrAlreadyVoted
	}
	if err != nil {
		return model.Poll{}, err
	}

	for i, opt := range options {
		if err := s.store.Increment(ctx, PollsCollection, pollID, "votes."+strconv.Itoa(opt), 1); err != nil {
			pkg.RemoteErrors.WithLabelValues("increment").Inc()
			s.undoBallot(ctx, pollID, id.UID, options[:i])
			return model.Poll{}, err
		}
	}
	emit(ctx, s.events, s.log, EventPollVoted, pollID, id.UID, map[string]any{"options": options})
	return s.Get(ctx, pollID)
}

// undoBallot 撤销已经加上的票数并删除选票
func (s *PollService) undoBallot(ctx context.Context, pollID, uid string, applied []int) {
	for _, opt := range applied {
		if err := s.store.Increment(ctx, PollsCollection, pollID, "votes."+strconv.Itoa(opt), -1); err != nil {
			s.log.Error("poll vote rollback failed", zap.String("poll", pollID), zap.Int("option", opt), zap.Error(err))
		}
	}
	if _, err := s.store.Delete(ctx, remote.BallotsPath(pollID), uid); err != nil {
		s.log.Error("ballot cleanup failed", zap.String("poll", pollID), zap.Error(err))
	}
}

func checkSelection(p model.Poll, options []int) error {
	if len(options) == 0 {
		return invalid("select at least one option")
	}
	if p.PollType == model.PollSingle && len(options) != 1 {
		return invalid("single choice poll accepts exactly one option")
	}
	seen := make(map[int]bool, len(options))
	for _, o := range options {
		if o < 0 || o >= len(p.Options) {
			return invalid("option out of range")
		}
		if seen[o] {
			return invalid("duplicate option")
		}
		seen[o] = true
	}
	return nil
}

func decodePoll(d remote.Document) (model.Poll, error) {
	var p model.Poll
	if err := remote.Decode(d, &p); err != nil {
		return model.Poll{}, err
	}
	p.ID = d.ID
	return p, nil
}
