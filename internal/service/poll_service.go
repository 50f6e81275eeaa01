package service

import (
	"context"
	"math"
	"time"

	"agora/internal/featureflags"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"
)

type VoteInput struct {
	OptionIDs []uint `json:"optionIds" validate:"required,min=1,dive,required"`
}

// PollService serves poll results and records votes.
type PollService struct {
	Deps
	now func() time.Time
}

func NewPollService(deps Deps) *PollService {
	return &PollService{Deps: deps, now: time.Now}
}

// Results returns the post's poll with vote counts and percentages filled in.
func (s *PollService) Results(ctx context.Context, postID uint) (*models.Poll, error) {
	if _, err := s.Repos.Posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	poll, err := s.Repos.Polls.GetByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := loadPollResults(ctx, s.Repos, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

// Vote records the caller's choice. Single-vote polls accept exactly one
// option, and a new vote always replaces the caller's previous one.
func (s *PollService) Vote(ctx context.Context, postID uint, voter *models.User, in VoteInput) (*models.Poll, error) {
	if !s.Flags.Enabled(featureflags.Polls, voter.ID) {
		return nil, models.NewValidationError("Polls are not enabled")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var poll *models.Poll
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		post, err := repos.Posts.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if err := checkBanned(ctx, repos, post.ForumID, voter.ID, s.now); err != nil {
			return err
		}
		if poll, err = repos.Polls.GetByPost(ctx, postID); err != nil {
			return err
		}

		now := s.now()
		if poll.ExpiredAt(now) {
			return models.NewValidationError("This poll has expired")
		}
		choices := dedupe(in.OptionIDs)
		if !poll.AllowMultipleVotes && len(choices) > 1 {
			return models.NewValidationError("This poll accepts a single option")
		}

		valid := make(map[uint]bool, len(poll.Options))
		for _, o := range poll.Options {
			valid[o.ID] = true
		}
		votes := make([]models.PollVote, 0, len(choices))
		for _, id := range choices {
			if !valid[id] {
				return models.NewValidationError("Invalid poll option")
			}
			votes = append(votes, models.PollVote{PollID: poll.ID, OptionID: id, UserID: voter.ID, VotedAt: now})
		}
		if err := repos.Polls.ReplaceVotes(ctx, poll.ID, voter.ID, votes); err != nil {
			return err
		}
		return loadPollResults(ctx, repos, poll)
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// loadPollResults fills totals and per-option percentages, rounded to one
// decimal place.
func loadPollResults(ctx context.Context, repos repository.Repositories, poll *models.Poll) error {
	tally, err := repos.Polls.Tally(ctx, poll.ID)
	if err != nil {
		return err
	}
	poll.TotalVotes = 0
	for i := range poll.Options {
		poll.Options[i].Votes = tally[poll.Options[i].ID]
		poll.TotalVotes += poll.Options[i].Votes
	}
	for i := range poll.Options {
		poll.Options[i].Percentage = percentage(poll.Options[i].Votes, poll.TotalVotes)
	}
	return nil
}

func percentage(votes, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)*1000/float64(total)) / 10
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
