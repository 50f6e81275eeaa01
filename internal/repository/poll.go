package repository

import (
	"context"
	"errors"

	"agora/internal/models"

	"gorm.io/gorm"
)

// PollRepository defines persistence operations for polls and votes.
type PollRepository interface {
	// GetByPost returns the poll with its ordered options, without tallies.
	GetByPost(ctx context.Context, postID uint) (*models.Poll, error)
	UserVotes(ctx context.Context, pollID, userID uint) ([]models.PollVote, error)
	ReplaceVotes(ctx context.Context, pollID, userID uint, votes []models.PollVote) error
	// Tally returns vote counts keyed by option id.
	Tally(ctx context.Context, pollID uint) (map[uint]int64, error)
}

type pollRepository struct {
	db *gorm.DB
}

// NewPollRepository returns a new PollRepository implementation.
func NewPollRepository(db *gorm.DB) PollRepository {
	return &pollRepository{db: db}
}

func (r *pollRepository) GetByPost(ctx context.Context, postID uint) (*models.Poll, error) {
	var poll models.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Where("post_id = ?", postID).
		First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Poll for post", postID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &poll, nil
}

func (r *pollRepository) UserVotes(ctx context.Context, pollID, userID uint) ([]models.PollVote, error) {
	var votes []models.PollVote
	err := r.db.WithContext(ctx).Where("poll_id = ? AND user_id = ?", pollID, userID).Find(&votes).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return votes, nil
}

// ReplaceVotes drops the user's previous votes on the poll and stores votes.
func (r *pollRepository) ReplaceVotes(ctx context.Context, pollID, userID uint, votes []models.PollVote) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("poll_id = ? AND user_id = ?", pollID, userID).Delete(&models.PollVote{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if len(votes) == 0 {
		return nil
	}
	if err := db.Create(&votes).Error; err != nil {
		return models.TranslateError(err)
	}
	return nil
}

type optionTally struct {
	OptionID uint
	Votes    int64
}

func (r *pollRepository) Tally(ctx context.Context, pollID uint) (map[uint]int64, error) {
	var rows []optionTally
	err := r.db.WithContext(ctx).Model(&models.PollVote{}).
		Select("option_id, COUNT(*) AS votes").
		Where("poll_id = ?", pollID).
		Group("option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	tally := make(map[uint]int64, len(rows))
	for _, row := range rows {
		tally[row.OptionID] = row.Votes
	}
	return tally, nil
}
