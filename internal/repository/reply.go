package repository

import (
	"context"
	"time"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReplyRepository defines persistence operations for replies and reply likes.
type ReplyRepository interface {
	Create(ctx context.Context, reply *models.Reply) error
	// Get returns the reply only if it belongs to postID.
	Get(ctx context.Context, postID uint, replyID string) (*models.Reply, error)
	GetByID(ctx context.Context, replyID string) (*models.Reply, error)
	ListByPost(ctx context.Context, postID, viewerID uint) ([]models.Reply, error)
	Updates(ctx context.Context, replyID string, fields map[string]any) error
	Delete(ctx context.Context, replyID string) error
	CountByPost(ctx context.Context, postID uint) (int64, error)
	// NextPosition returns one past the highest position stored for the post.
	NextPosition(ctx context.Context, postID uint) (int, error)

	IsLiked(ctx context.Context, replyID string, userID uint) (bool, error)
	Like(ctx context.Context, replyID string, userID uint, at time.Time) error
	Unlike(ctx context.Context, replyID string, userID uint) error
}

type replyRepository struct {
	db *gorm.DB
}

// NewReplyRepository returns a new ReplyRepository implementation.
func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &replyRepository{db: db}
}

func (r *replyRepository) Create(ctx context.Context, reply *models.Reply) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(reply).Error; err != nil {
		return models.TranslateError(err)
	}
	return nil
}

func (r *replyRepository) Get(ctx context.Context, postID uint, replyID string) (*models.Reply, error) {
	var reply models.Reply
	err := r.db.WithContext(ctx).Preload("Author").
		Where("id = ? AND post_id = ?", replyID, postID).
		First(&reply).Error
	if err != nil {
		return nil, storageError(err, "Reply", replyID)
	}
	return &reply, nil
}

func (r *replyRepository) GetByID(ctx context.Context, replyID string) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).Where("id = ?", replyID).First(&reply).Error; err != nil {
		return nil, storageError(err, "Reply", replyID)
	}
	return &reply, nil
}

func (r *replyRepository) ListByPost(ctx context.Context, postID, viewerID uint) ([]models.Reply, error) {
	var replies []models.Reply
	err := applyReplyDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("position ASC").
		Find(&replies).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}

func applyReplyDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "replies.*, " +
		"(SELECT COUNT(*) FROM reply_likes WHERE reply_likes.reply_id = replies.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM reply_likes WHERE reply_likes.reply_id = replies.id AND reply_likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

func (r *replyRepository) Updates(ctx context.Context, replyID string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Reply{}).Where("id = ?", replyID).Updates(fields)
	if res.Error != nil {
		return models.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Reply", replyID)
	}
	return nil
}

func (r *replyRepository) Delete(ctx context.Context, replyID string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("reply_id = ?", replyID).Delete(&models.ReplyLike{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	res := db.Where("id = ?", replyID).Delete(&models.Reply{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Reply", replyID)
	}
	return nil
}

func (r *replyRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Reply{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *replyRepository) NextPosition(ctx context.Context, postID uint) (int, error) {
	var pos int
	err := r.db.WithContext(ctx).Model(&models.Reply{}).
		Select("COALESCE(MAX(position), 0)").
		Where("post_id = ?", postID).
		Scan(&pos).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return pos + 1, nil
}

func (r *replyRepository) IsLiked(ctx context.Context, replyID string, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ReplyLike{}).
		Where("reply_id = ? AND user_id = ?", replyID, userID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *replyRepository) Like(ctx context.Context, replyID string, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ReplyLike{ReplyID: replyID, UserID: userID, LikedAt: at}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *replyRepository) Unlike(ctx context.Context, replyID string, userID uint) error {
	err := r.db.WithContext(ctx).Where("reply_id = ? AND user_id = ?", replyID, userID).
		Delete(&models.ReplyLike{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
