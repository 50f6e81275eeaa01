package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForumFilter narrows a forum listing.
type ForumFilter struct {
	Category models.ForumCategory
	Order    string
	Page     Page
}

// ForumAggregates are the derived forum columns owned by the synchronizer.
type ForumAggregates struct {
	PostsCount   int64
	LastPostID   *uint
	LastActivity time.Time
}

// ForumTotals are the read-side statistics for a forum.
type ForumTotals struct {
	RepliesTotal int64 `json:"repliesTotal"`
	ViewsTotal   int64 `json:"viewsTotal"`
	LikesTotal   int64 `json:"likesTotal"`
}

// ForumRepository defines persistence operations for forums and the
// records hanging off them (rules, moderators, bans, subscriptions).
type ForumRepository interface {
	Create(ctx context.Context, forum *models.Forum) error
	GetByID(ctx context.Context, id uint) (*models.Forum, error)
	// GetDetail preloads creator, moderators, ordered rules and the last
	// post with its author.
	GetDetail(ctx context.Context, id uint) (*models.Forum, error)
	GetByTitle(ctx context.Context, title string) (*models.Forum, error)
	List(ctx context.Context, filter ForumFilter) ([]models.Forum, int64, error)
	ListIDs(ctx context.Context) ([]uint, error)
	Updates(ctx context.Context, id uint, fields map[string]any) error
	// Delete removes the forum row and its rules, moderators, bans and
	// subscriptions. Posts must be removed first.
	Delete(ctx context.Context, id uint) error

	SetAggregates(ctx context.Context, id uint, agg ForumAggregates) error
	TouchActivity(ctx context.Context, id uint, at time.Time) error
	Totals(ctx context.Context, id uint) (ForumTotals, error)

	CreateRule(ctx context.Context, rule *models.ForumRule) error
	GetRule(ctx context.Context, forumID, ruleID uint) (*models.ForumRule, error)
	UpdateRule(ctx context.Context, rule *models.ForumRule) error
	DeleteRule(ctx context.Context, forumID, ruleID uint) error
	NextRulePosition(ctx context.Context, forumID uint) (int, error)

	AddModerator(ctx context.Context, forumID, userID uint) error
	RemoveModerator(ctx context.Context, forumID, userID uint) error
	IsModerator(ctx context.Context, forumID, userID uint) (bool, error)

	SaveBan(ctx context.Context, ban *models.ForumBan) error
	GetBan(ctx context.Context, forumID, userID uint) (*models.ForumBan, error)
	ListBans(ctx context.Context, forumID uint) ([]models.ForumBan, error)
	RemoveBan(ctx context.Context, forumID, userID uint) error

	Subscribe(ctx context.Context, forumID, userID uint, at time.Time) error
	Unsubscribe(ctx context.Context, forumID, userID uint) error
	IsSubscribed(ctx context.Context, forumID, userID uint) (bool, error)
	// RecountSubscribers stores and returns the exact subscriber count.
	RecountSubscribers(ctx context.Context, forumID uint) (int64, error)
	ListSubscribed(ctx context.Context, userID uint) ([]models.Forum, error)
}

type forumRepository struct {
	db *gorm.DB
}

// NewForumRepository returns a new ForumRepository implementation.
func NewForumRepository(db *gorm.DB) ForumRepository {
	return &forumRepository{db: db}
}

func (r *forumRepository) Create(ctx context.Context, forum *models.Forum) error {
	if err := r.db.WithContext(ctx).Omit("Moderators.*").Create(forum).Error; err != nil {
		return models.TranslateError(err)
	}
	return nil
}

func (r *forumRepository) GetByID(ctx context.Context, id uint) (*models.Forum, error) {
	var forum models.Forum
	if err := r.db.WithContext(ctx).First(&forum, id).Error; err != nil {
		return nil, storageError(err, "Forum", id)
	}
	return &forum, nil
}

func (r *forumRepository) GetDetail(ctx context.Context, id uint) (*models.Forum, error) {
	var forum models.Forum
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Moderators").
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("LastPost").
		Preload("LastPost.Author").
		First(&forum, id).Error
	if err != nil {
		return nil, storageError(err, "Forum", id)
	}
	return &forum, nil
}

// GetByTitle matches case-insensitively and returns (nil, nil) when free.
func (r *forumRepository) GetByTitle(ctx context.Context, title string) (*models.Forum, error) {
	var forum models.Forum
	err := r.db.WithContext(ctx).
		Where("LOWER(title) = ?", strings.ToLower(strings.TrimSpace(title))).
		First(&forum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &forum, nil
}

func (r *forumRepository) List(ctx context.Context, filter ForumFilter) ([]models.Forum, int64, error) {
	order, err := ForumSorts.Order(filter.Order, "-updatedAt")
	if err != nil {
		return nil, 0, err
	}

	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Forum{}).Where("status <> ?", models.ForumStatusPrivate)
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var forums []models.Forum
	err = filter.Page.apply(scoped()).
		Preload("Creator").
		Preload("LastPost").
		Order(order).
		Find(&forums).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return forums, total, nil
}

func (r *forumRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Forum{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *forumRepository) Updates(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Forum{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Forum", id)
	}
	return nil
}

func (r *forumRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	for _, dependent := range []any{
		&models.ForumRule{},
		&models.ForumBan{},
		&models.ForumSubscription{},
	} {
		if err := db.Where("forum_id = ?", id).Delete(dependent).Error; err != nil {
			return models.NewInternalError(err)
		}
	}
	if err := db.Exec("DELETE FROM forum_moderators WHERE forum_id = ?", id).Error; err != nil {
		return models.NewInternalError(err)
	}

	res := db.Delete(&models.Forum{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Forum", id)
	}
	return nil
}

func (r *forumRepository) SetAggregates(ctx context.Context, id uint, agg ForumAggregates) error {
	err := r.db.WithContext(ctx).Model(&models.Forum{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"posts_count":   agg.PostsCount,
		"last_post_id":  agg.LastPostID,
		"last_activity": agg.LastActivity,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *forumRepository) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Forum{}).Where("id = ?", id).
		UpdateColumn("last_activity", at).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *forumRepository) Totals(ctx context.Context, id uint) (ForumTotals, error) {
	var totals ForumTotals
	db := r.db.WithContext(ctx)

	var row postSums
	err := db.Model(&models.Post{}).
		Select("COALESCE(SUM(reply_count), 0) AS replies, COALESCE(SUM(views), 0) AS views").
		Where("forum_id = ?", id).
		Scan(&row).Error
	if err != nil {
		return totals, models.NewInternalError(err)
	}
	totals.RepliesTotal = row.Replies
	totals.ViewsTotal = row.Views

	err = db.Model(&models.PostLike{}).
		Joins("JOIN posts ON posts.id = post_likes.post_id").
		Where("posts.forum_id = ?", id).
		Count(&totals.LikesTotal).Error
	if err != nil {
		return totals, models.NewInternalError(err)
	}
	return totals, nil
}

type postSums struct {
	Replies int64
	Views   int64
}

func (r *forumRepository) CreateRule(ctx context.Context, rule *models.ForumRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return models.TranslateError(err)
	}
	return nil
}

func (r *forumRepository) GetRule(ctx context.Context, forumID, ruleID uint) (*models.ForumRule, error) {
	var rule models.ForumRule
	err := r.db.WithContext(ctx).Where("forum_id = ? AND id = ?", forumID, ruleID).First(&rule).Error
	if err != nil {
		return nil, storageError(err, "Rule", ruleID)
	}
	return &rule, nil
}

func (r *forumRepository) UpdateRule(ctx context.Context, rule *models.ForumRule) error {
	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		return models.TranslateError(err)
	}
	return nil
}

func (r *forumRepository) DeleteRule(ctx context.Context, forumID, ruleID uint) error {
	res := r.db.WithContext(ctx).Where("forum_id = ? AND id = ?", forumID, ruleID).Delete(&models.ForumRule{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Rule", ruleID)
	}
	return nil
}

func (r *forumRepository) NextRulePosition(ctx context.Context, forumID uint) (int, error) {
	var pos int
	err := r.db.WithContext(ctx).Model(&models.ForumRule{}).
		Select("COALESCE(MAX(position), 0)").
		Where("forum_id = ?", forumID).
		Scan(&pos).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return pos + 1, nil
}

func (r *forumRepository) AddModerator(ctx context.Context, forumID, userID uint) error {
	err := r.db.WithContext(ctx).Table("forum_moderators").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]any{"forum_id": forumID, "user_id": userID}).Error
	if err != nil {
		return models.TranslateError(err)
	}
	return nil
}

func (r *forumRepository) RemoveModerator(ctx context.Context, forumID, userID uint) error {
	res := r.db.WithContext(ctx).Exec(
		"DELETE FROM forum_moderators WHERE forum_id = ? AND user_id = ?", forumID, userID,
	)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Moderator", userID)
	}
	return nil
}

func (r *forumRepository) IsModerator(ctx context.Context, forumID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Table("forum_moderators").
		Where("forum_id = ? AND user_id = ?", forumID, userID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

// SaveBan inserts the ban or replaces the existing one for the same user.
func (r *forumRepository) SaveBan(ctx context.Context, ban *models.ForumBan) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "forum_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "banned_by_id", "banned_at", "expires_at"}),
	}).Create(ban).Error
	if err != nil {
		return models.TranslateError(err)
	}
	return nil
}

// GetBan returns (nil, nil) when the user has no ban record in the forum.
func (r *forumRepository) GetBan(ctx context.Context, forumID, userID uint) (*models.ForumBan, error) {
	var ban models.ForumBan
	err := r.db.WithContext(ctx).Where("forum_id = ? AND user_id = ?", forumID, userID).First(&ban).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &ban, nil
}

func (r *forumRepository) ListBans(ctx context.Context, forumID uint) ([]models.ForumBan, error) {
	var bans []models.ForumBan
	err := r.db.WithContext(ctx).Preload("User").
		Where("forum_id = ?", forumID).
		Order("banned_at DESC").
		Find(&bans).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return bans, nil
}

func (r *forumRepository) RemoveBan(ctx context.Context, forumID, userID uint) error {
	res := r.db.WithContext(ctx).Where("forum_id = ? AND user_id = ?", forumID, userID).Delete(&models.ForumBan{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Ban", userID)
	}
	return nil
}

func (r *forumRepository) Subscribe(ctx context.Context, forumID, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ForumSubscription{
		ForumID:      forumID,
		UserID:       userID,
		SubscribedAt: at,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *forumRepository) Unsubscribe(ctx context.Context, forumID, userID uint) error {
	err := r.db.WithContext(ctx).Where("forum_id = ? AND user_id = ?", forumID, userID).
		Delete(&models.ForumSubscription{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *forumRepository) IsSubscribed(ctx context.Context, forumID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ForumSubscription{}).
		Where("forum_id = ? AND user_id = ?", forumID, userID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *forumRepository) RecountSubscribers(ctx context.Context, forumID uint) (int64, error) {
	db := r.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.ForumSubscription{}).Where("forum_id = ?", forumID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	if err := db.Model(&models.Forum{}).Where("id = ?", forumID).UpdateColumn("subscribers_count", n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *forumRepository) ListSubscribed(ctx context.Context, userID uint) ([]models.Forum, error) {
	var forums []models.Forum
	err := r.db.WithContext(ctx).
		Joins("JOIN forum_subscriptions ON forum_subscriptions.forum_id = forums.id").
		Where("forum_subscriptions.user_id = ?", userID).
		Order("forum_subscriptions.subscribed_at DESC").
		Find(&forums).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return forums, nil
}
