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

// PostFilter narrows a post listing. ViewerID drives the liked flag;
// zero means anonymous.
type PostFilter struct {
	ForumID       uint
	AuthorID      uint
	Query         string
	Order         string
	IncludeHidden bool
	ViewerID      uint
	Page          Page
}

// PostRepository defines persistence operations for posts and post likes.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// GetDetail preloads author, forum, poll options and the ordered
	// replies with their authors, and fills like counts for the viewer.
	GetDetail(ctx context.Context, id, viewerID uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]models.Post, int64, error)
	Updates(ctx context.Context, id uint, fields map[string]any) error
	IncrementViews(ctx context.Context, id uint) error
	// Delete removes the post with its replies, likes and poll.
	Delete(ctx context.Context, id uint) error
	// DeleteByForum removes every post of the forum with the same cascade
	// as Delete and returns the distinct authors affected.
	DeleteByForum(ctx context.Context, forumID uint) ([]uint, error)

	CountByForum(ctx context.Context, forumID uint) (int64, error)
	// NewestInForum returns (nil, nil) when the forum has no posts.
	NewestInForum(ctx context.Context, forumID uint) (*models.Post, error)
	IDsByForum(ctx context.Context, forumID uint) ([]uint, error)
	SetReplyAggregates(ctx context.Context, id uint, replyCount int64, lastActivity time.Time) error
	SetReplyCount(ctx context.Context, id uint, replyCount int64) error

	IsLiked(ctx context.Context, postID, userID uint) (bool, error)
	Like(ctx context.Context, postID, userID uint, at time.Time) error
	Unlike(ctx context.Context, postID, userID uint) error
	CountLikes(ctx context.Context, postID uint) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Forum").Create(post).Error; err != nil {
		return models.TranslateError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, storageError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetDetail(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := applyPostDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Preload("Forum").
		Preload("Poll").
		Preload("Poll.Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return applyReplyDetails(db, viewerID).Order("position ASC")
		}).
		Preload("Replies.Author").
		First(&post, id).Error
	if err != nil {
		return nil, storageError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]models.Post, int64, error) {
	order, err := PostSorts.Order(filter.Order, "-createdAt")
	if err != nil {
		return nil, 0, err
	}

	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Post{})
		if filter.ForumID != 0 {
			q = q.Where("posts.forum_id = ?", filter.ForumID)
		}
		if filter.AuthorID != 0 {
			q = q.Where("posts.author_id = ?", filter.AuthorID)
		}
		if !filter.IncludeHidden {
			q = q.Where("posts.status <> ?", models.PostStatusHidden)
		}
		if term := strings.TrimSpace(filter.Query); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			q = q.Where("LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ?", like, like)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	err = filter.Page.apply(applyPostDetails(scoped(), filter.ViewerID)).
		Preload("Author").
		Order(order).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// applyPostDetails adds subqueries to fetch like counts and liked status in a single query.
func applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

func (r *postRepository) Updates(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// IncrementViews bumps the counter in SQL so concurrent reads never lose
// an increment.
func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := deletePostDependents(db, []uint{id}); err != nil {
		return err
	}
	res := db.Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) DeleteByForum(ctx context.Context, forumID uint) ([]uint, error) {
	db := r.db.WithContext(ctx)

	var posts []models.Post
	if err := db.Select("id", "author_id").Where("forum_id = ?", forumID).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(posts) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(posts))
	seen := make(map[uint]struct{}, len(posts))
	authors := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		if _, ok := seen[p.AuthorID]; !ok {
			seen[p.AuthorID] = struct{}{}
			authors = append(authors, p.AuthorID)
		}
	}

	if err := deletePostDependents(db, ids); err != nil {
		return nil, err
	}
	if err := db.Where("id IN ?", ids).Delete(&models.Post{}).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return authors, nil
}

// deletePostDependents removes reply likes, replies, post likes and polls
// of the given posts, children first.
func deletePostDependents(db *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	replyIDs := db.Model(&models.Reply{}).Select("id").Where("post_id IN ?", postIDs)
	pollIDs := db.Model(&models.Poll{}).Select("id").Where("post_id IN ?", postIDs)

	steps := []struct {
		model any
		query string
		arg   any
	}{
		{&models.ReplyLike{}, "reply_id IN (?)", replyIDs},
		{&models.Reply{}, "post_id IN ?", postIDs},
		{&models.PostLike{}, "post_id IN ?", postIDs},
		{&models.PollVote{}, "poll_id IN (?)", pollIDs},
		{&models.PollOption{}, "poll_id IN (?)", pollIDs},
		{&models.Poll{}, "post_id IN ?", postIDs},
	}
	for _, step := range steps {
		if err := db.Where(step.query, step.arg).Delete(step.model).Error; err != nil {
			return models.NewInternalError(err)
		}
	}
	return nil
}

func (r *postRepository) CountByForum(ctx context.Context, forumID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("forum_id = ?", forumID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) NewestInForum(ctx context.Context, forumID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Where("forum_id = ?", forumID).
		Order("created_at DESC, id DESC").
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) IDsByForum(ctx context.Context, forumID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("forum_id = ?", forumID).Order("id ASC").Pluck("id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *postRepository) SetReplyCount(ctx context.Context, id uint, replyCount int64) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumn("reply_count", replyCount).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) SetReplyAggregates(ctx context.Context, id uint, replyCount int64, lastActivity time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"reply_count":   replyCount,
		"last_activity": lastActivity,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *postRepository) Like(ctx context.Context, postID, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostLike{PostID: postID, UserID: userID, LikedAt: at}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID uint) error {
	err := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.PostLike{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
