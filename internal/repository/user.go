package repository

import (
	"context"
	"errors"

	"agora/internal/cache"
	"agora/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// GetByID may be served from cache; the password hash is never cached.
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetWithPassword always reads the row, including the password hash.
	GetWithPassword(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Updates(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, page Page) ([]models.User, int64, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	// RecomputeStats rebuilds postsCount, likesReceived and reputation
	// from the posts and like tables.
	RecomputeStats(ctx context.Context, id uint) (models.UserStats, error)
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Store
	// pending is set when db is a transaction. Invalidations wait in it
	// until commit and reads skip the cache.
	pending *pendingUsers
}

// pendingUsers collects the user ids a transaction touched.
type pendingUsers struct {
	ids []uint
}

func (p *pendingUsers) flush(ctx context.Context, store *cache.Store) {
	for _, id := range p.ids {
		store.InvalidateUser(ctx, id)
	}
	p.ids = nil
}

// NewUserRepository returns a new UserRepository implementation.
// store may be nil.
func NewUserRepository(db *gorm.DB, store *cache.Store) UserRepository {
	return &userRepository{db: db, cache: store}
}

func newTxUserRepository(tx *gorm.DB, store *cache.Store, pending *pendingUsers) UserRepository {
	return &userRepository{db: tx, cache: store, pending: pending}
}

func (r *userRepository) invalidate(ctx context.Context, id uint) {
	if r.pending != nil {
		r.pending.ids = append(r.pending.ids, id)
		return
	}
	r.cache.InvalidateUser(ctx, id)
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	load := func() error {
		return storageError(r.db.WithContext(ctx).First(&user, id).Error, "User", id)
	}
	if r.pending != nil {
		if err := load(); err != nil {
			return nil, err
		}
		return &user, nil
	}

	if err := r.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, load); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetWithPassword(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, storageError(err, "User", id)
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

// GetByUsername returns (nil, nil) when the name is free.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return models.TranslateError(err)
	}
	return nil
}

func (r *userRepository) Updates(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *userRepository) List(ctx context.Context, page Page) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := page.apply(r.db.WithContext(ctx).Order("created_at DESC")).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) RecomputeStats(ctx context.Context, id uint) (models.UserStats, error) {
	db := r.db.WithContext(ctx)
	var stats models.UserStats

	if err := db.Model(&models.Post{}).Where("author_id = ?", id).Count(&stats.PostsCount).Error; err != nil {
		return stats, models.NewInternalError(err)
	}

	var postLikes, replyLikes int64
	if err := db.Model(&models.PostLike{}).
		Joins("JOIN posts ON posts.id = post_likes.post_id").
		Where("posts.author_id = ?", id).
		Count(&postLikes).Error; err != nil {
		return stats, models.NewInternalError(err)
	}
	if err := db.Model(&models.ReplyLike{}).
		Joins("JOIN replies ON replies.id = reply_likes.reply_id").
		Where("replies.author_id = ?", id).
		Count(&replyLikes).Error; err != nil {
		return stats, models.NewInternalError(err)
	}
	stats.LikesReceived = postLikes + replyLikes
	stats.Reputation = models.Reputation(stats.PostsCount, stats.LikesReceived)

	err := db.Model(&models.User{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"stat_posts_count":    stats.PostsCount,
		"stat_likes_received": stats.LikesReceived,
		"stat_reputation":     stats.Reputation,
	}).Error
	if err != nil {
		return stats, models.NewInternalError(err)
	}
	r.invalidate(ctx, id)
	return stats, nil
}
