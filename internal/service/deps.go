package service

import (
	"context"
	"encoding/json"
	"time"

	"agora/internal/cache"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps is what the forum domain services share.
type Deps struct {
	Repos    repository.Repositories
	Tx       repository.Transactor
	Sync     *Synchronizer
	Cache    *cache.Store
	Notifier *notifications.Notifier
	Flags    *featureflags.Manager
}

// NewDeps builds Deps over db. store, notifier and flags may be nil.
func NewDeps(db *gorm.DB, store *cache.Store, notifier *notifications.Notifier, flags *featureflags.Manager) Deps {
	return Deps{
		Repos:    repository.New(db, store),
		Tx:       repository.NewTransactor(db, store),
		Sync:     NewSynchronizer(),
		Cache:    store,
		Notifier: notifier,
		Flags:    flags,
	}
}

// publish sends ev after the write it describes has committed. The feed is
// best effort, so failures are only logged.
func (d Deps) publish(ctx context.Context, ev notifications.ForumEvent) {
	if err := d.Notifier.PublishForumActivity(ctx, ev); err != nil {
		middleware.L(ctx).Warn("forum activity publish failed",
			zap.String("event", ev.Type),
			zap.Uint("forum_id", ev.ForumID),
			zap.Error(err),
		)
	}
}

// canModerate reports whether user may moderate the forum: admins and
// global moderators everywhere, forum moderators in their own forum.
func canModerate(ctx context.Context, repos repository.Repositories, forumID uint, user *models.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.HasRole(models.RoleAdmin, models.RoleModerator) {
		return true, nil
	}
	return repos.Forums.IsModerator(ctx, forumID, user.ID)
}

// checkBanned fails with FORBIDDEN when userID has an active ban in the forum.
func checkBanned(ctx context.Context, repos repository.Repositories, forumID, userID uint, now func() time.Time) error {
	ban, err := repos.Forums.GetBan(ctx, forumID, userID)
	if err != nil {
		return err
	}
	if ban != nil && ban.ActiveAt(now()) {
		return models.NewForbiddenError("You are banned from this forum")
	}
	return nil
}

// tagsColumn encodes tags the way the json serializer stores them, for
// map based updates that bypass the model.
func tagsColumn(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(b), nil
}
