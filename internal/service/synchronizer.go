// Package service holds the forum business logic between the HTTP handlers
// and the repositories.
package service

import (
	"context"
	"time"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Synchronizer keeps the derived forum, post and user aggregates equal to
// a recount of the rows they summarize. It only writes through the
// repositories it is handed, so callers run it in the same transaction as
// the primary write.
type Synchronizer struct {
	now func() time.Time
}

// NewSynchronizer returns a Synchronizer using the wall clock.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{now: time.Now}
}

func (s *Synchronizer) track(ctx context.Context, event string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, done := observability.TraceSync(ctx, event, attrs...)
	return ctx, func(errp *error) { done(*errp) }
}

// OnPostCreated points the forum at the new post, recounts its posts and
// refreshes the author's stats.
func (s *Synchronizer) OnPostCreated(ctx context.Context, repos repository.Repositories, post *models.Post) (err error) {
	ctx, finish := s.track(ctx, "post_created",
		observability.ForumID(post.ForumID),
		observability.PostID(post.ID),
	)
	defer finish(&err)

	count, err := repos.Posts.CountByForum(ctx, post.ForumID)
	if err != nil {
		return err
	}
	lastPost := post.ID
	if err = repos.Forums.SetAggregates(ctx, post.ForumID, repository.ForumAggregates{
		PostsCount:   count,
		LastPostID:   &lastPost,
		LastActivity: s.now(),
	}); err != nil {
		return err
	}
	_, err = repos.Users.RecomputeStats(ctx, post.AuthorID)
	return err
}

// OnPostDeleted recounts the forum after a post is gone and refreshes the
// former author's stats.
func (s *Synchronizer) OnPostDeleted(ctx context.Context, repos repository.Repositories, forumID, authorID uint) (err error) {
	ctx, finish := s.track(ctx, "post_deleted", observability.ForumID(forumID))
	defer finish(&err)

	if _, err = s.recomputeForum(ctx, repos, forumID); err != nil {
		return err
	}
	_, err = repos.Users.RecomputeStats(ctx, authorID)
	return err
}

// OnRepliesChanged recounts the post's replies and stamps activity on the
// post and its forum. The forum's last post is unchanged. Stats are
// refreshed for every user in affected, typically the reply author.
func (s *Synchronizer) OnRepliesChanged(ctx context.Context, repos repository.Repositories, post *models.Post, affected ...uint) (err error) {
	ctx, finish := s.track(ctx, "replies_changed",
		observability.ForumID(post.ForumID),
		observability.PostID(post.ID),
	)
	defer finish(&err)

	count, err := repos.Replies.CountByPost(ctx, post.ID)
	if err != nil {
		return err
	}
	now := s.now()
	if err = repos.Posts.SetReplyAggregates(ctx, post.ID, count, now); err != nil {
		return err
	}
	if err = repos.Forums.TouchActivity(ctx, post.ForumID, now); err != nil {
		return err
	}
	post.ReplyCount = count
	post.LastActivity = now
	return s.refreshUsers(ctx, repos, affected)
}

// OnForumDeleted refreshes the stats of every author whose posts went away
// with the forum.
func (s *Synchronizer) OnForumDeleted(ctx context.Context, repos repository.Repositories, authorIDs []uint) (err error) {
	ctx, finish := s.track(ctx, "forum_deleted")
	defer finish(&err)
	return s.refreshUsers(ctx, repos, authorIDs)
}

// OnLikesChanged refreshes the liked content author's stats.
func (s *Synchronizer) OnLikesChanged(ctx context.Context, repos repository.Repositories, authorID uint) (err error) {
	ctx, finish := s.track(ctx, "likes_changed", observability.UserID(authorID))
	defer finish(&err)
	_, err = repos.Users.RecomputeStats(ctx, authorID)
	return err
}

// RecountForum rebuilds every aggregate of one forum from scratch: post
// count, last post, last activity, subscriber count and each post's reply
// count.
func (s *Synchronizer) RecountForum(ctx context.Context, repos repository.Repositories, forumID uint) (agg repository.ForumAggregates, err error) {
	ctx, finish := s.track(ctx, "recount", observability.ForumID(forumID))
	defer finish(&err)

	if _, err = repos.Forums.GetByID(ctx, forumID); err != nil {
		return agg, err
	}
	if agg, err = s.recomputeForum(ctx, repos, forumID); err != nil {
		return agg, err
	}
	if _, err = repos.Forums.RecountSubscribers(ctx, forumID); err != nil {
		return agg, err
	}

	postIDs, err := repos.Posts.IDsByForum(ctx, forumID)
	if err != nil {
		return agg, err
	}
	for _, id := range postIDs {
		n, cerr := repos.Replies.CountByPost(ctx, id)
		if cerr != nil {
			return agg, cerr
		}
		if err = repos.Posts.SetReplyCount(ctx, id, n); err != nil {
			return agg, err
		}
	}
	return agg, nil
}

// recomputeForum derives postsCount, lastPost and lastActivity from the
// forum's surviving posts. With no posts left lastActivity is now.
func (s *Synchronizer) recomputeForum(ctx context.Context, repos repository.Repositories, forumID uint) (repository.ForumAggregates, error) {
	var agg repository.ForumAggregates

	count, err := repos.Posts.CountByForum(ctx, forumID)
	if err != nil {
		return agg, err
	}
	newest, err := repos.Posts.NewestInForum(ctx, forumID)
	if err != nil {
		return agg, err
	}

	agg.PostsCount = count
	agg.LastActivity = s.now()
	if newest != nil {
		id := newest.ID
		agg.LastPostID = &id
		agg.LastActivity = newest.CreatedAt
	}
	return agg, repos.Forums.SetAggregates(ctx, forumID, agg)
}

func (s *Synchronizer) refreshUsers(ctx context.Context, repos repository.Repositories, ids []uint) error {
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := repos.Users.RecomputeStats(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
