package service

import (
	"context"
	"strings"
	"time"

	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/validation"

	"go.uber.org/zap"
)

type PollInput struct {
	Question           string     `json:"question" validate:"required,min=3,max=200"`
	Options            []string   `json:"options" validate:"required,min=2,max=10,dive,required,max=200"`
	ExpiresAt          *time.Time `json:"expiresAt"`
	AllowMultipleVotes bool       `json:"allowMultipleVotes"`
}

type CreatePostInput struct {
	Title   string     `json:"title" validate:"required,min=3,max=200"`
	Content string     `json:"content" validate:"required,min=10,max=50000"`
	ForumID uint       `json:"forumId" validate:"required"`
	Type    string     `json:"type" validate:"omitempty,oneof=normal announcement poll"`
	Tags    []string   `json:"tags"`
	Poll    *PollInput `json:"poll"`
}

// UpdatePostInput changes only the fields that are set.
type UpdatePostInput struct {
	Title   *string   `json:"title" validate:"omitempty,min=3,max=200"`
	Content *string   `json:"content" validate:"omitempty,min=10,max=50000"`
	Tags    *[]string `json:"tags"`
}

type StatusInput struct {
	Status string `json:"status" validate:"required,oneof=active locked hidden moderated"`
	Reason string `json:"reason" validate:"max=500"`
}

// LikeResult is returned by the like toggles.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likesCount"`
}

// PostService implements post creation, editing, moderation and likes.
type PostService struct {
	Deps
	now func() time.Time
}

func NewPostService(deps Deps) *PostService {
	return &PostService{Deps: deps, now: time.Now}
}

// CreatePost stores the post and updates the forum aggregates in the same
// transaction.
func (s *PostService) CreatePost(ctx context.Context, author *models.User, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	postType := models.PostType(in.Type)
	if postType == "" {
		postType = models.PostTypeNormal
	}
	if in.Poll != nil {
		postType = models.PostTypePoll
	}
	if postType == models.PostTypePoll && in.Poll == nil {
		return nil, models.NewValidationError("Poll posts need a poll")
	}

	forum, err := s.Repos.Forums.GetByID(ctx, in.ForumID)
	if err != nil {
		return nil, err
	}
	if forum.Status == models.ForumStatusArchived {
		return nil, models.NewValidationError("This forum is archived")
	}
	if err := checkBanned(ctx, s.Repos, forum.ID, author.ID, s.now); err != nil {
		return nil, err
	}
	moderator, err := canModerate(ctx, s.Repos, forum.ID, author)
	if err != nil {
		return nil, err
	}
	if forum.Settings.RestrictedToVerified && !author.IsVerified && !moderator {
		return nil, models.NewForbiddenError("Only verified users can post in this forum")
	}
	if postType == models.PostTypeAnnouncement && !moderator {
		return nil, models.NewForbiddenError("Only moderators can post announcements")
	}

	now := s.now()
	post := &models.Post{
		Title:        validation.SanitizeText(in.Title),
		Content:      validation.SanitizeContent(in.Content),
		AuthorID:     author.ID,
		ForumID:      forum.ID,
		Type:         postType,
		Status:       models.PostStatusActive,
		Tags:         tags,
		LastActivity: now,
	}
	if forum.Settings.RequireModeration && !moderator {
		post.Status = models.PostStatusModerated
	}
	if postType == models.PostTypePoll {
		poll, err := s.buildPoll(forum, author, in.Poll, now)
		if err != nil {
			return nil, err
		}
		post.Poll = poll
	}

	err = s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Posts.Create(ctx, post); err != nil {
			return err
		}
		return s.Sync.OnPostCreated(ctx, repos, post)
	})
	if err != nil {
		return nil, err
	}

	s.Cache.InvalidateForum(ctx, forum.ID)
	s.publish(ctx, notifications.ForumEvent{
		Type:    notifications.EventPostCreated,
		ForumID: forum.ID,
		PostID:  post.ID,
		ActorID: author.ID,
		Payload: map[string]any{"title": post.Title},
	})
	middleware.L(ctx).Info("post created", zap.Uint("post_id", post.ID), zap.Uint("forum_id", forum.ID))

	return s.Repos.Posts.GetDetail(ctx, post.ID, author.ID)
}

func (s *PostService) buildPoll(forum *models.Forum, author *models.User, in *PollInput, now time.Time) (*models.Poll, error) {
	if !forum.Settings.AllowPolls {
		return nil, models.NewValidationError("Polls are not allowed in this forum")
	}
	if !s.Flags.Enabled(featureflags.Polls, author.ID) {
		return nil, models.NewValidationError("Polls are not enabled")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, models.NewValidationError("Poll expiry must be in the future")
	}

	poll := &models.Poll{
		Question:           validation.SanitizeText(strings.TrimSpace(in.Question)),
		ExpiresAt:          in.ExpiresAt,
		AllowMultipleVotes: in.AllowMultipleVotes,
	}
	for i, text := range in.Options {
		poll.Options = append(poll.Options, models.PollOption{
			Text:     validation.SanitizeText(strings.TrimSpace(text)),
			Position: i,
		})
	}
	return poll, nil
}

// GetPost counts a view and returns the post with its author, forum,
// replies and poll results. Hidden posts are only visible to their author
// and the forum's moderators.
func (s *PostService) GetPost(ctx context.Context, id uint, viewer *models.User) (*models.Post, error) {
	post, err := s.Repos.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, post, viewer); err != nil {
		return nil, err
	}

	if err := s.Repos.Posts.IncrementViews(ctx, id); err != nil {
		return nil, err
	}

	var viewerID uint
	if viewer != nil {
		viewerID = viewer.ID
	}
	detail, err := s.Repos.Posts.GetDetail(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if detail.Poll != nil {
		if err := loadPollResults(ctx, s.Repos, detail.Poll); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

func (s *PostService) checkVisible(ctx context.Context, post *models.Post, viewer *models.User) error {
	if post.Status != models.PostStatusHidden {
		return nil
	}
	if viewer != nil && viewer.ID == post.AuthorID {
		return nil
	}
	ok, err := canModerate(ctx, s.Repos, post.ForumID, viewer)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// UpdatePost applies the supplied fields and marks the post edited. The
// forum aggregates are not touched.
func (s *PostService) UpdatePost(ctx context.Context, id uint, caller *models.User, in UpdatePostInput) (*models.Post, error) {
	post, err := s.Repos.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(post.AuthorID, caller, "You can only edit your own posts"); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]any{"is_edited": true, "edited_at": now}
	if in.Title != nil {
		fields["title"] = validation.SanitizeText(strings.TrimSpace(*in.Title))
	}
	if in.Content != nil {
		fields["content"] = validation.SanitizeContent(strings.TrimSpace(*in.Content))
	}
	if in.Tags != nil {
		tags, err := validation.NormalizeTags(*in.Tags)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		encoded, err := tagsColumn(tags)
		if err != nil {
			return nil, err
		}
		fields["tags"] = encoded
	}
	if err := s.Repos.Posts.Updates(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Repos.Posts.GetDetail(ctx, id, caller.ID)
}

// DeletePost removes the post with its replies, likes and poll, then
// recomputes the forum's aggregates from the posts that remain.
func (s *PostService) DeletePost(ctx context.Context, id uint, caller *models.User) error {
	var post *models.Post
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		if post, err = repos.Posts.GetByID(ctx, id); err != nil {
			return err
		}
		if err := requireOwner(post.AuthorID, caller, "You can only delete your own posts"); err != nil {
			return err
		}
		if err := repos.Posts.Delete(ctx, id); err != nil {
			return err
		}
		return s.Sync.OnPostDeleted(ctx, repos, post.ForumID, post.AuthorID)
	})
	if err != nil {
		return err
	}

	s.Cache.InvalidateForum(ctx, post.ForumID)
	s.publish(ctx, notifications.ForumEvent{
		Type:    notifications.EventPostDeleted,
		ForumID: post.ForumID,
		PostID:  post.ID,
		ActorID: caller.ID,
	})
	return nil
}

// SetStatus moves a post to any status and records who did it.
func (s *PostService) SetStatus(ctx context.Context, id uint, actor *models.User, in StatusInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, err := s.Repos.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := canModerate(ctx, s.Repos, post.ForumID, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("Moderator rights required")
	}

	err = s.Repos.Posts.Updates(ctx, id, map[string]any{
		"status":                     in.Status,
		"moderation_moderated_by_id": actor.ID,
		"moderation_moderated_at":    s.now(),
		"moderation_reason":          validation.SanitizeText(in.Reason),
	})
	if err != nil {
		return nil, err
	}

	middleware.L(ctx).Info("post status changed",
		zap.Uint("post_id", id),
		zap.String("from", string(post.Status)),
		zap.String("to", in.Status),
	)
	s.publish(ctx, notifications.ForumEvent{
		Type:    notifications.EventPostStatus,
		ForumID: post.ForumID,
		PostID:  post.ID,
		ActorID: actor.ID,
		Payload: map[string]any{"status": in.Status},
	})
	return s.Repos.Posts.GetDetail(ctx, id, actor.ID)
}

// ToggleLike likes the post, or removes the caller's like if present.
func (s *PostService) ToggleLike(ctx context.Context, id uint, user *models.User) (*LikeResult, error) {
	var res LikeResult
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		post, err := repos.Posts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		liked, err := repos.Posts.IsLiked(ctx, id, user.ID)
		if err != nil {
			return err
		}
		if liked {
			err = repos.Posts.Unlike(ctx, id, user.ID)
		} else {
			err = repos.Posts.Like(ctx, id, user.ID, s.now())
		}
		if err != nil {
			return err
		}
		if err := s.Sync.OnLikesChanged(ctx, repos, post.AuthorID); err != nil {
			return err
		}
		res.Liked = !liked
		res.LikesCount, err = repos.Posts.CountLikes(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByAuthor lists a user's visible posts, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID uint, page repository.Page) ([]models.Post, int64, error) {
	if _, err := s.Repos.Users.GetByID(ctx, authorID); err != nil {
		return nil, 0, err
	}
	return s.Repos.Posts.List(ctx, repository.PostFilter{
		AuthorID: authorID,
		ViewerID: viewerID,
		Page:     page,
	})
}

// requireOwner fails with FORBIDDEN unless caller owns the resource or is
// an admin.
func requireOwner(ownerID uint, caller *models.User, msg string) error {
	if caller == nil {
		return models.NewUnauthorizedError("Not authorized")
	}
	if caller.ID == ownerID || caller.IsAdmin() {
		return nil
	}
	return models.NewForbiddenError(msg)
}
