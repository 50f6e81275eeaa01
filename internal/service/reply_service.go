package service

import (
	"context"
	"strings"
	"time"

	"agora/internal/featureflags"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/validation"
)

type ReplyInput struct {
	Content string `json:"content" validate:"required,min=1,max=10000"`
}

// ReplyService implements replies and reply likes.
type ReplyService struct {
	Deps
	now func() time.Time
}

func NewReplyService(deps Deps) *ReplyService {
	return &ReplyService{Deps: deps, now: time.Now}
}

// AddReply appends a reply to the post and recounts the post's replies in
// the same transaction.
func (s *ReplyService) AddReply(ctx context.Context, postID uint, author *models.User, in ReplyInput) (*models.Reply, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var (
		post  *models.Post
		reply *models.Reply
	)
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		if post, err = repos.Posts.GetByID(ctx, postID); err != nil {
			return err
		}
		if post.Status == models.PostStatusLocked {
			return models.NewValidationError("This post is locked")
		}
		if err := checkBanned(ctx, repos, post.ForumID, author.ID, s.now); err != nil {
			return err
		}

		pos, err := repos.Replies.NextPosition(ctx, postID)
		if err != nil {
			return err
		}
		reply = &models.Reply{
			PostID:   postID,
			AuthorID: author.ID,
			Content:  validation.SanitizeContent(in.Content),
			Position: pos,
		}
		if err := repos.Replies.Create(ctx, reply); err != nil {
			return err
		}
		return s.Sync.OnRepliesChanged(ctx, repos, post, author.ID)
	})
	if err != nil {
		return nil, err
	}

	s.Cache.InvalidateForum(ctx, post.ForumID)
	s.publish(ctx, notifications.ForumEvent{
		Type:    notifications.EventReplyAdded,
		ForumID: post.ForumID,
		PostID:  post.ID,
		ReplyID: reply.ID,
		ActorID: author.ID,
		Payload: map[string]any{"replyCount": post.ReplyCount},
	})
	return s.Repos.Replies.Get(ctx, postID, reply.ID)
}

// ListReplies returns a post's replies in thread order.
func (s *ReplyService) ListReplies(ctx context.Context, postID, viewerID uint) ([]models.Reply, error) {
	if _, err := s.Repos.Posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.Repos.Replies.ListByPost(ctx, postID, viewerID)
}

func (s *ReplyService) UpdateReply(ctx context.Context, postID uint, replyID string, caller *models.User, in ReplyInput) (*models.Reply, error) {
	if _, err := s.Repos.Posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	reply, err := s.Repos.Replies.Get(ctx, postID, replyID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(reply.AuthorID, caller, "You can only edit your own replies"); err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	err = s.Repos.Replies.Updates(ctx, replyID, map[string]any{
		"content":   validation.SanitizeContent(in.Content),
		"is_edited": true,
		"edited_at": s.now(),
	})
	if err != nil {
		return nil, err
	}
	return s.Repos.Replies.Get(ctx, postID, replyID)
}

// DeleteReply removes a reply from its post. The reply must belong to
// postID.
func (s *ReplyService) DeleteReply(ctx context.Context, postID uint, replyID string, caller *models.User) error {
	var post *models.Post
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		if post, err = repos.Posts.GetByID(ctx, postID); err != nil {
			return err
		}
		reply, err := repos.Replies.Get(ctx, postID, replyID)
		if err != nil {
			return err
		}
		if err := requireOwner(reply.AuthorID, caller, "You can only delete your own replies"); err != nil {
			return err
		}
		if err := repos.Replies.Delete(ctx, replyID); err != nil {
			return err
		}
		return s.Sync.OnRepliesChanged(ctx, repos, post, reply.AuthorID)
	})
	if err != nil {
		return err
	}

	s.Cache.InvalidateForum(ctx, post.ForumID)
	s.publish(ctx, notifications.ForumEvent{
		Type:    notifications.EventReplyDeleted,
		ForumID: post.ForumID,
		PostID:  post.ID,
		ReplyID: replyID,
		ActorID: caller.ID,
		Payload: map[string]any{"replyCount": post.ReplyCount},
	})
	return nil
}

// ToggleLike likes the reply, or removes the caller's like if present.
func (s *ReplyService) ToggleLike(ctx context.Context, postID uint, replyID string, user *models.User) (*LikeResult, error) {
	if !s.Flags.Enabled(featureflags.ReplyLikes, user.ID) {
		return nil, models.NewValidationError("Reply likes are not enabled")
	}

	var liked bool
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		reply, err := repos.Replies.Get(ctx, postID, replyID)
		if err != nil {
			return err
		}
		if liked, err = repos.Replies.IsLiked(ctx, replyID, user.ID); err != nil {
			return err
		}
		if liked {
			err = repos.Replies.Unlike(ctx, replyID, user.ID)
		} else {
			err = repos.Replies.Like(ctx, replyID, user.ID, s.now())
		}
		if err != nil {
			return err
		}
		return s.Sync.OnLikesChanged(ctx, repos, reply.AuthorID)
	})
	if err != nil {
		return nil, err
	}

	res := &LikeResult{Liked: !liked}
	replies, err := s.Repos.Replies.ListByPost(ctx, postID, user.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range replies {
		if r.ID == replyID {
			res.LikesCount = r.LikesCount
			break
		}
	}
	return res, nil
}
