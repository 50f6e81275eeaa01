package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"agora/internal/cache"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"go.uber.org/zap"
)

type CreateForumInput struct {
	Title       string                `json:"title" validate:"required,min=3,max=100"`
	Description string                `json:"description" validate:"required,min=10,max=500"`
	Category    string                `json:"category" validate:"required,category"`
	Tags        []string              `json:"tags"`
	Settings    *models.ForumSettings `json:"settings"`
}

// UpdateForumInput changes only the fields that are set.
type UpdateForumInput struct {
	Title       *string   `json:"title" validate:"omitempty,min=3,max=100"`
	Description *string   `json:"description" validate:"omitempty,min=10,max=500"`
	Category    *string   `json:"category" validate:"omitempty,category"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active archived private"`
	Tags        *[]string `json:"tags"`
}

type RuleInput struct {
	Title       string `json:"title" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// SettingsInput changes only the flags that are set.
type SettingsInput struct {
	AllowImages          *bool `json:"allowImages"`
	AllowPolls           *bool `json:"allowPolls"`
	AllowAnonymousPosts  *bool `json:"allowAnonymousPosts"`
	RequireModeration    *bool `json:"requireModeration"`
	RestrictedToVerified *bool `json:"restrictedToVerified"`
}

type BanInput struct {
	UserID    uint       `json:"userId" validate:"required"`
	Reason    string     `json:"reason" validate:"max=500"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// ForumStats is the summary served by the forum stats endpoint.
type ForumStats struct {
	ForumID          uint      `json:"forumId"`
	PostsCount       int64     `json:"postsCount"`
	SubscribersCount int64     `json:"subscribersCount"`
	RepliesTotal     int64     `json:"repliesTotal"`
	ViewsTotal       int64     `json:"viewsTotal"`
	LikesTotal       int64     `json:"likesTotal"`
	LastActivity     time.Time `json:"lastActivity"`
}

// ForumService implements forum management, moderation and stats.
type ForumService struct {
	Deps
	now func() time.Time
}

func NewForumService(deps Deps) *ForumService {
	return &ForumService{Deps: deps, now: time.Now}
}

func (s *ForumService) ListForums(ctx context.Context, filter repository.ForumFilter) ([]models.Forum, int64, error) {
	if filter.Category != "" && !validation.ValidCategory(string(filter.Category)) {
		return nil, 0, models.NewValidationError("Invalid category")
	}
	return s.Repos.Forums.List(ctx, filter)
}

// GetForum returns the forum with its creator, moderators, rules and last
// post expanded.
func (s *ForumService) GetForum(ctx context.Context, id uint) (*models.Forum, error) {
	var forum models.Forum
	err := s.Cache.Aside(ctx, cache.ForumKey(id), &forum, cache.ForumTTL, func() error {
		f, err := s.Repos.Forums.GetDetail(ctx, id)
		if err != nil {
			return err
		}
		forum = *f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &forum, nil
}

func (s *ForumService) CreateForum(ctx context.Context, creator *models.User, in CreateForumInput) (*models.Forum, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.ensureTitleFree(ctx, in.Title, 0); err != nil {
		return nil, err
	}

	settings := models.DefaultForumSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}
	forum := &models.Forum{
		Title:        validation.SanitizeText(in.Title),
		Description:  validation.SanitizeText(in.Description),
		Category:     models.ForumCategory(in.Category),
		CreatorID:    creator.ID,
		Status:       models.ForumStatusActive,
		Tags:         tags,
		Settings:     settings,
		LastActivity: s.now(),
	}
	if err := s.Repos.Forums.Create(ctx, forum); err != nil {
		return nil, err
	}

	middleware.L(ctx).Info("forum created", zap.Uint("forum_id", forum.ID), zap.String("title", forum.Title))
	return s.Repos.Forums.GetDetail(ctx, forum.ID)
}

func (s *ForumService) UpdateForum(ctx context.Context, id uint, in UpdateForumInput) (*models.Forum, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.Repos.Forums.GetByID(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := s.ensureTitleFree(ctx, title, id); err != nil {
			return nil, err
		}
		fields["title"] = validation.SanitizeText(title)
	}
	if in.Description != nil {
		fields["description"] = validation.SanitizeText(strings.TrimSpace(*in.Description))
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	if in.Status != nil {
		fields["status"] = *in.Status
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
	if len(fields) > 0 {
		if err := s.Repos.Forums.Updates(ctx, id, fields); err != nil {
			return nil, err
		}
	}

	s.Cache.InvalidateForum(ctx, id)
	return s.Repos.Forums.GetDetail(ctx, id)
}

func (s *ForumService) ensureTitleFree(ctx context.Context, title string, self uint) error {
	existing, err := s.Repos.Forums.GetByTitle(ctx, title)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return models.NewValidationError("A forum with this title already exists")
	}
	return nil
}

// DeleteForum removes the forum together with every post under it and
// refreshes the stats of the authors who lost posts.
func (s *ForumService) DeleteForum(ctx context.Context, id uint) error {
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Forums.GetByID(ctx, id); err != nil {
			return err
		}
		authors, err := repos.Posts.DeleteByForum(ctx, id)
		if err != nil {
			return err
		}
		if err := repos.Forums.Delete(ctx, id); err != nil {
			return err
		}
		return s.Sync.OnForumDeleted(ctx, repos, authors)
	})
	if err != nil {
		return err
	}
	s.Cache.InvalidateForum(ctx, id)
	middleware.L(ctx).Info("forum deleted", zap.Uint("forum_id", id))
	return nil
}

func (s *ForumService) AddRule(ctx context.Context, forumID uint, in RuleInput) (*models.ForumRule, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.Repos.Forums.GetByID(ctx, forumID); err != nil {
		return nil, err
	}
	pos, err := s.Repos.Forums.NextRulePosition(ctx, forumID)
	if err != nil {
		return nil, err
	}
	rule := &models.ForumRule{
		ForumID:     forumID,
		Title:       validation.SanitizeText(in.Title),
		Description: validation.SanitizeText(in.Description),
		Position:    pos,
	}
	if err := s.Repos.Forums.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return rule, nil
}

func (s *ForumService) UpdateRule(ctx context.Context, forumID, ruleID uint, in RuleInput) (*models.ForumRule, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	rule, err := s.Repos.Forums.GetRule(ctx, forumID, ruleID)
	if err != nil {
		return nil, err
	}
	rule.Title = validation.SanitizeText(in.Title)
	rule.Description = validation.SanitizeText(in.Description)
	if err := s.Repos.Forums.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return rule, nil
}

func (s *ForumService) DeleteRule(ctx context.Context, forumID, ruleID uint) error {
	if err := s.Repos.Forums.DeleteRule(ctx, forumID, ruleID); err != nil {
		return err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return nil
}

func (s *ForumService) UpdateSettings(ctx context.Context, forumID uint, in SettingsInput) (*models.ForumSettings, error) {
	forum, err := s.Repos.Forums.GetByID(ctx, forumID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	set := func(column string, v *bool, dst *bool) {
		if v != nil {
			fields[column] = *v
			*dst = *v
		}
	}
	settings := forum.Settings
	set("setting_allow_images", in.AllowImages, &settings.AllowImages)
	set("setting_allow_polls", in.AllowPolls, &settings.AllowPolls)
	set("setting_allow_anonymous_posts", in.AllowAnonymousPosts, &settings.AllowAnonymousPosts)
	set("setting_require_moderation", in.RequireModeration, &settings.RequireModeration)
	set("setting_restricted_to_verified", in.RestrictedToVerified, &settings.RestrictedToVerified)
	if len(fields) == 0 {
		return &settings, nil
	}

	if err := s.Repos.Forums.Updates(ctx, forumID, fields); err != nil {
		return nil, err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return &settings, nil
}

func (s *ForumService) AddModerator(ctx context.Context, forumID, userID uint) (*models.Forum, error) {
	if _, err := s.Repos.Forums.GetByID(ctx, forumID); err != nil {
		return nil, err
	}
	if _, err := s.Repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.Repos.Forums.AddModerator(ctx, forumID, userID); err != nil {
		return nil, err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return s.Repos.Forums.GetDetail(ctx, forumID)
}

func (s *ForumService) RemoveModerator(ctx context.Context, forumID, userID uint) error {
	if _, err := s.Repos.Forums.GetByID(ctx, forumID); err != nil {
		return err
	}
	if err := s.Repos.Forums.RemoveModerator(ctx, forumID, userID); err != nil {
		return err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return nil
}

// CanModerate reports whether user may moderate the forum.
func (s *ForumService) CanModerate(ctx context.Context, forumID uint, user *models.User) (bool, error) {
	return canModerate(ctx, s.Repos, forumID, user)
}

// requireModerator fails with FORBIDDEN unless user may moderate the forum.
func (s *ForumService) requireModerator(ctx context.Context, forumID uint, user *models.User) error {
	if _, err := s.Repos.Forums.GetByID(ctx, forumID); err != nil {
		return err
	}
	ok, err := s.CanModerate(ctx, forumID, user)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Moderator rights required")
	}
	return nil
}

func (s *ForumService) BanUser(ctx context.Context, forumID uint, actor *models.User, in BanInput) (*models.ForumBan, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, forumID, actor); err != nil {
		return nil, err
	}
	if in.UserID == actor.ID {
		return nil, models.NewValidationError("You cannot ban yourself")
	}
	target, err := s.Repos.Users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if target.IsAdmin() {
		return nil, models.NewForbiddenError("Administrators cannot be banned")
	}
	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, models.NewValidationError("Ban expiry must be in the future")
	}

	ban := &models.ForumBan{
		ForumID:    forumID,
		UserID:     in.UserID,
		Reason:     validation.SanitizeText(in.Reason),
		BannedByID: actor.ID,
		BannedAt:   now,
		ExpiresAt:  in.ExpiresAt,
	}
	if err := s.Repos.Forums.SaveBan(ctx, ban); err != nil {
		return nil, err
	}

	middleware.L(ctx).Info("user banned from forum",
		zap.Uint("forum_id", forumID),
		zap.Uint("banned_user_id", in.UserID),
	)
	return s.Repos.Forums.GetBan(ctx, forumID, in.UserID)
}

func (s *ForumService) UnbanUser(ctx context.Context, forumID uint, actor *models.User, userID uint) error {
	if err := s.requireModerator(ctx, forumID, actor); err != nil {
		return err
	}
	return s.Repos.Forums.RemoveBan(ctx, forumID, userID)
}

func (s *ForumService) ListBans(ctx context.Context, forumID uint, actor *models.User) ([]models.ForumBan, error) {
	if err := s.requireModerator(ctx, forumID, actor); err != nil {
		return nil, err
	}
	return s.Repos.Forums.ListBans(ctx, forumID)
}

// IsBanned reports whether userID currently has an active ban in the forum.
func (s *ForumService) IsBanned(ctx context.Context, forumID, userID uint) (bool, error) {
	err := checkBanned(ctx, s.Repos, forumID, userID, s.now)
	if err == nil {
		return false, nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeForbidden {
		return true, nil
	}
	return false, err
}

func (s *ForumService) Stats(ctx context.Context, forumID uint) (*ForumStats, error) {
	var stats ForumStats
	err := s.Cache.Aside(ctx, cache.ForumStatsKey(forumID), &stats, cache.ForumStatsTTL, func() error {
		forum, err := s.Repos.Forums.GetByID(ctx, forumID)
		if err != nil {
			return err
		}
		totals, err := s.Repos.Forums.Totals(ctx, forumID)
		if err != nil {
			return err
		}
		stats = ForumStats{
			ForumID:          forum.ID,
			PostsCount:       forum.PostsCount,
			SubscribersCount: forum.SubscribersCount,
			RepliesTotal:     totals.RepliesTotal,
			ViewsTotal:       totals.ViewsTotal,
			LikesTotal:       totals.LikesTotal,
			LastActivity:     forum.LastActivity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Recount rebuilds one forum's aggregates in a single transaction.
func (s *ForumService) Recount(ctx context.Context, forumID uint) (*models.Forum, error) {
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		_, err := s.Sync.RecountForum(ctx, repos, forumID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return s.Repos.Forums.GetByID(ctx, forumID)
}

// RecountAll recounts every forum, one transaction per forum, and returns
// how many were processed. It stops at the first failure.
func (s *ForumService) RecountAll(ctx context.Context) (int, error) {
	ids, err := s.Repos.Forums.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.Recount(ctx, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// ListPosts lists a forum's posts. Hidden posts are only included for
// viewers who can moderate the forum.
func (s *ForumService) ListPosts(ctx context.Context, forumID uint, viewer *models.User, filter repository.PostFilter) ([]models.Post, int64, error) {
	if _, err := s.Repos.Forums.GetByID(ctx, forumID); err != nil {
		return nil, 0, err
	}
	filter.ForumID = forumID
	if viewer != nil {
		filter.ViewerID = viewer.ID
		ok, err := s.CanModerate(ctx, forumID, viewer)
		if err != nil {
			return nil, 0, err
		}
		filter.IncludeHidden = ok
	}
	return s.Repos.Posts.List(ctx, filter)
}

// SearchPosts matches q against post titles and content within a forum.
func (s *ForumService) SearchPosts(ctx context.Context, forumID uint, viewer *models.User, q string, filter repository.PostFilter) ([]models.Post, int64, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, 0, models.NewValidationError("Search query is required")
	}
	if len(q) > 100 {
		return nil, 0, models.NewValidationError("Search query is too long")
	}
	filter.Query = q
	return s.ListPosts(ctx, forumID, viewer, filter)
}
