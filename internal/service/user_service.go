package service

import (
	"context"
	"strings"
	"time"

	"agora/internal/auth"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"go.uber.org/zap"
)

// UpdateProfileInput changes only the fields that are set. A new password
// requires the current one.
type UpdateProfileInput struct {
	Username        *string `json:"username" validate:"omitempty,username"`
	Email           *string `json:"email" validate:"omitempty,email,max=254"`
	Bio             *string `json:"bio" validate:"omitempty,max=500"`
	Avatar          *string `json:"avatar" validate:"omitempty,url,max=500"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword" validate:"omitempty,password,max=128"`
}

type PreferencesInput struct {
	EmailNotifications *bool   `json:"emailNotifications"`
	Theme              *string `json:"theme" validate:"omitempty,oneof=light dark system"`
	Language           *string `json:"language" validate:"omitempty,min=2,max=10"`
}

type RoleInput struct {
	Role string `json:"role" validate:"required,oneof=user moderator admin"`
}

// FollowResult is returned by the follow toggle.
type FollowResult struct {
	Following        bool  `json:"following"`
	SubscribersCount int64 `json:"subscribersCount"`
}

// Reputation is the breakdown served by the reputation endpoint.
type Reputation struct {
	UserID        uint  `json:"userId"`
	Reputation    int64 `json:"reputation"`
	PostsCount    int64 `json:"postsCount"`
	LikesReceived int64 `json:"likesReceived"`
}

// UserService implements profiles, preferences, subscriptions and roles.
type UserService struct {
	Deps
	bcryptCost int
	now        func() time.Time
}

func NewUserService(deps Deps, bcryptCost int) *UserService {
	return &UserService{Deps: deps, bcryptCost: bcryptCost, now: time.Now}
}

func (s *UserService) ListUsers(ctx context.Context, page repository.Page) ([]models.User, int64, error) {
	return s.Repos.Users.List(ctx, page)
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.Repos.Users.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	if in.Username != nil {
		trimmed := strings.TrimSpace(*in.Username)
		in.Username = &trimmed
	}
	if in.Email != nil {
		lowered := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &lowered
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.Repos.Users.GetWithPassword(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Username != nil && *in.Username != user.Username {
		existing, err := s.Repos.Users.GetByUsername(ctx, *in.Username)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, models.NewValidationError("Username already taken")
		}
		fields["username"] = *in.Username
	}
	if in.Email != nil && *in.Email != user.Email {
		existing, err := s.Repos.Users.GetByEmail(ctx, *in.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, models.NewValidationError("Email already registered")
		}
		fields["email"] = *in.Email
	}
	if in.Bio != nil {
		fields["bio"] = validation.SanitizeText(*in.Bio)
	}
	if in.Avatar != nil {
		fields["avatar"] = *in.Avatar
	}
	if in.NewPassword != nil {
		if in.CurrentPassword == "" || !auth.CheckPassword(user.Password, in.CurrentPassword) {
			return nil, models.NewUnauthorizedError("Current password is incorrect")
		}
		hash, err := auth.HashPassword(*in.NewPassword, s.bcryptCost)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		fields["password"] = hash
	}

	if len(fields) > 0 {
		if err := s.Repos.Users.Updates(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.Repos.Users.GetByID(ctx, userID)
}

func (s *UserService) UpdatePreferences(ctx context.Context, userID uint, in PreferencesInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if in.EmailNotifications != nil {
		fields["pref_email_notifications"] = *in.EmailNotifications
	}
	if in.Theme != nil {
		fields["pref_theme"] = *in.Theme
	}
	if in.Language != nil {
		fields["pref_language"] = strings.ToLower(*in.Language)
	}
	if len(fields) > 0 {
		if err := s.Repos.Users.Updates(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.Repos.Users.GetByID(ctx, userID)
}

// DeleteUser soft-deletes the account. Its tokens stop resolving because
// the user lookup no longer finds it.
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	if err := s.Repos.Users.Delete(ctx, id); err != nil {
		return err
	}
	middleware.L(ctx).Info("user deleted", zap.Uint("deleted_user_id", id))
	return nil
}

func (s *UserService) FollowedForums(ctx context.Context, userID uint) ([]models.Forum, error) {
	return s.Repos.Forums.ListSubscribed(ctx, userID)
}

// ToggleFollow subscribes the user to the forum, or unsubscribes when
// already subscribed, and recounts the forum's subscribers.
func (s *UserService) ToggleFollow(ctx context.Context, userID, forumID uint) (*FollowResult, error) {
	var res FollowResult
	err := s.Tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Forums.GetByID(ctx, forumID); err != nil {
			return err
		}
		following, err := repos.Forums.IsSubscribed(ctx, forumID, userID)
		if err != nil {
			return err
		}
		if following {
			err = repos.Forums.Unsubscribe(ctx, forumID, userID)
		} else {
			err = repos.Forums.Subscribe(ctx, forumID, userID, s.now())
		}
		if err != nil {
			return err
		}
		res.Following = !following
		res.SubscribersCount, err = repos.Forums.RecountSubscribers(ctx, forumID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Cache.InvalidateForum(ctx, forumID)
	return &res, nil
}

// Stats recomputes and returns the user's stats.
func (s *UserService) Stats(ctx context.Context, id uint) (*models.UserStats, error) {
	if _, err := s.Repos.Users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	stats, err := s.Repos.Users.RecomputeStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *UserService) Reputation(ctx context.Context, id uint) (*Reputation, error) {
	stats, err := s.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Reputation{
		UserID:        id,
		Reputation:    stats.Reputation,
		PostsCount:    stats.PostsCount,
		LikesReceived: stats.LikesReceived,
	}, nil
}

// SetRole changes a user's global role. Admins cannot demote themselves.
func (s *UserService) SetRole(ctx context.Context, actor *models.User, targetID uint, in RoleInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if actor != nil && actor.ID == targetID && models.Role(in.Role) != models.RoleAdmin {
		return nil, models.NewValidationError("You cannot remove your own admin role")
	}
	if err := s.Repos.Users.Updates(ctx, targetID, map[string]any{"role": in.Role}); err != nil {
		return nil, err
	}
	middleware.L(ctx).Info("user role changed", zap.Uint("target_user_id", targetID), zap.String("role", in.Role))
	return s.Repos.Users.GetByID(ctx, targetID)
}

// SetVerified marks a user's account as verified or not.
func (s *UserService) SetVerified(ctx context.Context, targetID uint, verified bool) (*models.User, error) {
	if err := s.Repos.Users.Updates(ctx, targetID, map[string]any{"is_verified": verified}); err != nil {
		return nil, err
	}
	return s.Repos.Users.GetByID(ctx, targetID)
}

// ListByRole lists users holding role, oldest first.
func (s *UserService) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	if !role.Valid() {
		return nil, models.NewValidationError("Invalid role")
	}
	return s.Repos.Users.ListByRole(ctx, role)
}
