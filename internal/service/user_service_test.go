package service

import (
	"context"
	"testing"

	"agora/internal/auth"
	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, h.repos.Users.Updates(ctx, h.alice.ID, map[string]any{"password": hash}))

	got, err := h.users.UpdateProfile(ctx, h.alice.ID, UpdateProfileInput{Bio: strPtr("Gopher")})
	require.NoError(t, err)
	assert.Equal(t, "Gopher", got.Bio)
	assert.Equal(t, "alice", got.Username)

	_, err = h.users.UpdateProfile(ctx, h.alice.ID, UpdateProfileInput{Username: strPtr("bob")})
	requireCode(t, err, models.CodeValidation)
	_, err = h.users.UpdateProfile(ctx, h.alice.ID, UpdateProfileInput{Email: strPtr("BOB@example.com")})
	requireCode(t, err, models.CodeValidation)
	_, err = h.users.UpdateProfile(ctx, h.alice.ID, UpdateProfileInput{Avatar: strPtr("not a url")})
	requireCode(t, err, models.CodeValidation)

	_, err = h.users.UpdateProfile(ctx, h.alice.ID, UpdateProfileInput{NewPassword: strPtr("newpass2")})
	requireCode(t, err, models.CodeUnauthorized)
	_, err = h.users.UpdateProfile(ctx, h.alice.ID, UpdateProfileInput{CurrentPassword: "wrong1", NewPassword: strPtr("newpass2")})
	requireCode(t, err, models.CodeUnauthorized)

	_, err = h.users.UpdateProfile(ctx, h.alice.ID, UpdateProfileInput{CurrentPassword: "secret1", NewPassword: strPtr("newpass2")})
	require.NoError(t, err)
	stored, err := h.repos.Users.GetWithPassword(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(stored.Password, "newpass2"))
}

func TestUserService_UpdatePreferences(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	got, err := h.users.UpdatePreferences(ctx, h.alice.ID, PreferencesInput{
		Theme:              strPtr("dark"),
		EmailNotifications: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Preferences.Theme)
	assert.False(t, got.Preferences.EmailNotifications)

	_, err = h.users.UpdatePreferences(ctx, h.alice.ID, PreferencesInput{Theme: strPtr("neon")})
	requireCode(t, err, models.CodeValidation)
}

func TestUserService_ToggleFollow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")

	res, err := h.users.ToggleFollow(ctx, h.alice.ID, f.ID)
	require.NoError(t, err)
	assert.True(t, res.Following)
	assert.Equal(t, int64(1), res.SubscribersCount)

	followed, err := h.users.FollowedForums(ctx, h.alice.ID)
	require.NoError(t, err)
	require.Len(t, followed, 1)
	assert.Equal(t, f.ID, followed[0].ID)

	res, err = h.users.ToggleFollow(ctx, h.alice.ID, f.ID)
	require.NoError(t, err)
	assert.False(t, res.Following)
	assert.Zero(t, h.forum(t, f.ID).SubscribersCount)

	_, err = h.users.ToggleFollow(ctx, h.alice.ID, 999)
	requireCode(t, err, models.CodeNotFound)
}

func TestUserService_StatsAndReputation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")
	r := h.addReply(t, p.ID, h.alice, "self reply")
	_, err := h.posts.ToggleLike(ctx, p.ID, h.bob)
	require.NoError(t, err)
	_, err = h.replies.ToggleLike(ctx, p.ID, r.ID, h.bob)
	require.NoError(t, err)

	rep, err := h.users.Reputation(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rep.PostsCount)
	assert.Equal(t, int64(2), rep.LikesReceived)
	assert.Equal(t, int64(5), rep.Reputation)

	_, err = h.users.Stats(ctx, 999)
	requireCode(t, err, models.CodeNotFound)
}

func TestUserService_RolesAndDeletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	got, err := h.users.SetRole(ctx, h.admin, h.alice.ID, RoleInput{Role: "moderator"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, got.Role)

	mods, err := h.users.ListByRole(ctx, models.RoleModerator)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, h.alice.ID, mods[0].ID)

	_, err = h.users.SetRole(ctx, h.admin, h.admin.ID, RoleInput{Role: "user"})
	requireCode(t, err, models.CodeValidation)
	_, err = h.users.SetRole(ctx, h.admin, h.alice.ID, RoleInput{Role: "owner"})
	requireCode(t, err, models.CodeValidation)

	verified, err := h.users.SetVerified(ctx, h.bob.ID, true)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	require.NoError(t, h.users.DeleteUser(ctx, h.bob.ID))
	_, err = h.users.GetUser(ctx, h.bob.ID)
	requireCode(t, err, models.CodeNotFound)
	requireCode(t, h.users.DeleteUser(ctx, h.bob.ID), models.CodeNotFound)

	users, total, err := h.users.ListUsers(ctx, repository.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)
}
