package service

import (
	"context"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForumService_CreateForum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	f, err := h.forums.CreateForum(ctx, h.admin, CreateForumInput{
		Title:       "Tech",
		Description: "10+ chars of description",
		Category:    "technology",
		Tags:        []string{"Go", "Rust"},
	})
	require.NoError(t, err)
	assert.Zero(t, f.PostsCount)
	assert.Nil(t, f.LastPostID)
	assert.Equal(t, models.ForumStatusActive, f.Status)
	assert.True(t, f.Settings.AllowPolls)
	assert.Equal(t, []string{"go", "rust"}, f.Tags)
	require.NotNil(t, f.Creator)
	assert.Equal(t, h.admin.ID, f.Creator.ID)

	tests := []struct {
		name string
		in   CreateForumInput
	}{
		{"duplicate title ignoring case", CreateForumInput{Title: "tech", Description: "Another description", Category: "technology"}},
		{"short description", CreateForumInput{Title: "Music", Description: "short", Category: "other"}},
		{"unknown category", CreateForumInput{Title: "Music", Description: "All about music", Category: "music"}},
		{"bad tag", CreateForumInput{Title: "Music", Description: "All about music", Category: "other", Tags: []string{"no spaces"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.forums.CreateForum(ctx, h.admin, tt.in)
			requireCode(t, err, models.CodeValidation)
		})
	}
}

func TestForumService_ListForumsByCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createForum(t, "Tech")

	forums, total, err := h.forums.ListForums(ctx, repository.ForumFilter{
		Category: models.CategoryTechnology,
		Page:     repository.Page{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, forums, 1)

	forums, total, err = h.forums.ListForums(ctx, repository.ForumFilter{
		Category: models.CategorySports,
		Page:     repository.Page{Limit: 10},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, forums)

	_, _, err = h.forums.ListForums(ctx, repository.ForumFilter{Category: "music"})
	requireCode(t, err, models.CodeValidation)
}

func TestForumService_UpdateForum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	h.createForum(t, "Gaming")

	_, err := h.forums.UpdateForum(ctx, f.ID, UpdateForumInput{Title: strPtr("Gaming")})
	requireCode(t, err, models.CodeValidation)

	got, err := h.forums.UpdateForum(ctx, f.ID, UpdateForumInput{
		Title:    strPtr("Tech"),
		Category: strPtr("education"),
		Tags:     &[]string{"learning"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryEducation, got.Category)
	assert.Equal(t, []string{"learning"}, got.Tags)
	assert.Equal(t, "Everything about Tech and more", got.Description)

	_, err = h.forums.UpdateForum(ctx, 999, UpdateForumInput{Title: strPtr("Nope")})
	requireCode(t, err, models.CodeNotFound)
}

func TestForumService_ListForums(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createForum(t, "Tech")
	h.createForum(t, "Hardware")
	secret := h.createForum(t, "Secret")
	_, err := h.forums.UpdateForum(ctx, secret.ID, UpdateForumInput{Status: strPtr("private")})
	require.NoError(t, err)

	forums, total, err := h.forums.ListForums(ctx, repository.ForumFilter{Order: "title"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, forums, 2)
	assert.Equal(t, "Hardware", forums[0].Title)

	_, _, err = h.forums.ListForums(ctx, repository.ForumFilter{Category: "cooking"})
	requireCode(t, err, models.CodeValidation)
	_, _, err = h.forums.ListForums(ctx, repository.ForumFilter{Order: "password"})
	requireCode(t, err, models.CodeValidation)
}

func TestForumService_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")

	first, err := h.forums.AddRule(ctx, f.ID, RuleInput{Title: "Be kind"})
	require.NoError(t, err)
	second, err := h.forums.AddRule(ctx, f.ID, RuleInput{Title: "No spam", Description: "Links need context"})
	require.NoError(t, err)
	assert.Less(t, first.Position, second.Position)

	updated, err := h.forums.UpdateRule(ctx, f.ID, first.ID, RuleInput{Title: "Be very kind"})
	require.NoError(t, err)
	assert.Equal(t, "Be very kind", updated.Title)

	require.NoError(t, h.forums.DeleteRule(ctx, f.ID, second.ID))
	requireCode(t, h.forums.DeleteRule(ctx, f.ID, second.ID), models.CodeNotFound)

	detail, err := h.forums.GetForum(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, detail.Rules, 1)
	assert.Equal(t, "Be very kind", detail.Rules[0].Title)
}

func TestForumService_ModeratorsAndBans(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")

	_, err := h.forums.BanUser(ctx, f.ID, h.alice, BanInput{UserID: h.bob.ID})
	requireCode(t, err, models.CodeForbidden)

	detail, err := h.forums.AddModerator(ctx, f.ID, h.alice.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsModerator(h.alice.ID))
	_, err = h.forums.AddModerator(ctx, f.ID, h.alice.ID)
	require.NoError(t, err)
	_, err = h.forums.AddModerator(ctx, f.ID, 999)
	requireCode(t, err, models.CodeNotFound)

	expires := time.Now().Add(24 * time.Hour)
	ban, err := h.forums.BanUser(ctx, f.ID, h.alice, BanInput{UserID: h.bob.ID, Reason: "spam", ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, h.alice.ID, ban.BannedByID)

	banned, err := h.forums.IsBanned(ctx, f.ID, h.bob.ID)
	require.NoError(t, err)
	assert.True(t, banned)

	_, err = h.forums.BanUser(ctx, f.ID, h.alice, BanInput{UserID: h.admin.ID})
	requireCode(t, err, models.CodeForbidden)
	past := time.Now().Add(-time.Hour)
	_, err = h.forums.BanUser(ctx, f.ID, h.alice, BanInput{UserID: h.bob.ID, ExpiresAt: &past})
	requireCode(t, err, models.CodeValidation)

	bans, err := h.forums.ListBans(ctx, f.ID, h.alice)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	require.NotNil(t, bans[0].User)
	assert.Equal(t, "bob", bans[0].User.Username)

	require.NoError(t, h.forums.UnbanUser(ctx, f.ID, h.alice, h.bob.ID))
	banned, err = h.forums.IsBanned(ctx, f.ID, h.bob.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, h.forums.RemoveModerator(ctx, f.ID, h.alice.ID))
	requireCode(t, h.forums.RemoveModerator(ctx, f.ID, h.alice.ID), models.CodeNotFound)
	_, err = h.forums.ListBans(ctx, f.ID, h.alice)
	requireCode(t, err, models.CodeForbidden)
}

func TestForumService_ExpiredBanIsInactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")

	expires := time.Now().Add(time.Hour)
	_, err := h.forums.BanUser(ctx, f.ID, h.admin, BanInput{UserID: h.bob.ID, ExpiresAt: &expires})
	require.NoError(t, err)

	h.forums.now = func() time.Time { return expires.Add(time.Minute) }
	banned, err := h.forums.IsBanned(ctx, f.ID, h.bob.ID)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestForumService_StatsAndSearch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Compilers are fun")
	h.createPost(t, f.ID, h.bob, "Gardening tips")
	h.addReply(t, p.ID, h.bob, "agreed")
	_, err := h.posts.GetPost(ctx, p.ID, nil)
	require.NoError(t, err)
	_, err = h.posts.ToggleLike(ctx, p.ID, h.bob)
	require.NoError(t, err)
	_, err = h.users.ToggleFollow(ctx, h.bob.ID, f.ID)
	require.NoError(t, err)

	stats, err := h.forums.Stats(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.PostsCount)
	assert.Equal(t, int64(1), stats.SubscribersCount)
	assert.Equal(t, int64(1), stats.RepliesTotal)
	assert.Equal(t, int64(1), stats.ViewsTotal)
	assert.Equal(t, int64(1), stats.LikesTotal)

	found, total, err := h.forums.SearchPosts(ctx, f.ID, nil, "COMPILERS", repository.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, found, 1)
	assert.Equal(t, p.ID, found[0].ID)

	_, _, err = h.forums.SearchPosts(ctx, f.ID, nil, "  ", repository.PostFilter{})
	requireCode(t, err, models.CodeValidation)
	_, err = h.forums.Stats(ctx, 999)
	requireCode(t, err, models.CodeNotFound)
}

func TestForumService_RecountAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.createForum(t, "Tech")
	b := h.createForum(t, "Gaming")
	h.createPost(t, a.ID, h.alice, "One")
	h.createPost(t, b.ID, h.alice, "Two")
	require.NoError(t, h.repos.Forums.SetAggregates(ctx, a.ID, repository.ForumAggregates{PostsCount: 7}))
	require.NoError(t, h.repos.Forums.SetAggregates(ctx, b.ID, repository.ForumAggregates{}))

	n, err := h.forums.RecountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(1), h.forum(t, a.ID).PostsCount)
	assert.Equal(t, int64(1), h.forum(t, b.ID).PostsCount)
}
