package seed

import (
	"context"
	"testing"

	"agora/internal/featureflags"
	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newSeeder(t *testing.T) (*Seeder, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	flags := featureflags.NewManager("polls=on")
	return New(db, "seed-test-secret-that-is-long-enough", bcrypt.MinCost, flags, 42), db
}

func smallOptions() Options {
	return Options{
		NumUsers:       4,
		PostsPerForum:  2,
		RepliesPerPost: 3,
		LikeChance:     50,
		Fixtures: []ForumFixture{
			{Title: "Go Programming", Description: "Questions about the Go language", Category: "technology",
				Rules: []RuleFixture{{Title: "Be civil"}}},
			{Title: "Announcements", Description: "News about the community", Category: "general",
				Settings: &SettingsFixture{AllowImages: true, RestrictedToVerified: true}},
		},
	}
}

func TestSeeder_RunKeepsCountersConsistent(t *testing.T) {
	s, db := newSeeder(t)
	ctx := context.Background()

	sum, err := s.Run(ctx, nil, smallOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Users)
	assert.Equal(t, 2, sum.Forums)
	assert.Equal(t, 4, sum.Posts)
	assert.Equal(t, 12, sum.Replies)

	var forums []models.Forum
	require.NoError(t, db.Find(&forums).Error)
	require.Len(t, forums, 2)
	for _, f := range forums {
		var posts int64
		require.NoError(t, db.Model(&models.Post{}).Where("forum_id = ?", f.ID).Count(&posts).Error)
		assert.Equal(t, posts, f.PostsCount, f.Title)
		assert.NotNil(t, f.LastPostID, f.Title)
	}

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		var replies int64
		require.NoError(t, db.Model(&models.Reply{}).Where("post_id = ?", p.ID).Count(&replies).Error)
		assert.Equal(t, replies, p.ReplyCount)
	}

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.Equal(t, int64(1), admins)

	var rules int64
	require.NoError(t, db.Model(&models.ForumRule{}).Count(&rules).Error)
	assert.Equal(t, int64(1), rules)
}

func TestSeeder_RunTwiceReusesForums(t *testing.T) {
	s, db := newSeeder(t)
	ctx := context.Background()

	_, err := s.Run(ctx, nil, smallOptions())
	require.NoError(t, err)
	sum, err := s.Run(ctx, nil, smallOptions())
	require.NoError(t, err)
	assert.Zero(t, sum.Forums)

	var forums int64
	require.NoError(t, db.Model(&models.Forum{}).Count(&forums).Error)
	assert.Equal(t, int64(2), forums)
}

func TestSeeder_CleanRemovesEverything(t *testing.T) {
	s, db := newSeeder(t)
	ctx := context.Background()

	_, err := s.Run(ctx, nil, smallOptions())
	require.NoError(t, err)
	require.NoError(t, Clean(ctx, db))

	for _, m := range []any{&models.User{}, &models.Forum{}, &models.Post{}, &models.Reply{}} {
		var n int64
		require.NoError(t, db.Unscoped().Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}
}

func TestSeeder_RequiresSomeone(t *testing.T) {
	s, _ := newSeeder(t)
	opts := smallOptions()
	opts.NumUsers = 0

	_, err := s.Run(context.Background(), nil, opts)
	assert.Error(t, err)
}

func TestSeeder_CreateForumsOnFreshDatabase(t *testing.T) {
	s, _ := newSeeder(t)
	ctx := context.Background()

	users, err := s.createUsers(ctx, 1)
	require.NoError(t, err)
	fixtures := []ForumFixture{
		{Title: "Board Games", Description: "Strategy, party and card games", Category: "gaming"},
	}

	forums, created, err := s.createForums(ctx, users[0], fixtures)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, forums, 1)
	require.NotNil(t, forums[0])
	assert.NotZero(t, forums[0].ID)

	again, created, err := s.createForums(ctx, users[0], fixtures)
	require.NoError(t, err)
	assert.Zero(t, created)
	require.Len(t, again, 1)
	require.NotNil(t, again[0])
	assert.Equal(t, forums[0].ID, again[0].ID)
}
