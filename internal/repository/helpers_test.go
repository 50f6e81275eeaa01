package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/require"
)

func newRepos(t *testing.T) Repositories {
	t.Helper()
	return New(testutil.NewSQLiteDB(t), nil)
}

func seedUser(t *testing.T, repos Repositories, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "hash",
		Role:     models.RoleUser,
	}
	require.NoError(t, repos.Users.Create(context.Background(), u))
	return u
}

func seedForum(t *testing.T, repos Repositories, title string, creatorID uint) *models.Forum {
	t.Helper()
	f := &models.Forum{
		Title:        title,
		Description:  "A place to talk about " + title,
		Category:     models.CategoryTechnology,
		CreatorID:    creatorID,
		Status:       models.ForumStatusActive,
		Settings:     models.DefaultForumSettings(),
		LastActivity: time.Now(),
	}
	require.NoError(t, repos.Forums.Create(context.Background(), f))
	return f
}

func seedPost(t *testing.T, repos Repositories, forumID, authorID uint, title string, createdAt time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:        title,
		Content:      "Body text for " + title,
		ForumID:      forumID,
		AuthorID:     authorID,
		Type:         models.PostTypeNormal,
		Status:       models.PostStatusActive,
		LastActivity: createdAt,
		CreatedAt:    createdAt,
	}
	require.NoError(t, repos.Posts.Create(context.Background(), p))
	return p
}

func seedReply(t *testing.T, repos Repositories, postID, authorID uint, content string) *models.Reply {
	t.Helper()
	ctx := context.Background()
	pos, err := repos.Replies.NextPosition(ctx, postID)
	require.NoError(t, err)
	r := &models.Reply{PostID: postID, AuthorID: authorID, Content: content, Position: pos}
	require.NoError(t, repos.Replies.Create(ctx, r))
	return r
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := models.TranslateError(err)
	require.Equal(t, code, appErr.Code, "unexpected error: %v", err)
}
