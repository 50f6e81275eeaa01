package service

import (
	"context"
	"fmt"
	"testing"

	"agora/internal/featureflags"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	deps    Deps
	repos   repository.Repositories
	forums  *ForumService
	posts   *PostService
	replies *ReplyService
	polls   *PollService
	users   *UserService

	admin *models.User
	alice *models.User
	bob   *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	deps := NewDeps(db, nil, nil, featureflags.NewManager("polls=on,reply_likes=on"))

	h := &harness{
		deps:    deps,
		repos:   deps.Repos,
		forums:  NewForumService(deps),
		posts:   NewPostService(deps),
		replies: NewReplyService(deps),
		polls:   NewPollService(deps),
		users:   NewUserService(deps, bcrypt.MinCost),
	}
	h.admin = h.seedUser(t, "admin", models.RoleAdmin)
	h.alice = h.seedUser(t, "alice", models.RoleUser)
	h.bob = h.seedUser(t, "bob", models.RoleUser)
	return h
}

func (h *harness) seedUser(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "hash",
		Role:     role,
	}
	require.NoError(t, h.repos.Users.Create(context.Background(), u))
	return u
}

func (h *harness) createForum(t *testing.T, title string) *models.Forum {
	t.Helper()
	f, err := h.forums.CreateForum(context.Background(), h.admin, CreateForumInput{
		Title:       title,
		Description: "Everything about " + title + " and more",
		Category:    "technology",
	})
	require.NoError(t, err)
	return f
}

func (h *harness) createPost(t *testing.T, forumID uint, author *models.User, title string) *models.Post {
	t.Helper()
	p, err := h.posts.CreatePost(context.Background(), author, CreatePostInput{
		Title:   title,
		Content: "Hello world, this is long enough",
		ForumID: forumID,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) addReply(t *testing.T, postID uint, author *models.User, content string) *models.Reply {
	t.Helper()
	r, err := h.replies.AddReply(context.Background(), postID, author, ReplyInput{Content: content})
	require.NoError(t, err)
	return r
}

func (h *harness) forum(t *testing.T, id uint) *models.Forum {
	t.Helper()
	f, err := h.repos.Forums.GetByID(context.Background(), id)
	require.NoError(t, err)
	return f
}

func (h *harness) post(t *testing.T, id uint) *models.Post {
	t.Helper()
	p, err := h.repos.Posts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := models.TranslateError(err)
	require.Equal(t, code, appErr.Code, "unexpected error: %v", err)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
