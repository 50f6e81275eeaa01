package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronizer_PostsCountTracksCreatesAndDeletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	assert.Zero(t, f.PostsCount)

	var ids []uint
	for _, title := range []string{"First post", "Second post", "Third post"} {
		ids = append(ids, h.createPost(t, f.ID, h.alice, title).ID)
	}
	require.NoError(t, h.posts.DeletePost(ctx, ids[1], h.alice))
	h.createPost(t, f.ID, h.bob, "Fourth post")
	require.NoError(t, h.posts.DeletePost(ctx, ids[0], h.admin))

	n, err := h.repos.Posts.CountByForum(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, n, h.forum(t, f.ID).PostsCount)
}

func TestSynchronizer_CreatePostScenario(t *testing.T) {
	h := newHarness(t)
	f := h.createForum(t, "Tech")

	p, err := h.posts.CreatePost(context.Background(), h.alice, CreatePostInput{
		Title:   "Hi there",
		Content: "Hello world, this is long enough",
		ForumID: f.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, p.Author)
	require.NotNil(t, p.Forum)
	assert.Equal(t, "alice", p.Author.Username)

	got := h.forum(t, f.ID)
	assert.Equal(t, int64(1), got.PostsCount)
	require.NotNil(t, got.LastPostID)
	assert.Equal(t, p.ID, *got.LastPostID)

	author, err := h.repos.Users.GetByID(context.Background(), h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), author.Stats.PostsCount)
	assert.Equal(t, int64(1), author.Stats.Reputation)
}

func TestSynchronizer_DeleteOnlyPostClearsLastPost(t *testing.T) {
	h := newHarness(t)
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Lonely post")

	before := time.Now()
	require.NoError(t, h.posts.DeletePost(context.Background(), p.ID, h.alice))

	got := h.forum(t, f.ID)
	assert.Zero(t, got.PostsCount)
	assert.Nil(t, got.LastPostID)
	assert.False(t, got.LastActivity.Before(before.Add(-time.Second)))
}

func TestSynchronizer_DeleteNewestFallsBackToPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")

	older := &models.Post{
		Title: "Older", Content: "Written a while ago", ForumID: f.ID, AuthorID: h.bob.ID,
		Type: models.PostTypeNormal, Status: models.PostStatusActive,
		CreatedAt: time.Now().Add(-time.Hour), LastActivity: time.Now().Add(-time.Hour),
	}
	require.NoError(t, h.repos.Posts.Create(ctx, older))
	newest := h.createPost(t, f.ID, h.alice, "Newest")

	require.NoError(t, h.posts.DeletePost(ctx, newest.ID, h.alice))

	got := h.forum(t, f.ID)
	assert.Equal(t, int64(1), got.PostsCount)
	require.NotNil(t, got.LastPostID)
	assert.Equal(t, older.ID, *got.LastPostID)
	assert.WithinDuration(t, older.CreatedAt, got.LastActivity, time.Second)
}

func TestSynchronizer_ReplyCountScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")

	var replies []*models.Reply
	for _, c := range []string{"one", "two", "three"} {
		replies = append(replies, h.addReply(t, p.ID, h.bob, "reply "+c))
	}
	assert.Equal(t, int64(3), h.post(t, p.ID).ReplyCount)

	require.NoError(t, h.replies.DeleteReply(ctx, p.ID, replies[1].ID, h.bob))
	assert.Equal(t, int64(2), h.post(t, p.ID).ReplyCount)

	n, err := h.repos.Replies.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := h.replies.ListReplies(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, replies[0].ID, list[0].ID)
	assert.Equal(t, replies[2].ID, list[1].ID)
}

func TestSynchronizer_ReplyTouchesForumButNotLastPost(t *testing.T) {
	h := newHarness(t)
	f := h.createForum(t, "Tech")
	first := h.createPost(t, f.ID, h.alice, "First")
	second := h.createPost(t, f.ID, h.alice, "Second")
	before := h.forum(t, f.ID).LastActivity

	time.Sleep(5 * time.Millisecond)
	h.addReply(t, first.ID, h.bob, "late reply")

	got := h.forum(t, f.ID)
	require.NotNil(t, got.LastPostID)
	assert.Equal(t, second.ID, *got.LastPostID)
	assert.True(t, got.LastActivity.After(before))
	assert.True(t, h.post(t, first.ID).LastActivity.After(before))
}

func TestSynchronizer_RecountRepairsDrift(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")
	h.addReply(t, p.ID, h.bob, "a reply")

	require.NoError(t, h.repos.Forums.SetAggregates(ctx, f.ID, repository.ForumAggregates{PostsCount: 42}))
	require.NoError(t, h.repos.Posts.SetReplyCount(ctx, p.ID, 9))

	got, err := h.forums.Recount(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.PostsCount)
	require.NotNil(t, got.LastPostID)
	assert.Equal(t, p.ID, *got.LastPostID)
	assert.Equal(t, int64(1), h.post(t, p.ID).ReplyCount)

	_, err = h.forums.Recount(ctx, 999)
	requireCode(t, err, models.CodeNotFound)
}

func TestSynchronizer_AggregateFailureRollsBackPost(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	deps := NewDeps(db, nil, nil, nil)
	svc := NewPostService(deps)

	mock.ExpectQuery(`SELECT \* FROM "forums"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status"}).AddRow(1, "Tech", "active"))
	mock.ExpectQuery(`SELECT \* FROM "forum_bans"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "posts"`).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	admin := &models.User{ID: 1, Username: "admin", Role: models.RoleAdmin}
	_, err := svc.CreatePost(context.Background(), admin, CreatePostInput{
		Title:   "Hi there",
		Content: "Hello world, this is long enough",
		ForumID: 1,
	})
	requireCode(t, err, models.CodeInternal)
	assert.Equal(t, 500, models.TranslateError(err).Status())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForumService_DeleteCascadesPosts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	other := h.createForum(t, "Gaming")
	p := h.createPost(t, f.ID, h.alice, "Doomed")
	h.addReply(t, p.ID, h.bob, "also doomed")
	_, err := h.posts.ToggleLike(ctx, p.ID, h.bob)
	require.NoError(t, err)
	kept := h.createPost(t, other.ID, h.alice, "Survivor")

	require.NoError(t, h.forums.DeleteForum(ctx, f.ID))

	_, err = h.repos.Forums.GetByID(ctx, f.ID)
	requireCode(t, err, models.CodeNotFound)
	_, err = h.repos.Posts.GetByID(ctx, p.ID)
	requireCode(t, err, models.CodeNotFound)
	n, err := h.repos.Replies.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.post(t, kept.ID)
	alice, err := h.repos.Users.GetByID(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.Stats.PostsCount)
	assert.Zero(t, alice.Stats.LikesReceived)
}
