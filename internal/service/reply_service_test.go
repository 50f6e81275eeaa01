package service

import (
	"context"
	"testing"

	"agora/internal/featureflags"
	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyService_AddReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")

	first := h.addReply(t, p.ID, h.bob, "first answer")
	second := h.addReply(t, p.ID, h.alice, "second answer")

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Less(t, first.Position, second.Position)
	require.NotNil(t, first.Author)
	assert.Equal(t, "bob", first.Author.Username)

	_, err := h.replies.AddReply(ctx, 999, h.bob, ReplyInput{Content: "nobody home"})
	requireCode(t, err, models.CodeNotFound)

	_, err = h.replies.AddReply(ctx, p.ID, h.bob, ReplyInput{Content: "   "})
	requireCode(t, err, models.CodeValidation)
	assert.Equal(t, int64(2), h.post(t, p.ID).ReplyCount)
}

func TestReplyService_BannedUserCannotReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")

	_, err := h.forums.BanUser(ctx, f.ID, h.admin, BanInput{UserID: h.bob.ID})
	require.NoError(t, err)

	_, err = h.replies.AddReply(ctx, p.ID, h.bob, ReplyInput{Content: "let me speak"})
	requireCode(t, err, models.CodeForbidden)
	assert.Zero(t, h.post(t, p.ID).ReplyCount)
}

func TestReplyService_UpdateAndDeleteOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")
	r := h.addReply(t, p.ID, h.bob, "original reply")

	_, err := h.replies.UpdateReply(ctx, p.ID, r.ID, h.alice, ReplyInput{Content: "hijacked"})
	requireCode(t, err, models.CodeForbidden)
	_, err = h.replies.UpdateReply(ctx, p.ID, r.ID, h.alice, ReplyInput{Content: ""})
	requireCode(t, err, models.CodeForbidden)
	requireCode(t, h.replies.DeleteReply(ctx, p.ID, r.ID, h.alice), models.CodeForbidden)

	got, err := h.replies.UpdateReply(ctx, p.ID, r.ID, h.bob, ReplyInput{Content: "edited reply"})
	require.NoError(t, err)
	assert.Equal(t, "edited reply", got.Content)
	assert.True(t, got.IsEdited)

	other := h.createPost(t, f.ID, h.alice, "Other thread")
	requireCode(t, h.replies.DeleteReply(ctx, other.ID, r.ID, h.bob), models.CodeNotFound)
	requireCode(t, h.replies.DeleteReply(ctx, p.ID, "no-such-reply", h.bob), models.CodeNotFound)

	require.NoError(t, h.replies.DeleteReply(ctx, p.ID, r.ID, h.admin))
	assert.Zero(t, h.post(t, p.ID).ReplyCount)
}

func TestReplyService_ToggleLike(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")
	r := h.addReply(t, p.ID, h.bob, "helpful reply")

	res, err := h.replies.ToggleLike(ctx, p.ID, r.ID, h.alice)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)

	bob, err := h.repos.Users.GetByID(ctx, h.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bob.Stats.LikesReceived)

	res, err = h.replies.ToggleLike(ctx, p.ID, r.ID, h.alice)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Zero(t, res.LikesCount)

	h.replies.Flags = featureflags.NewManager("reply_likes=off")
	_, err = h.replies.ToggleLike(ctx, p.ID, r.ID, h.alice)
	requireCode(t, err, models.CodeValidation)
}
