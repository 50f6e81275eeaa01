package repository

import (
	"context"
	"testing"
	"time"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyRepository_PositionsAndScope(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	u := seedUser(t, repos, "alice")
	f := seedForum(t, repos, "Tech", u.ID)
	p := seedPost(t, repos, f.ID, u.ID, "Hello", time.Now())
	other := seedPost(t, repos, f.ID, u.ID, "Other", time.Now())

	a := seedReply(t, repos, p.ID, u.ID, "a")
	b := seedReply(t, repos, p.ID, u.ID, "b")
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
	assert.Len(t, a.ID, 36)

	_, err := repos.Replies.Get(ctx, other.ID, a.ID)
	requireCode(t, err, models.CodeNotFound)

	got, err := repos.Replies.Get(ctx, p.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Content)
	require.NotNil(t, got.Author)

	require.NoError(t, repos.Replies.Delete(ctx, a.ID))
	c := seedReply(t, repos, p.ID, u.ID, "c")
	assert.Equal(t, 3, c.Position)

	n, err := repos.Replies.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := repos.Replies.ListByPost(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, c.ID, list[1].ID)
}

func TestReplyRepository_UpdatesAndLikes(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	u := seedUser(t, repos, "alice")
	fan := seedUser(t, repos, "fan")
	f := seedForum(t, repos, "Tech", u.ID)
	p := seedPost(t, repos, f.ID, u.ID, "Hello", time.Now())
	r := seedReply(t, repos, p.ID, u.ID, "draft")

	require.NoError(t, repos.Replies.Updates(ctx, r.ID, map[string]any{"content": "final", "is_edited": true}))
	got, err := repos.Replies.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Content)
	assert.True(t, got.IsEdited)

	requireCode(t, repos.Replies.Updates(ctx, "missing", map[string]any{"content": "x"}), models.CodeNotFound)

	require.NoError(t, repos.Replies.Like(ctx, r.ID, fan.ID, time.Now()))
	liked, err := repos.Replies.IsLiked(ctx, r.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	require.NoError(t, repos.Replies.Unlike(ctx, r.ID, fan.ID))
	liked, err = repos.Replies.IsLiked(ctx, r.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, liked)
}
