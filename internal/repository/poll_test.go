package repository

import (
	"context"
	"testing"
	"time"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollRepository_ReplaceVotesAndTally(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	alice := seedUser(t, repos, "alice")
	bob := seedUser(t, repos, "bob")
	f := seedForum(t, repos, "Tech", alice.ID)

	post := &models.Post{
		Title: "Tabs or spaces", Content: "Settle it once and for all", ForumID: f.ID, AuthorID: alice.ID,
		Type: models.PostTypePoll, Status: models.PostStatusActive,
		Poll: &models.Poll{Question: "Which", Options: []models.PollOption{{Text: "tabs", Position: 1}, {Text: "spaces", Position: 2}}},
	}
	require.NoError(t, repos.Posts.Create(ctx, post))
	poll, err := repos.Polls.GetByPost(ctx, post.ID)
	require.NoError(t, err)
	tabs, spaces := poll.Options[0].ID, poll.Options[1].ID

	now := time.Now()
	require.NoError(t, repos.Polls.ReplaceVotes(ctx, poll.ID, alice.ID, []models.PollVote{{PollID: poll.ID, OptionID: tabs, UserID: alice.ID, VotedAt: now}}))
	require.NoError(t, repos.Polls.ReplaceVotes(ctx, poll.ID, bob.ID, []models.PollVote{{PollID: poll.ID, OptionID: tabs, UserID: bob.ID, VotedAt: now}}))
	require.NoError(t, repos.Polls.ReplaceVotes(ctx, poll.ID, alice.ID, []models.PollVote{{PollID: poll.ID, OptionID: spaces, UserID: alice.ID, VotedAt: now}}))

	tally, err := repos.Polls.Tally(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{tabs: 1, spaces: 1}, tally)

	votes, err := repos.Polls.UserVotes(ctx, poll.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, spaces, votes[0].OptionID)

	_, err = repos.Polls.GetByPost(ctx, 999)
	requireCode(t, err, models.CodeNotFound)
}
