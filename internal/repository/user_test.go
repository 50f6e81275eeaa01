package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	alice := seedUser(t, repos, "alice")
	require.NotZero(t, alice.ID)

	byEmail, err := repos.Users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, alice.ID, byEmail.ID)

	missing, err := repos.Users.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repos.Users.GetByID(ctx, 999)
	requireCode(t, err, models.CodeNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repos := newRepos(t)
	seedUser(t, repos, "alice")

	err := repos.Users.Create(context.Background(), &models.User{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "hash",
		Role:     models.RoleUser,
	})
	requireCode(t, err, models.CodeValidation)
	assert.Contains(t, err.Error(), "email")
}

func TestUserRepository_UpdatesAndSoftDelete(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	u := seedUser(t, repos, "bob")

	require.NoError(t, repos.Users.Updates(ctx, u.ID, map[string]any{"bio": "hello"}))
	got, err := repos.Users.GetWithPassword(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Bio)
	assert.Equal(t, "hash", got.Password)

	require.NoError(t, repos.Users.Delete(ctx, u.ID))
	_, err = repos.Users.GetByID(ctx, u.ID)
	requireCode(t, err, models.CodeNotFound)

	err = repos.Users.Delete(ctx, u.ID)
	requireCode(t, err, models.CodeNotFound)
}

func TestUserRepository_ListByRole(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	seedUser(t, repos, "carol")
	admin := seedUser(t, repos, "dave")
	require.NoError(t, repos.Users.Updates(ctx, admin.ID, map[string]any{"role": models.RoleAdmin}))

	admins, err := repos.Users.ListByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "dave", admins[0].Username)

	all, total, err := repos.Users.List(ctx, Page{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 1)
}

func TestUserRepository_RecomputeStats(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	author := seedUser(t, repos, "erin")
	fan := seedUser(t, repos, "frank")
	forum := seedForum(t, repos, "Tech", author.ID)

	p1 := seedPost(t, repos, forum.ID, author.ID, "First post", time.Now())
	seedPost(t, repos, forum.ID, author.ID, "Second post", time.Now())
	reply := seedReply(t, repos, p1.ID, author.ID, "self reply")

	require.NoError(t, repos.Posts.Like(ctx, p1.ID, fan.ID, time.Now()))
	require.NoError(t, repos.Replies.Like(ctx, reply.ID, fan.ID, time.Now()))

	stats, err := repos.Users.RecomputeStats(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{PostsCount: 2, LikesReceived: 2, Reputation: 6}, stats)

	stored, err := repos.Users.GetByID(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, stats, stored.Stats)
}

func TestUserRepository_GetByID_StorageFailure(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewUserRepository(db, nil)

	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), 1)
	requireCode(t, err, models.CodeInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_Mock(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewUserRepository(db, nil)

	rows := sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(7, "gina", "gina@example.com")
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WithArgs("gina@example.com", 1).
		WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "gina@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, uint(7), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
