package seed

import (
	"context"
	"errors"
	"fmt"

	"agora/internal/auth"
	"agora/internal/database"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/service"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	PostsPerForum  int
	RepliesPerPost int
	// LikeChance is the percentage of users that like each post.
	LikeChance int
	Seed       int64
	Clean      bool
	// Fixtures replaces the built-in forum list when set.
	Fixtures []ForumFixture
}

// DefaultOptions is what cmd/seed runs without flags.
func DefaultOptions() Options {
	return Options{
		NumUsers:       20,
		PostsPerForum:  8,
		RepliesPerPost: 4,
		LikeChance:     15,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users   int
	Forums  int
	Posts   int
	Replies int
	Likes   int
}

// Seeder creates demo content through the forum services.
type Seeder struct {
	db      *gorm.DB
	deps    service.Deps
	auth    *service.AuthService
	forums  *service.ForumService
	posts   *service.PostService
	replies *service.ReplyService
	factory *Factory
}

// New returns a Seeder over db. Caching and the activity feed are disabled
// while seeding.
func New(db *gorm.DB, jwtSecret string, bcryptCost int, flags *featureflags.Manager, seed int64) *Seeder {
	deps := service.NewDeps(db, nil, nil, flags)
	tokens := auth.NewTokenManager(jwtSecret, 0)
	return &Seeder{
		db:      db,
		deps:    deps,
		auth:    service.NewAuthService(deps.Repos.Users, tokens, auth.NewRevoker(nil), bcryptCost),
		forums:  service.NewForumService(deps),
		posts:   service.NewPostService(deps),
		replies: service.NewReplyService(deps),
		factory: NewFactory(seed),
	}
}

// Run seeds the database. admin owns the fixture forums and may be nil, in
// which case the first generated user is promoted.
func (s *Seeder) Run(ctx context.Context, admin *models.User, opts Options) (*Summary, error) {
	log := middleware.L(ctx)
	log.Info("seeding database",
		zap.Int("users", opts.NumUsers),
		zap.Int("posts_per_forum", opts.PostsPerForum),
		zap.Int("replies_per_post", opts.RepliesPerPost),
	)

	if opts.Clean {
		if err := Clean(ctx, s.db); err != nil {
			return nil, err
		}
		admin = nil
	}

	fixtures := opts.Fixtures
	if fixtures == nil {
		var err error
		if fixtures, err = BuiltInForums(); err != nil {
			return nil, err
		}
	}

	sum := &Summary{}
	users, err := s.createUsers(ctx, opts.NumUsers)
	if err != nil {
		return nil, err
	}
	sum.Users = len(users)

	if admin == nil {
		if len(users) == 0 {
			return nil, errors.New("seeding needs an admin or at least one generated user")
		}
		admin = users[0]
		if err := s.deps.Repos.Users.Updates(ctx, admin.ID, map[string]any{
			"role":        string(models.RoleAdmin),
			"is_verified": true,
		}); err != nil {
			return nil, err
		}
		admin.Role = models.RoleAdmin
		admin.IsVerified = true
	}

	forums, created, err := s.createForums(ctx, admin, fixtures)
	if err != nil {
		return nil, err
	}
	sum.Forums = created

	if len(users) == 0 {
		users = []*models.User{admin}
	}
	for _, forum := range forums {
		if err := s.fillForum(ctx, forum, admin, users, opts, sum); err != nil {
			return nil, fmt.Errorf("seed forum %q: %w", forum.Title, err)
		}
	}

	log.Info("seeding completed",
		zap.Int("users", sum.Users),
		zap.Int("forums", sum.Forums),
		zap.Int("posts", sum.Posts),
		zap.Int("replies", sum.Replies),
		zap.Int("likes", sum.Likes),
	)
	return sum, nil
}

func (s *Seeder) createUsers(ctx context.Context, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		res, err := s.auth.Register(ctx, s.factory.Register())
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, res.User)
	}
	return users, nil
}

// createForums creates the missing fixture forums and returns every fixture
// forum, including ones that already existed.
func (s *Seeder) createForums(ctx context.Context, admin *models.User, fixtures []ForumFixture) ([]*models.Forum, int, error) {
	forums := make([]*models.Forum, 0, len(fixtures))
	created := 0
	for _, fx := range fixtures {
		existing, err := s.deps.Repos.Forums.GetByTitle(ctx, fx.Title)
		if err != nil {
			return nil, 0, err
		}
		if existing != nil {
			forums = append(forums, existing)
			continue
		}

		forum, err := s.forums.CreateForum(ctx, admin, service.CreateForumInput{
			Title:       fx.Title,
			Description: fx.Description,
			Category:    fx.Category,
			Tags:        fx.Tags,
			Settings:    fx.Settings.Model(),
		})
		if err != nil {
			return nil, 0, fmt.Errorf("create forum %q: %w", fx.Title, err)
		}
		for _, rule := range fx.Rules {
			if _, err := s.forums.AddRule(ctx, forum.ID, service.RuleInput{
				Title:       rule.Title,
				Description: rule.Description,
			}); err != nil {
				return nil, 0, fmt.Errorf("add rule to %q: %w", fx.Title, err)
			}
		}
		forums = append(forums, forum)
		created++
	}
	return forums, created, nil
}

func (s *Seeder) fillForum(ctx context.Context, forum *models.Forum, admin *models.User, users []*models.User, opts Options, sum *Summary) error {
	withPoll := forum.Settings.AllowPolls && s.deps.Flags.Enabled(featureflags.Polls, admin.ID)

	for i := 0; i < opts.PostsPerForum; i++ {
		author := users[s.factory.Intn(len(users))]
		if forum.Settings.RestrictedToVerified && !author.IsVerified {
			author = admin
		}
		post, err := s.posts.CreatePost(ctx, author, s.factory.Post(forum.ID, withPoll))
		if err != nil {
			return err
		}
		sum.Posts++

		for j := 0; j < opts.RepliesPerPost; j++ {
			replier := users[s.factory.Intn(len(users))]
			if _, err := s.replies.AddReply(ctx, post.ID, replier, s.factory.Reply()); err != nil {
				return err
			}
			sum.Replies++
		}

		for _, u := range users {
			if u.ID == author.ID || !s.factory.Chance(opts.LikeChance) {
				continue
			}
			if _, err := s.posts.ToggleLike(ctx, post.ID, u); err != nil {
				return err
			}
			sum.Likes++
		}
	}
	return nil
}

// Clean removes every forum row, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec("DELETE FROM forum_moderators").Error; err != nil {
		return fmt.Errorf("clean forum_moderators: %w", err)
	}
	all := database.PersistentModels()
	for i := len(all) - 1; i >= 0; i-- {
		err := db.WithContext(ctx).
			Session(&gorm.Session{AllowGlobalUpdate: true}).
			Unscoped().
			Delete(all[i]).Error
		if err != nil {
			return fmt.Errorf("clean %T: %w", all[i], err)
		}
	}
	middleware.L(ctx).Info("existing data cleared")
	return nil
}
