// Command seed fills the configured database with demo forums and traffic.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/seed"

	"go.uber.org/zap"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	postsPerForum := flag.Int("posts", defaults.PostsPerForum, "Posts to create in every forum")
	repliesPerPost := flag.Int("replies", defaults.RepliesPerPost, "Replies to add to every post")
	likeChance := flag.Int("like-chance", defaults.LikeChance, "Percentage of users that like each post")
	fakerSeed := flag.Int64("seed", 0, "Seed for generated content (0 is random)")
	clean := flag.Bool("clean", false, "Delete all existing data first")
	fixtures := flag.String("fixtures", "", "YAML file replacing the built-in forum list")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	logger, err := middleware.InitLogger(middleware.LogConfig{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := seed.Options{
		NumUsers:       *numUsers,
		PostsPerForum:  *postsPerForum,
		RepliesPerPost: *repliesPerPost,
		LikeChance:     *likeChance,
		Seed:           *fakerSeed,
		Clean:          *clean,
	}
	if *fixtures != "" {
		raw, err := os.ReadFile(*fixtures)
		if err != nil {
			logger.Fatal("failed to read fixtures", zap.String("path", *fixtures), zap.Error(err))
		}
		if opts.Fixtures, err = seed.ParseForumFixtures(raw); err != nil {
			logger.Fatal("invalid fixtures", zap.Error(err))
		}
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		logger.Fatal("failed to initialize runtime", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)
	s := seed.New(db, cfg.JWTSecret, cfg.BcryptCost, flags, opts.Seed)

	sum, err := s.Run(context.Background(), nil, opts)
	if err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
	logger.Info("seeding done",
		zap.Int("users", sum.Users),
		zap.Int("forums", sum.Forums),
		zap.Int("posts", sum.Posts),
		zap.String("password", seed.DefaultPassword),
	)
}
