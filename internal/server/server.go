package server

import (
	"context"
	"errors"
	"time"

	_ "agora/docs" // swagger docs
	"agora/internal/auth"
	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	notifier     *notifications.Notifier
	hub          *notifications.ForumHub
	featureFlags *featureflags.Manager
	owners       *service.OwnerRegistry

	deps         service.Deps
	authService  *service.AuthService
	forumService *service.ForumService
	postService  *service.PostService
	replyService *service.ReplyService
	pollService  *service.PollService
	userService  *service.UserService
}

// NewServerWithDeps creates a Server over an already-connected database and
// Redis client. redisClient may be nil, which disables caching, token
// revocation and the cross-instance activity feed.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires a config and a database")
	}

	store := cache.NewStore(redisClient)
	notifier := notifications.NewNotifier(redisClient)
	flags := featureflags.NewManager(cfg.FeatureFlags)
	deps := service.NewDeps(db, store, notifier, flags)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())
	revoker := auth.NewRevoker(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("agora-api"),
		notifier:       notifier,
		hub:            notifications.NewForumHub(),
		featureFlags:   flags,
		owners:         service.NewOwnerRegistry(deps.Repos),
		deps:           deps,
		authService:    service.NewAuthService(deps.Repos.Users, tokens, revoker, cfg.BcryptCost),
		forumService:   service.NewForumService(deps),
		postService:    service.NewPostService(deps),
		replyService:   service.NewReplyService(deps),
		pollService:    service.NewPollService(deps),
		userService:    service.NewUserService(deps, cfg.BcryptCost),
	}
	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if s.config.RateLimitPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.config.RateLimitPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"success": false,
					"error":   "Too many requests, please try again later.",
				})
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	protect := s.Protect()
	optional := s.OptionalAuth()
	admin := s.Authorize(models.RoleAdmin)

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "Agora API Metrics"}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	authRoutes.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authRoutes.Get("/me", protect, s.Me)
	authRoutes.Post("/logout", protect, s.Logout)
	authRoutes.Post("/refresh", protect, s.Refresh)

	forums := api.Group("/forums")
	forums.Get("/", s.ListForums)
	forums.Post("/", protect, admin, s.CreateForum)
	// Specific /:id/<resource> routes before the generic /:id routes.
	forums.Post("/:id/rules", protect, s.IsOwner(service.ResourceForum, "id"), s.AddRule)
	forums.Put("/:id/rules/:ruleId", protect, s.IsOwner(service.ResourceForum, "id"), s.UpdateRule)
	forums.Delete("/:id/rules/:ruleId", protect, s.IsOwner(service.ResourceForum, "id"), s.DeleteRule)
	forums.Put("/:id/settings", protect, s.IsOwner(service.ResourceForum, "id"), s.UpdateSettings)
	forums.Post("/:id/moderators", protect, admin, s.AddModerator)
	forums.Delete("/:id/moderators/:userId", protect, admin, s.RemoveModerator)
	forums.Get("/:id/bans", protect, s.ListBans)
	forums.Post("/:id/bans", protect, s.BanUser)
	forums.Delete("/:id/bans/:userId", protect, s.UnbanUser)
	forums.Get("/:id/stats", s.ForumStats)
	forums.Post("/:id/stats/recount", protect, admin, s.RecountForum)
	forums.Get("/:id/search", optional, middleware.RateLimit(s.redis, 30, time.Minute, "forum_search"), s.SearchForumPosts)
	forums.Get("/:id/posts", optional, s.ListForumPosts)
	forums.Get("/:id", s.GetForum)
	forums.Put("/:id", protect, s.IsOwner(service.ResourceForum, "id"), s.UpdateForum)
	forums.Delete("/:id", protect, s.IsOwner(service.ResourceForum, "id"), s.DeleteForum)

	posts := api.Group("/posts")
	posts.Post("/", protect, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Put("/:id/status", protect, s.SetPostStatus)
	posts.Post("/:id/like", protect, s.LikePost)
	posts.Get("/:id/poll", s.GetPoll)
	posts.Post("/:id/poll/vote", protect, s.VotePoll)
	posts.Get("/:id/replies", optional, s.ListReplies)
	posts.Post("/:id/replies", protect, middleware.RateLimit(s.redis, 20, time.Minute, "create_reply"), s.AddReply)
	posts.Post("/:postId/replies/:replyId/like", protect, s.LikeReply)
	posts.Put("/:postId/replies/:replyId", protect, s.IsOwnerWithin(service.ResourceReply, "postId", "replyId"), s.UpdateReply)
	posts.Delete("/:postId/replies/:replyId", protect, s.IsOwnerWithin(service.ResourceReply, "postId", "replyId"), s.DeleteReply)
	posts.Get("/:id", optional, s.GetPost)
	posts.Put("/:id", protect, s.IsOwner(service.ResourcePost, "id"), s.UpdatePost)
	posts.Delete("/:id", protect, s.IsOwner(service.ResourcePost, "id"), s.DeletePost)

	users := api.Group("/users")
	users.Get("/", protect, admin, s.ListUsers)
	users.Put("/profile", protect, s.UpdateProfile)
	users.Put("/preferences", protect, s.UpdatePreferences)
	users.Get("/me/followed-forums", protect, s.FollowedForums)
	users.Post("/forums/:forumId/follow", protect, s.ToggleFollow)
	users.Get("/:id/posts", optional, s.UserPosts)
	users.Get("/:id/stats", s.UserStats)
	users.Get("/:id/reputation", s.UserReputation)
	users.Put("/:id/role", protect, admin, s.SetUserRole)
	users.Get("/:id", s.GetUser)
	users.Delete("/:id", protect, s.IsOwner(service.ResourceUser, "id"), s.DeleteUser)

	api.Get("/ws/forums/:id", s.ForumFeedUpgrade, s.ForumFeedHandler())

	adminRoutes := api.Group("/admin")
	adminRoutes.Get("/feature-flags", protect, admin, s.GetFeatureFlags)

	app.Use(func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.NewError(fiber.StatusNotFound, "Route not found"))
	})
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	bodyLimit := s.config.BodyLimitM
	if bodyLimit <= 0 {
		bodyLimit = 4
	}
	app := fiber.New(fiber.Config{
		AppName:      "Agora Forum API",
		BodyLimit:    bodyLimit * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler renders errors that escaped a handler with the standard
// envelope. Internal causes are logged, never returned.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		appErr := models.TranslateError(err)
		if appErr.Code == models.CodeInternal {
			middleware.L(c.UserContext()).Error("unhandled request error",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return models.RespondWithError(c, appErr)
	}
	return models.RespondWithError(c, fe)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional, so
// only an unhealthy database fails readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app, wires the activity feed and listens on the
// configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring", zap.String("hub", s.hub.Name()), zap.Error(err))
			}
		}()
	}

	middleware.Logger.Info("server starting", zap.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", zap.Error(err))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", zap.String("hub", s.hub.Name()), zap.Error(err))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", zap.Error(cerr))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", zap.Error(rerr))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
