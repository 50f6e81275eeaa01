// Package bootstrap wires the database and Redis handles shared by the
// server and the command-line tools.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"agora/internal/auth"
	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SkipSchema bool
}

// InitRuntime connects to the database and Redis. The Redis client is nil
// when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	return db, rdb, nil
}

// EnsureDevRootAdmin creates or promotes the development root account when
// DEV_BOOTSTRAP_ROOT is set outside production.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "agora_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@agora.local"
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashed, err := auth.HashPassword(cfg.DevRootPassword, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Username:   username,
				Email:      email,
				Password:   hashed,
				Role:       models.RoleAdmin,
				IsVerified: true,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		}

		updates := map[string]any{"role": string(models.RoleAdmin), "is_verified": true}
		if cfg.DevRootForceCredentials {
			updates["username"] = username
			updates["password"] = hashed
		}
		return tx.Model(&models.User{}).Where("id = ?", root.ID).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", zap.String("email", email))
	return nil
}
