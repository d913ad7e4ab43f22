// Package bootstrap prepares the process runtime shared by the server and
// the management commands.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"libris/internal/cache"
	"libris/internal/config"
	"libris/internal/database"
	"libris/internal/middleware"
	"libris/internal/seed"
	"libris/internal/service"
	"libris/internal/validation"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema brings the schema up to date according to DB_SCHEMA_MODE.
	ApplySchema bool
	// SeedDemo fills an empty database with demo data.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis, applies the schema and
// runs the development bootstrap steps. The Redis client is nil when Redis
// is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if err := EnsureDevRoot(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo {
		if err := seedIfEmpty(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

// EnsureDevRoot creates or refreshes the development superuser when
// DEV_BOOTSTRAP_ROOT is set in the development environment.
func EnsureDevRoot(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "admin"
	}
	email := strings.TrimSpace(cfg.DevRootEmail)
	if email == "" {
		email = "admin@libris.local"
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	users := service.NewUserService(db, nil, validation.DefaultPasswordPolicy())
	user, created, err := users.EnsureSuperuser(ctx, service.AccountInput{
		Email:    email,
		Username: username,
		Password: cfg.DevRootPassword,
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "development root admin ensured",
		"user_id", user.ID, "email", user.Email, "created", created)
	return nil
}

func seedIfEmpty(ctx context.Context, db *gorm.DB) error {
	var books int64
	if err := db.WithContext(ctx).Table("books").Count(&books).Error; err != nil {
		return err
	}
	if books > 0 {
		return nil
	}
	_, err := seed.Seed(ctx, db, seed.DefaultOptions())
	return err
}
