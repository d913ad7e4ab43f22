// Package server contains the HTTP handlers, HTML pages and route table of
// the libris API.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	_ "libris/docs" // swagger docs
	"libris/internal/auth"
	"libris/internal/cache"
	"libris/internal/config"
	"libris/internal/database"
	"libris/internal/featureflags"
	"libris/internal/middleware"
	"libris/internal/models"
	"libris/internal/repository"
	"libris/internal/service"
	"libris/internal/storage"
	"libris/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

//go:embed views/*.html
var viewsFS embed.FS

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	media          *storage.Media
	sessions       *auth.SessionManager
	resolver       *auth.Resolver

	authService  *service.AuthService
	userService  *service.UserService
	bookService  *service.BookService
	newsService  *service.NewsService
	itemService  *service.ItemService
	genreService *service.GenreService
}

// NewServer connects to the database and Redis described by cfg and wires
// every dependency.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil Redis client keeps sessions in the database.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires a config and a database")
	}

	var store auth.SessionStore
	if redisClient != nil {
		store = auth.NewRedisSessionStore(redisClient)
	} else {
		store = auth.NewDBSessionStore(repository.NewSessionRepository(db))
	}
	sessions := auth.NewSessionManager(store, cfg.SecretKey, cfg.SessionTTL())

	media := storage.NewMedia(cfg.MediaRoot, cfg.MediaURL, cfg.ImageMaxUploadSizeMB, cfg.ImageMaxDimension)
	policy := validation.DefaultPasswordPolicy()

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("libris-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		media:          media,
		sessions:       sessions,
		resolver: auth.NewResolver(
			auth.NewTokenVerifier(repository.NewTokenRepository(db)),
			auth.NewSessionVerifier(sessions, repository.NewUserRepository(db)),
		),
		authService:  service.NewAuthService(db, sessions, policy),
		userService:  service.NewUserService(db, media, policy),
		bookService:  service.NewBookService(db, media),
		newsService:  service.NewNewsService(db, media),
		itemService:  service.NewItemService(db),
		genreService: service.NewGenreService(db),
	}
	return s, nil
}

// NewApp builds a Fiber app with the full middleware chain and route table.
func (s *Server) NewApp() (*fiber.App, error) {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "Libris API",
		BodyLimit: (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
		Views:     html.NewFileSystem(http.FS(views), ".html"),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			return s.respondError(c, err)
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Server-rendered pages load their stylesheet from the CDN.
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' https://cdn.jsdelivr.net; img-src 'self' data: https:",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit so browser clients
	// still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" || origins == "*" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + csrfHeaderName,
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis reachability. Redis is
// optional: without it sessions live in the database.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
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

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app, err := s.NewApp()
	if err != nil {
		return err
	}
	s.app = app

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown drains the HTTP server and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close database: %w", cerr))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", rerr))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
