package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/config"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/database"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/logging"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/routes"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/services"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/store"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/token"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup(slog.LevelInfo)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	stdout := logging.Setup(logging.ParseLevel(cfg.LogLevel))

	codec, err := token.NewCodec(token.Options{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenExpiry,
		RefreshTTL:    cfg.RefreshTokenExpiry,
	})
	if err != nil {
		slog.Error("token codec setup failed", "error", err)
		os.Exit(1)
	}

	// Credential store and ledger
	var (
		db          *gorm.DB
		users       services.UserStore
		gateUsers   middleware.UserFinder
		ledger      services.TokenLedger
		pgLog       *logging.PGHandler
		cleanupDone = make(chan struct{})
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Warn("using in-memory stores; data is lost on restart")
		mem := store.NewMemoryUsers()
		users, gateUsers = mem, mem
		ledger = store.NewMemoryTokens()
	default:
		db, err = database.Connect(cfg)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(db); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}

		pgUsers := store.NewUsers(db)
		users, gateUsers = pgUsers, pgUsers
		ledger = store.NewTokenLedger(db)

		// PostgreSQL log handler (ERROR+ async batch)
		pgLog = logging.NewPGHandler(db)
		slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, pgLog)))

		logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)
	}

	var rdb *redis.Client
	if cfg.LedgerBackend == config.LedgerBackendRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			slog.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		ledger = store.NewRedisLedger(rdb, cfg.RefreshTokenExpiry)
		slog.Info("refresh token ledger on redis", "addr", cfg.RedisAddr)
	}

	// Services and handlers
	authService := services.NewAuthService(users, ledger, codec)
	authHandler := handlers.NewAuthHandler(authService, cfg)

	var (
		healthHandler *handlers.HealthHandler
		courseHandler *handlers.CourseHandler
	)
	if db != nil {
		healthHandler = handlers.NewHealthHandler(func() error { return database.Ping(db) })
		courseHandler = handlers.NewCourseHandler(
			services.NewCourseService(db),
			services.NewEnrollmentService(db),
		)
	} else {
		healthHandler = handlers.NewHealthHandler(nil)
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(app, middleware.Authenticate(codec, gateUsers), authHandler, healthHandler, courseHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "ledger", cfg.LedgerBackend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	if pgLog != nil {
		pgLog.Stop()
	}
	sentry.Flush(2 * time.Second)

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if db != nil {
		if err := database.Close(db); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Code:    statusCode(code),
		Message: message,
	})
}

func statusCode(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return "not_found"
	case status == fiber.StatusTooManyRequests:
		return "rate_limited"
	case status == fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case status >= 500:
		return "internal"
	default:
		return "bad_request"
	}
}
