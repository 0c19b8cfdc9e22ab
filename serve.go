package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"browsebux-economy/config"
	"browsebux-economy/handlers"
	"browsebux-economy/logging"
	"browsebux-economy/middleware"
	"browsebux-economy/services"
	"browsebux-economy/utils"
	"browsebux-economy/workers"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().Bool("memory", false, "Keep records in process memory instead of PostgreSQL")
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the accrual scheduler",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer closeLog()

		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		if err := services.NewGormStore(db).Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		slog.Info("database migrated")
		return nil
	},
}

func bootstrap(requireDatabase bool) (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(requireDatabase); err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, closeLog, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsProduction() {
		level = logger.Error
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	memory, _ := cmd.Flags().GetBool("memory")

	cfg, closeLog, err := bootstrap(!memory)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var store services.Store
	var db *gorm.DB
	if memory {
		slog.Warn("using in-memory store, records are lost on exit")
		store = services.NewMemoryStore()
	} else {
		db, err = openDB(cfg)
		if err != nil {
			return err
		}
		gs := services.NewGormStore(db)
		if err := gs.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		store = gs
	}

	catalog, err := services.LoadTaskCatalog(cfg.TaskCatalogPath)
	if err != nil {
		return err
	}

	economy := services.NewEconomyService(store, services.NewSessionRegistry())
	accrual, err := services.NewAccrualLoop(economy, cfg.AccrualInterval)
	if err != nil {
		return err
	}
	sessions := services.NewSessionManager(economy, accrual)
	withdrawals := services.NewWithdrawalService(economy, services.WithdrawalPolicy{
		MinAmount:      cfg.MinWithdrawal,
		FeeRate:        cfg.WithdrawalFeeRate,
		PayoutHost:     services.DefaultWithdrawalPolicy.PayoutHost,
		PayoutPath:     services.DefaultWithdrawalPolicy.PayoutPath,
		RefundRejected: cfg.RefundRejectedWithdrawals,
	})
	search, err := services.NewSearchClient(services.SearchConfig{
		APIURL:    cfg.AIAPIURL,
		APIKey:    cfg.AIAPIKey,
		Model:     cfg.AIModel,
		Timeout:   cfg.AITimeout,
		CacheSize: cfg.AICacheSize,
	})
	if err != nil {
		return err
	}
	if !search.Enabled() {
		slog.Warn("AI_API_KEY not set, search returns no results")
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
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
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Admin-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	var avatars handlers.AvatarUploader
	if cfg.R2Enabled() {
		r2, err := utils.NewR2Storage(ctx, utils.R2Config{
			AccountID:       cfg.CloudflareAccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2BucketName,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			return err
		}
		avatars = r2
	} else {
		local := &utils.LocalStorage{Dir: "uploads", URLPrefix: "/uploads"}
		if err := local.EnsureDir(); err != nil {
			return fmt.Errorf("failed to ensure upload dir: %w", err)
		}
		app.Static("/uploads", "./uploads")
		avatars = local
	}

	var auth []fiber.Handler
	if cfg.GatewayServiceToken != "" {
		auth = []fiber.Handler{
			middleware.GatewayAuthMiddleware(cfg.GatewayServiceToken),
			middleware.UserContextMiddleware(),
		}
	} else {
		auth = []fiber.Handler{middleware.JWTProtected(cfg.JWTSecret)}
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	handlers.Setup(app, handlers.Services{
		Economy:     economy,
		Sessions:    sessions,
		Tasks:       services.NewTaskService(economy, catalog),
		Withdrawals: withdrawals,
		Search:      search,
		Avatars:     avatars,
	}, middleware.AdminOnly(cfg.AdminToken), auth...)

	if cfg.PayoutServiceURL != "" {
		client := workers.NewPayoutSyncClient(cfg.PayoutServiceURL, cfg.PayoutServiceToken, utils.NewHTTPClient(30*time.Second))
		go workers.PollPayouts(ctx, client, withdrawals, cfg.PayoutPollInterval)
	}

	go func() {
		slog.Info("server starting",
			"port", cfg.Port,
			"store", fmt.Sprintf("%T", store),
			"accrual_interval", cfg.AccrualInterval.String(),
			"tasks", catalog.Len(),
		)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	sessions.CloseAll()
	if err := accrual.Shutdown(); err != nil {
		slog.Error("accrual scheduler shutdown error", "error", err)
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("database close error", "error", err)
			}
		}
	}
	slog.Info("server stopped")
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
