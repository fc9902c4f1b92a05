package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sitedesk-erp/sitedesk/internal/app"
	"github.com/sitedesk-erp/sitedesk/internal/mail"
	"github.com/sitedesk-erp/sitedesk/internal/masterdata/projects"
	"github.com/sitedesk-erp/sitedesk/internal/masterdata/suppliers"
	"github.com/sitedesk-erp/sitedesk/internal/notify"
	"github.com/sitedesk-erp/sitedesk/internal/platform/cache"
	"github.com/sitedesk-erp/sitedesk/internal/platform/db"
	"github.com/sitedesk-erp/sitedesk/internal/procure"
	"github.com/sitedesk-erp/sitedesk/internal/users"
	"github.com/sitedesk-erp/sitedesk/jobs"
	"github.com/sitedesk-erp/sitedesk/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Run degraded: the catalog cache tolerates a dead client.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	mailer, err := mail.NewSMTP(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		logger.Error("init mailer", slog.Any("error", err))
		os.Exit(1)
	}

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	projectRepo := projects.NewRepository(pool)
	projectService := projects.NewService(projectRepo)
	projectHandler := projects.NewHandler(logger, projectService)

	supplierRepo := suppliers.NewRepository(pool)
	catalogCache := suppliers.NewCatalogCache(redisClient, cfg.CatalogCacheTTL)
	supplierService := suppliers.NewService(supplierRepo, catalogCache)
	supplierHandler := suppliers.NewHandler(logger, supplierService)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	renderer := report.NewRenderer(pdfClient)

	dispatcher := notify.NewDispatcher(renderer, mailer, queue, cfg.FinanceEmail, logger)

	refs := &app.References{
		Projects:  projectService,
		Suppliers: supplierService,
		Users:     usersService,
	}
	procureRepo := procure.NewRepository(pool)
	procureService := procure.NewService(procureRepo, refs, dispatcher, logger)
	procureHandler := procure.NewHandler(logger, procureService)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		UsersService:    usersService,
		ProcureHandler:  procureHandler,
		SupplierHandler: supplierHandler,
		ProjectHandler:  projectHandler,
		UsersHandler:    usersHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
