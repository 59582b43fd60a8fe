package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashdesk-watcher/internal/adminsync"
	"cashdesk-watcher/internal/config"
	"cashdesk-watcher/internal/gateway"
	"cashdesk-watcher/internal/models"
	"cashdesk-watcher/internal/notifier"
	"cashdesk-watcher/internal/repository"
	"cashdesk-watcher/internal/routes"
	"cashdesk-watcher/internal/services/mailwatch"
	"cashdesk-watcher/internal/services/reconciliation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("logger init failed:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	db, err := config.InitDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.DepositRequest{},
		&models.ReconcileAuditLog{},
		&models.HealthRecord{},
		&models.WatcherSetting{},
		&models.Requisite{},
		&models.UserProfile{},
	); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	requestRepo := repository.NewDepositRequestRepository(db)
	profileRepo := repository.NewUserProfileRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	requisiteRepo := repository.NewRequisiteRepository(db)
	recorder := repository.NewRecorder(db, logger)

	gw := gateway.NewClient(cfg.CashdeskBaseURL, cfg.CashdeskAPIKey, logger)
	mirror := adminsync.NewClient(cfg.AdminBaseURL, cfg.AdminAPIKey, logger)

	var notify reconciliation.Notifier
	if cfg.TelegramToken != "" {
		tg, err := notifier.NewTelegram(cfg.TelegramToken, logger)
		if err != nil {
			logger.Warn("telegram bot unavailable, notifications disabled", zap.Error(err))
			notify = notifier.NewNoop(logger)
		} else {
			notify = tg
		}
	} else {
		notify = notifier.NewNoop(logger)
	}

	recon := reconciliation.NewService(
		requestRepo, profileRepo, gw, notify, mirror, recorder, cfg.DefaultBank, logger)

	loader := mailwatch.NewSettingsLoader(settingsRepo, requisiteRepo)
	watcher := mailwatch.New(loader, recon, recorder, logger)
	watcher.Start()

	sched := cron.New()
	if _, err := sched.AddFunc("@every 5m", func() {
		recon.RetryStalled(context.Background())
	}); err != nil {
		logger.Fatal("sweep schedule failed", zap.Error(err))
	}
	sched.Start()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(r, db, recon, logger)

	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	<-sched.Stop().Done()
	if err := watcher.Stop(ctx); err != nil {
		logger.Warn("watcher did not stop cleanly", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
}
