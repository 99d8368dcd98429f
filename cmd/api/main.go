package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/iEdgir01/traffic-manager/config"
	"github.com/iEdgir01/traffic-manager/handlers"
	"github.com/iEdgir01/traffic-manager/maps"
	"github.com/iEdgir01/traffic-manager/notify"
	"github.com/iEdgir01/traffic-manager/observability"
	"github.com/iEdgir01/traffic-manager/services"
	"github.com/iEdgir01/traffic-manager/store"
	"github.com/iEdgir01/traffic-manager/traffic"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("Invalid API config: %v", err)
	}
	logger := observability.NewLogger(cfg.LogLevel)
	if observability.ParseLevel(cfg.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.Database.ConnString()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	routes := store.NewGormStore(db)
	if err := routes.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	authService := services.NewAuthService(cfg.JWT)
	created, err := authService.BootstrapAdmin(ctx, db, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to bootstrap admin: %v", err)
	}
	if created {
		logger.Info("admin account created", "email", cfg.Auth.AdminEmail)
	}

	cache, err := services.NewCacheService(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", "error", err)
	}
	defer cache.Close()

	directions := traffic.NewGoogleDirections(cfg.Directions.APIKey, cfg.Directions.BaseURL, cfg.Directions.Timeout)
	thresholds := traffic.NewThresholdRepository(routes)

	deps := services.CheckerDeps{
		Store:      routes,
		Classifier: traffic.NewClassifier(directions, thresholds),
		Cache:      cache,
		Logger:     logger,
	}
	if cfg.Discord.WebhookURL != "" {
		webhook := notify.NewDiscordWebhook(cfg.Discord.WebhookURL)
		if err := webhook.Validate(); err != nil {
			log.Fatalf("Invalid Discord webhook: %v", err)
		}
		deps.Sender = webhook
	}
	var remover handlers.MapRemover
	if cfg.Maps.Enabled {
		staticMaps := maps.NewStaticMaps(cfg.Maps.Dir, cfg.Directions.APIKey, cfg.Maps.BaseURL)
		deps.Maps = staticMaps
		remover = staticMaps
	}
	checker := services.NewChecker(services.CheckerConfig{
		Concurrency:  cfg.Checker.Concurrency,
		SegmentLimit: cfg.Checker.SegmentLimit,
		LockTTL:      cfg.Checker.LockTTL,
	}, deps)

	router := handlers.NewRouter(handlers.RouterDeps{
		Auth:       authService,
		Cache:      cache,
		CORS:       cfg.CORS,
		Logger:     logger,
		Users:      handlers.NewAuthHandler(db, authService, cfg.Auth.AllowRegister),
		Routes:     handlers.NewRouteHandler(routes, cache, remover, logger),
		Checks:     handlers.NewCheckHandler(checker, logger),
		Thresholds: handlers.NewThresholdHandler(thresholds, logger),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Checker.ShutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown incomplete", "error", err)
		}
	}()

	logger.Info("starting server", "addr", server.Addr, "redis", cache.Available(), "discord", deps.Sender != nil)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
