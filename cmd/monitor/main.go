package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/iEdgir01/traffic-manager/config"
	"github.com/iEdgir01/traffic-manager/ignition"
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
	if err := cfg.ValidateMonitor(); err != nil {
		log.Fatalf("Invalid monitor config: %v", err)
	}
	logger := observability.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.ConnString())
	if err != nil {
		log.Fatalf("db pool init failed: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}
	routes := store.NewPostgresStore(pool)

	cache, err := services.NewCacheService(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, continuing without locks and alert fan-out", "error", err)
	}
	defer cache.Close()

	webhook := notify.NewDiscordWebhook(cfg.Discord.WebhookURL)
	if err := webhook.Validate(); err != nil {
		log.Fatalf("Invalid Discord webhook: %v", err)
	}

	directions := traffic.NewGoogleDirections(cfg.Directions.APIKey, cfg.Directions.BaseURL, cfg.Directions.Timeout)
	classifier := traffic.NewClassifier(directions, traffic.NewThresholdRepository(routes))

	deps := services.CheckerDeps{
		Store:      routes,
		Classifier: classifier,
		Sender:     webhook,
		Cache:      cache,
		Logger:     logger,
	}
	if cfg.Maps.Enabled {
		deps.Maps = maps.NewStaticMaps(cfg.Maps.Dir, cfg.Directions.APIKey, cfg.Maps.BaseURL)
	}
	checker := services.NewChecker(services.CheckerConfig{
		Concurrency:  cfg.Checker.Concurrency,
		SegmentLimit: cfg.Checker.SegmentLimit,
		LockTTL:      cfg.Checker.LockTTL,
	}, deps)

	monitor := ignition.NewMonitor(ignition.MonitorConfig{
		Timeout:      cfg.Ignition.Timeout,
		PollInterval: cfg.Ignition.PollInterval,
		MaxEventAge:  cfg.Ignition.MaxEventAge,
		TripQueue:    cfg.Ignition.TripQueue,
	}, logger)

	msgs := make(chan ignition.Message, 64)
	sub := ignition.NewSubscriber(ignition.SubscriberConfig{
		BrokerURL:      cfg.MQTT.BrokerURL,
		Topic:          cfg.MQTT.Topic,
		ClientIDPrefix: cfg.MQTT.ClientIDPrefix,
		QoS:            byte(cfg.MQTT.QoS),
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
	}, msgs, logger)
	if err := sub.Connect(ctx); err != nil {
		log.Fatalf("mqtt connection failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		observability.StartMetricsServer(ctx, cfg.Metrics.Addr, logger)
	}()
	go func() {
		defer wg.Done()
		monitor.Run(ctx, msgs)
	}()

	logger.Info("monitor running",
		"mqtt", cfg.MQTT.BrokerURL,
		"topic", cfg.MQTT.Topic,
		"metrics", cfg.Metrics.Addr,
		"redis", cache.Available(),
		"maps", cfg.Maps.Enabled,
	)
	services.NewTripRunner(checker, cfg.Checker.ShutdownGrace, logger).Run(ctx, monitor.Trips())

	logger.Info("monitor shutting down")
	sub.Disconnect()
	wg.Wait()
}
