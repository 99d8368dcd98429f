package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"LOG_LEVEL", "SERVER_PORT", "METRICS_ADDR",
	"DB_DSN", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"REDIS_URL", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
	"MQTT_URL", "MQTT_TOPIC", "MQTT_CLIENT_ID", "MQTT_QOS", "MQTT_USERNAME", "MQTT_PASSWORD",
	"IGNITION_TIMEOUT", "IGNITION_POLL_MS", "IGNITION_MAX_EVENT_AGE", "TRIP_QUEUE_SIZE",
	"GOOGLE_MAPS_API_KEY", "DIRECTIONS_BASE_URL", "DIRECTIONS_TIMEOUT",
	"DISCORD_WEBHOOK_URL", "MAPS_ENABLED", "MAPS_DIR", "STATIC_MAPS_BASE_URL",
	"CHECK_CONCURRENCY", "SEGMENT_SUMMARY_LIMIT", "SHUTDOWN_GRACE", "ROUTE_LOCK_TTL",
	"JWT_SECRET", "JWT_EXPIRY_HOURS", "AUTH_ALLOW_REGISTER", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	"CORS_ALLOWED_ORIGINS",
}

func clearEnv() {
	for _, key := range configKeys {
		os.Unsetenv(key)
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "traffic",
		Password: "secret",
		Name:     "traffic",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=traffic password=secret dbname=traffic sslmode=disable"
	if dsn := db.GetDSN(); dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
	if cs := db.ConnString(); cs != expected {
		t.Errorf("ConnString() = %q, want %q", cs, expected)
	}

	db.DSN = "postgres://u:p@db:5432/traffic"
	if cs := db.ConnString(); cs != db.DSN {
		t.Errorf("ConnString() = %q, want explicit DSN", cs)
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Run("fallback when unset", func(t *testing.T) {
		os.Unsetenv("TEST_INT_VAR")
		got, err := getIntEnv("TEST_INT_VAR", 8080)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 8080 {
			t.Errorf("getIntEnv() = %d, want %d", got, 8080)
		}
	})

	t.Run("error on invalid int", func(t *testing.T) {
		os.Setenv("TEST_INT_VAR", "not_int")
		defer os.Unsetenv("TEST_INT_VAR")
		if _, err := getIntEnv("TEST_INT_VAR", 8080); err == nil {
			t.Error("expected error for invalid int value")
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Ignition.Timeout != 60*time.Second {
		t.Errorf("Ignition.Timeout = %v, want 60s", cfg.Ignition.Timeout)
	}
	if cfg.Ignition.PollInterval != time.Second {
		t.Errorf("Ignition.PollInterval = %v, want 1s", cfg.Ignition.PollInterval)
	}
	if cfg.Ignition.MaxEventAge != 300*time.Second {
		t.Errorf("Ignition.MaxEventAge = %v, want 300s", cfg.Ignition.MaxEventAge)
	}
	if cfg.Checker.Concurrency != 4 || cfg.Checker.SegmentLimit != 4 {
		t.Errorf("Checker = %+v", cfg.Checker)
	}
	if cfg.Checker.ShutdownGrace != 5*time.Second {
		t.Errorf("Checker.ShutdownGrace = %v, want 5s", cfg.Checker.ShutdownGrace)
	}
	if cfg.JWT.ExpiryHours != 24 {
		t.Errorf("JWT.ExpiryHours = %d, want 24", cfg.JWT.ExpiryHours)
	}
	if cfg.Redis.Port != 6379 || cfg.Redis.Enabled() {
		t.Errorf("Redis = %+v, want port 6379 and disabled", cfg.Redis)
	}
	if cfg.CORS.AllowedOrigins != "*" {
		t.Errorf("CORS.AllowedOrigins = %q, want %q", cfg.CORS.AllowedOrigins, "*")
	}
	if !cfg.Maps.Enabled || cfg.Auth.AllowRegister {
		t.Errorf("Maps.Enabled = %v, Auth.AllowRegister = %v", cfg.Maps.Enabled, cfg.Auth.AllowRegister)
	}
}

func TestLoadConfigCustom(t *testing.T) {
	clearEnv()
	os.Setenv("IGNITION_TIMEOUT", "90")
	os.Setenv("REDIS_URL", "redis://cache:6379/1")
	os.Setenv("AUTH_ALLOW_REGISTER", "true")
	os.Setenv("CHECK_CONCURRENCY", "8")
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Ignition.Timeout != 90*time.Second {
		t.Errorf("Ignition.Timeout = %v, want 90s", cfg.Ignition.Timeout)
	}
	if !cfg.Redis.Enabled() {
		t.Error("Redis should be enabled when REDIS_URL is set")
	}
	if !cfg.Auth.AllowRegister {
		t.Error("Auth.AllowRegister = false, want true")
	}
	if cfg.Checker.Concurrency != 8 {
		t.Errorf("Checker.Concurrency = %d, want 8", cfg.Checker.Concurrency)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVER_PORT", "invalid")
	os.Setenv("MAPS_ENABLED", "sometimes")
	defer clearEnv()

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error for invalid values")
	}
	for _, key := range []string{"SERVER_PORT", "MAPS_ENABLED"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidateMonitor(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateMonitor()
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, key := range []string{"MQTT_URL", "MQTT_TOPIC", "GOOGLE_MAPS_API_KEY", "DISCORD_WEBHOOK_URL"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}

	cfg.MQTT = MQTTConfig{BrokerURL: "tcp://broker:1883", Topic: "car/ignition"}
	cfg.Directions.APIKey = "key"
	cfg.Discord.WebhookURL = "https://discord.example/hook"
	if err := cfg.ValidateMonitor(); err != nil {
		t.Errorf("ValidateMonitor() = %v", err)
	}

	cfg.MQTT.QoS = 3
	if err := cfg.ValidateMonitor(); err == nil {
		t.Error("expected error for QoS 3")
	}
}

func TestValidateAPI(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateAPI(); err == nil {
		t.Fatal("expected error for empty config")
	}
	cfg.JWT.Secret = "s"
	cfg.Directions.APIKey = "k"
	if err := cfg.ValidateAPI(); err != nil {
		t.Errorf("ValidateAPI() = %v", err)
	}
}
