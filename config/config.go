package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel   string
	Server     ServerConfig
	Metrics    MetricsConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	MQTT       MQTTConfig
	Ignition   IgnitionConfig
	Directions DirectionsConfig
	Discord    DiscordConfig
	Maps       MapsConfig
	Checker    CheckerConfig
	JWT        JWTConfig
	Auth       AuthConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port int
}

type MetricsConfig struct {
	Addr string
}

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnString prefers an explicit DB_DSN over the individual settings.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return d.GetDSN()
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

type MQTTConfig struct {
	BrokerURL      string
	Topic          string
	ClientIDPrefix string
	QoS            int
	Username       string
	Password       string
}

type IgnitionConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
	MaxEventAge  time.Duration
	TripQueue    int
}

type DirectionsConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type DiscordConfig struct {
	WebhookURL string
}

type MapsConfig struct {
	Enabled bool
	Dir     string
	BaseURL string
}

type CheckerConfig struct {
	Concurrency   int
	SegmentLimit  int
	ShutdownGrace time.Duration
	LockTTL       time.Duration
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type AuthConfig struct {
	AllowRegister bool
	AdminEmail    string
	AdminPassword string
}

type CORSConfig struct {
	AllowedOrigins string
}

func LoadConfig() (*Config, error) {
	var errs []error
	intEnv := func(key string, fallback int) int {
		v, err := getIntEnv(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	secondsEnv := func(key string, fallback int) time.Duration {
		return time.Duration(intEnv(key, fallback)) * time.Second
	}
	boolEnv := func(key string, fallback bool) bool {
		v, err := getBoolEnv(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port: intEnv("SERVER_PORT", 8080),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     intEnv("DB_PORT", 5432),
			User:     getEnv("DB_USER", "traffic"),
			Password: getEnv("DB_PASSWORD", "traffic_dev_password"),
			Name:     getEnv("DB_NAME", "traffic"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Host:     getEnv("REDIS_HOST", ""),
			Port:     intEnv("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intEnv("REDIS_DB", 0),
		},
		MQTT: MQTTConfig{
			BrokerURL:      getEnv("MQTT_URL", ""),
			Topic:          getEnv("MQTT_TOPIC", ""),
			ClientIDPrefix: getEnv("MQTT_CLIENT_ID", "traffic-monitor"),
			QoS:            intEnv("MQTT_QOS", 0),
			Username:       getEnv("MQTT_USERNAME", ""),
			Password:       getEnv("MQTT_PASSWORD", ""),
		},
		Ignition: IgnitionConfig{
			Timeout:      secondsEnv("IGNITION_TIMEOUT", 60),
			PollInterval: time.Duration(intEnv("IGNITION_POLL_MS", 1000)) * time.Millisecond,
			MaxEventAge:  secondsEnv("IGNITION_MAX_EVENT_AGE", 300),
			TripQueue:    intEnv("TRIP_QUEUE_SIZE", 4),
		},
		Directions: DirectionsConfig{
			APIKey:  getEnv("GOOGLE_MAPS_API_KEY", ""),
			BaseURL: getEnv("DIRECTIONS_BASE_URL", ""),
			Timeout: secondsEnv("DIRECTIONS_TIMEOUT", 15),
		},
		Discord: DiscordConfig{
			WebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
		Maps: MapsConfig{
			Enabled: boolEnv("MAPS_ENABLED", true),
			Dir:     getEnv("MAPS_DIR", "maps"),
			BaseURL: getEnv("STATIC_MAPS_BASE_URL", ""),
		},
		Checker: CheckerConfig{
			Concurrency:   intEnv("CHECK_CONCURRENCY", 4),
			SegmentLimit:  intEnv("SEGMENT_SUMMARY_LIMIT", 4),
			ShutdownGrace: secondsEnv("SHUTDOWN_GRACE", 5),
			LockTTL:       secondsEnv("ROUTE_LOCK_TTL", 60),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpiryHours: intEnv("JWT_EXPIRY_HOURS", 24),
		},
		Auth: AuthConfig{
			AllowRegister: boolEnv("AUTH_ALLOW_REGISTER", false),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateMonitor checks what the ignition monitor needs to start.
func (c *Config) ValidateMonitor() error {
	var missing []string
	if c.MQTT.BrokerURL == "" {
		missing = append(missing, "MQTT_URL")
	}
	if c.MQTT.Topic == "" {
		missing = append(missing, "MQTT_TOPIC")
	}
	if c.Directions.APIKey == "" {
		missing = append(missing, "GOOGLE_MAPS_API_KEY")
	}
	if c.Discord.WebhookURL == "" {
		missing = append(missing, "DISCORD_WEBHOOK_URL")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return missingErr(missing)
}

func (c *Config) ValidateAPI() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Directions.APIKey == "" {
		missing = append(missing, "GOOGLE_MAPS_API_KEY")
	}
	return missingErr(missing)
}

func missingErr(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return fmt.Errorf("missing required configuration: %s", strings.Join(keys, ", "))
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}
