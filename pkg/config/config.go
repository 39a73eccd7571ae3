package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	GRPCPort    int    `yaml:"grpc_port"`
	HTTPPort    int    `yaml:"http_port"`
	APIGRPCAddr string `yaml:"api_grpc_addr"`

	DatabaseURL    string        `yaml:"database_url"`
	DBQueryTimeout time.Duration `yaml:"db_query_timeout"`
	// MigrationsDir, when set, is applied to the database at startup.
	MigrationsDir string `yaml:"migrations_dir"`
	// CatalogSeedFile is a YAML product list loaded into the in-memory
	// catalog when DatabaseURL is empty.
	CatalogSeedFile string `yaml:"catalog_seed_file"`

	CheckoutSessionTTL    time.Duration `yaml:"checkout_session_ttl"`
	CheckoutMaxConcurrent int           `yaml:"checkout_max_concurrent"`

	PaymentTimeout    time.Duration `yaml:"payment_timeout"`
	PaymentConfigFile string        `yaml:"payment_config_file"`

	RabbitMQURL       string `yaml:"rabbitmq_url"`
	NotificationQueue string `yaml:"notification_queue"`

	KafkaBrokers       string        `yaml:"kafka_brokers"`
	KafkaTopic         string        `yaml:"kafka_topic"`
	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
}

// Load reads the environment. When CONFIG_FILE points at a YAML file its
// values are applied first and environment variables still win.
func Load() Config {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			// config is loaded before the logger exists
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg
}

func defaults() Config {
	return Config{
		AppEnv:                "dev",
		LogLevel:              "info",
		HTTPPort:              8080,
		GRPCPort:              8081,
		APIGRPCAddr:           "localhost:8081",
		DBQueryTimeout:        5 * time.Second,
		CheckoutSessionTTL:    15 * time.Minute,
		CheckoutMaxConcurrent: 10,
		PaymentTimeout:        30 * time.Second,
		NotificationQueue:     "notifications",
		KafkaTopic:            "orders.events",
		OutboxPollInterval:    2 * time.Second,
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = getEnvInt("GRPC_PORT", cfg.GRPCPort)
	cfg.APIGRPCAddr = getEnv("API_GRPC_ADDR", cfg.APIGRPCAddr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBQueryTimeout = getEnvDuration("DB_QUERY_TIMEOUT", cfg.DBQueryTimeout)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.CatalogSeedFile = getEnv("CATALOG_SEED_FILE", cfg.CatalogSeedFile)
	cfg.CheckoutSessionTTL = getEnvDuration("CHECKOUT_SESSION_TTL", cfg.CheckoutSessionTTL)
	cfg.CheckoutMaxConcurrent = getEnvInt("CHECKOUT_MAX_CONCURRENT", cfg.CheckoutMaxConcurrent)
	cfg.PaymentTimeout = getEnvDuration("PAYMENT_TIMEOUT", cfg.PaymentTimeout)
	cfg.PaymentConfigFile = getEnv("PAYMENT_CONFIG_FILE", cfg.PaymentConfigFile)
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.NotificationQueue = getEnv("NOTIFICATION_QUEUE", cfg.NotificationQueue)
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.OutboxPollInterval = getEnvDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
