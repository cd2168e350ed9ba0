package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Order        OrderConfig
	Commission   CommissionConfig
	Notification NotificationConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	S3           S3Config
	Cloudinary   CloudinaryConfig
	LocalStorage LocalStorageConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration. JWTSecret verifies actor
// tokens issued by the identity provider; this service never issues them.
type AuthConfig struct {
	APIKey    string
	JWTSecret string
}

// OrderConfig holds checkout fees applied to every order.
type OrderConfig struct {
	ShippingCost decimal.Decimal
	AdminFee     decimal.Decimal
}

// CommissionConfig holds the referral commission rate, in percent of the
// order subtotal.
type CommissionConfig struct {
	Percentage decimal.Decimal
}

// NotificationConfig holds notification history bounds.
type NotificationConfig struct {
	Store            string // "memory" or "redis"
	HistoryLimit     int
	HistoryTTL       time.Duration
	ToastLimit       int
	PruneInterval    time.Duration
	SubscriberBuffer int
}

// RedisConfig holds Redis connection settings for the shared notification store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// KafkaConfig holds event transport settings. When disabled, events are
// delivered in-process.
type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	Topic      string
	GroupID    string
	InstanceID string
}

// OutboxConfig holds relay polling settings.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// S3Config holds AWS S3 configuration for payment proof images.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "payment-proofs/")
}

// CloudinaryConfig holds Cloudinary configuration for payment proof images.
type CloudinaryConfig struct {
	Enabled   bool
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// LocalStorageConfig holds the on-disk fallback for payment proof images.
type LocalStorageConfig struct {
	Dir     string
	BaseURL string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	hostname, _ := os.Hostname()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey:    getEnv("API_KEY", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Order: OrderConfig{
			ShippingCost: getEnvAsDecimal("ORDER_SHIPPING_COST", decimal.NewFromInt(10000)),
			AdminFee:     getEnvAsDecimal("ORDER_ADMIN_FEE", decimal.NewFromInt(2000)),
		},
		Commission: CommissionConfig{
			Percentage: getEnvAsDecimal("COMMISSION_PERCENTAGE", decimal.NewFromInt(5)),
		},
		Notification: NotificationConfig{
			Store:            getEnv("NOTIFICATION_STORE", "memory"),
			HistoryLimit:     getEnvAsInt("NOTIFICATION_HISTORY_LIMIT", 50),
			HistoryTTL:       getEnvAsDuration("NOTIFICATION_HISTORY_TTL", 7*24*time.Hour),
			ToastLimit:       getEnvAsInt("NOTIFICATION_TOAST_LIMIT", 3),
			PruneInterval:    getEnvAsDuration("NOTIFICATION_PRUNE_INTERVAL", time.Hour),
			SubscriberBuffer: getEnvAsInt("NOTIFICATION_SUBSCRIBER_BUFFER", 16),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "notif"),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:    getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:      getEnv("KAFKA_TOPIC", "storefront.order-events"),
			GroupID:    getEnv("KAFKA_GROUP_ID", "storefront-fanout"),
			InstanceID: getEnv("INSTANCE_ID", hostname),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
			BatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "ap-southeast-1"),
			Prefix:  getEnv("S3_PREFIX", "payment-proofs/"),
		},
		Cloudinary: CloudinaryConfig{
			Enabled:   getEnvAsBool("CLOUDINARY_ENABLED", false),
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "payment-proofs"),
		},
		LocalStorage: LocalStorageConfig{
			Dir:     getEnv("PROOF_LOCAL_DIR", "./data/payment-proofs"),
			BaseURL: getEnv("PROOF_BASE_URL", "/files/payment-proofs"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Order.ShippingCost.IsNegative() || c.Order.AdminFee.IsNegative() {
		return fmt.Errorf("order fees cannot be negative")
	}

	if c.Commission.Percentage.IsNegative() || c.Commission.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("invalid commission percentage: %s (must be between 0 and 100)", c.Commission.Percentage)
	}

	if c.Notification.Store != "memory" && c.Notification.Store != "redis" {
		return fmt.Errorf("invalid notification store: %s (must be memory or redis)", c.Notification.Store)
	}

	if c.Notification.HistoryLimit < 1 || c.Notification.ToastLimit < 1 {
		return fmt.Errorf("notification history and toast limits must be at least 1")
	}

	if c.Notification.HistoryTTL <= 0 || c.Notification.PruneInterval <= 0 {
		return fmt.Errorf("notification TTL and prune interval must be positive")
	}

	if c.Notification.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when notification store is redis")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox batch size must be at least 1")
	}

	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox poll interval must be positive")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Cloudinary.Enabled {
		if c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "" {
			return fmt.Errorf("cloudinary credentials are required when cloudinary is enabled")
		}
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ConsumerGroup returns the per-instance consumer group. Every instance must
// see every event to reach its own live subscribers.
func (c *KafkaConfig) ConsumerGroup() string {
	if c.InstanceID == "" {
		return c.GroupID
	}
	return c.GroupID + "-" + c.InstanceID
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration (e.g. "500ms", "168h").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsDecimal retrieves an environment variable as a decimal amount.
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma separated environment variable.
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
