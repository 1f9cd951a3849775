package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Durability levels accepted by QUEUE_DURABILITY.
const (
	DurabilityNone    = "none"
	DurabilityPartial = "partial"
	DurabilityFull    = "full"
)

// Commit backends accepted by BACKEND_KIND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	App      AppConfig
	Queue    QueueConfig
	Retry    RetryConfig
	Backend  BackendConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	API      APIConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Name        string
	Environment string
	Port        string
	Debug       bool
}

// QueueConfig describes where and how queued transactions are persisted.
type QueueConfig struct {
	Dir         string
	ID          string
	Durability  string
	AtomicWrite bool
	Sync        bool

	CommitTimeout   time.Duration
	MonitorInterval time.Duration
	WarnDepth       int
}

// RetryConfig controls how failed commits are retried.
// Zero values mean unbounded retries without delay.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// BackendConfig selects the system transactions are committed to.
type BackendConfig struct {
	Kind        string
	RedisPrefix string
	Table       string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxIdle  int
	MaxOpen  int
	MaxLife  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// AuthConfig holds authentication related configuration
type AuthConfig struct {
	AccessSecret   string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
}

// APIConfig holds API configuration
type APIConfig struct {
	TimeoutSeconds  int
	ShutdownTimeout time.Duration
	MaxRequestSize  int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "txqueue"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Debug:       getEnvBool("APP_DEBUG", false),
		},
		Queue: QueueConfig{
			Dir:         getEnv("QUEUE_DIR", "./data/queue"),
			ID:          getEnv("QUEUE_ID", "transactions"),
			Durability:  strings.ToLower(getEnv("QUEUE_DURABILITY", DurabilityFull)),
			AtomicWrite: getEnvBool("QUEUE_ATOMIC_WRITE", false),
			Sync:        getEnvBool("QUEUE_SYNC", false),

			CommitTimeout:   getEnvDuration("QUEUE_COMMIT_TIMEOUT", 10*time.Second),
			MonitorInterval: getEnvDuration("QUEUE_MONITOR_INTERVAL", 30*time.Second),
			WarnDepth:       getEnvInt("QUEUE_WARN_DEPTH", 10000),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 0),
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 0),
			MaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		},
		Backend: BackendConfig{
			Kind:        strings.ToLower(getEnv("BACKEND_KIND", BackendMemory)),
			RedisPrefix: getEnv("BACKEND_REDIS_PREFIX", "txqueue"),
			Table:       getEnv("BACKEND_TABLE", "committed_transactions"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "txqueue"),
			User:     getEnv("DB_USER", "txqueue"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxIdle:  getEnvInt("DB_MAX_IDLE", 2),
			MaxOpen:  getEnvInt("DB_MAX_OPEN", 4),
			MaxLife:  getEnvDuration("DB_MAX_LIFE", time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 4),
		},
		Auth: AuthConfig{
			AccessSecret:   getEnv("AUTH_ACCESS_SECRET", ""),
			Issuer:         getEnv("AUTH_ISSUER", "txqueue"),
			Audience:       getEnv("AUTH_AUDIENCE", "txqueue-producers"),
			AccessTokenTTL: getEnvDuration("AUTH_ACCESS_TTL", 24*time.Hour),
		},
		API: APIConfig{
			TimeoutSeconds:  getEnvInt("API_TIMEOUT", 30),
			ShutdownTimeout: getEnvDuration("API_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxRequestSize:  getEnvInt64("API_MAX_REQUEST_SIZE", 64*1024),
		},
	}

	return config, nil
}

// GetDSN returns database connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// GetRedisAddr returns Redis connection address
func (r *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// IsDevelopment returns true if environment is development
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if environment is production
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates configuration
func (c *Config) Validate() error {
	switch c.Queue.Durability {
	case DurabilityNone, DurabilityPartial, DurabilityFull:
	default:
		return fmt.Errorf("unknown queue durability %q", c.Queue.Durability)
	}
	if c.Queue.Durability != DurabilityNone {
		if c.Queue.Dir == "" {
			return fmt.Errorf("queue directory is required")
		}
		if c.Queue.ID == "" || strings.ContainsAny(c.Queue.ID, `/\`) {
			return fmt.Errorf("queue id %q is invalid", c.Queue.ID)
		}
	}

	switch c.Backend.Kind {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("database host, name and user are required")
		}
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}

	if c.Queue.CommitTimeout < 0 || c.Queue.WarnDepth < 0 {
		return fmt.Errorf("queue commit timeout and warn depth must not be negative")
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max attempts must be >= 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}

	if c.Auth.AccessSecret == "" && c.App.IsProduction() {
		return fmt.Errorf("auth access secret must be set in production")
	}

	return nil
}

// Print prints configuration (excluding sensitive data)
func (c *Config) Print() {
	fmt.Printf("=== Configuration ===\n")
	fmt.Printf("App Name: %s\n", c.App.Name)
	fmt.Printf("Environment: %s\n", c.App.Environment)
	fmt.Printf("Port: %s\n", c.App.Port)
	fmt.Printf("Queue: %s (%s, durability=%s)\n", c.Queue.Dir, c.Queue.ID, c.Queue.Durability)
	fmt.Printf("Retry: max=%d base=%v max_delay=%v\n", c.Retry.MaxAttempts, c.Retry.BaseDelay, c.Retry.MaxDelay)
	fmt.Printf("Backend: %s\n", c.Backend.Kind)
	fmt.Printf("====================\n")
}
