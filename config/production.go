// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Broker    BrokerConfig    `json:"broker"`
	Gateway   GatewayConfig   `json:"gateway"`
	Billing   BillingConfig   `json:"billing"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
}

// BrokerConfig configures the Redis Streams work distribution layer.
type BrokerConfig struct {
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	ConsumerGroup   string        `json:"consumer_group"`
	WorkersPerQueue int           `json:"workers_per_queue"`
	BlockTimeout    time.Duration `json:"block_timeout"`
	ReclaimIdle     time.Duration `json:"reclaim_idle"`
	ReclaimInterval time.Duration `json:"reclaim_interval"`
	SweepInterval   time.Duration `json:"sweep_interval"`
	MaxDeliveries   int           `json:"max_deliveries"`
}

// GatewayConfig configures the WhatsApp gateway HTTP client.
type GatewayConfig struct {
	SendTimeout   time.Duration `json:"send_timeout"`
	HealthTimeout time.Duration `json:"health_timeout"`
	MaxRetries    int           `json:"max_retries"`
	CountryCode   string        `json:"country_code"`
}

// BillingConfig carries engine-wide defaults applied when a tenant has no
// billing configuration row.
type BillingConfig struct {
	MessagesPerMinute int `json:"messages_per_minute"`
	MaxBatchContacts  int `json:"max_batch_contacts"`
	MaxVariations     int `json:"max_variations"`
}

// SchedulerConfig configures the cycle scheduler ticker.
type SchedulerConfig struct {
	Enabled       bool          `json:"enabled"`
	Interval      time.Duration `json:"interval"`
	BatchSize     int           `json:"batch_size"`
	HeartbeatIdle time.Duration `json:"heartbeat_idle"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

// LoadProductionConfig loads the full configuration from the environment,
// reading an optional .env file first.
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "billing_engine"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
		},
		Broker: BrokerConfig{
			RedisURL:        getEnvString("BROKER_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("BROKER_REDIS_DB", 0),
			ConsumerGroup:   getEnvString("BROKER_CONSUMER_GROUP", "billing-workers"),
			WorkersPerQueue: getEnvInt("BROKER_WORKERS_PER_QUEUE", 2),
			BlockTimeout:    getEnvDuration("BROKER_BLOCK_TIMEOUT", 1*time.Second),
			ReclaimIdle:     getEnvDuration("BROKER_RECLAIM_IDLE", 60*time.Second),
			ReclaimInterval: getEnvDuration("BROKER_RECLAIM_INTERVAL", 30*time.Second),
			SweepInterval:   getEnvDuration("BROKER_SWEEP_INTERVAL", 2*time.Minute),
			MaxDeliveries:   getEnvInt("BROKER_MAX_DELIVERIES", 5),
		},
		Gateway: GatewayConfig{
			SendTimeout:   getEnvDuration("GATEWAY_SEND_TIMEOUT", 10*time.Second),
			HealthTimeout: getEnvDuration("GATEWAY_HEALTH_TIMEOUT", 5*time.Second),
			MaxRetries:    getEnvInt("GATEWAY_MAX_RETRIES", 3),
			CountryCode:   getEnvString("GATEWAY_COUNTRY_CODE", "55"),
		},
		Billing: BillingConfig{
			MessagesPerMinute: getEnvInt("BILLING_MESSAGES_PER_MINUTE", 20),
			MaxBatchContacts:  getEnvInt("BILLING_MAX_BATCH_CONTACTS", 100),
			MaxVariations:     getEnvInt("BILLING_MAX_VARIATIONS", 5),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getEnvBool("SCHEDULER_ENABLED", true),
			Interval:      getEnvDuration("SCHEDULER_INTERVAL", 1*time.Minute),
			BatchSize:     getEnvInt("SCHEDULER_BATCH_SIZE", 100),
			HeartbeatIdle: getEnvDuration("SCHEDULER_HEARTBEAT_IDLE", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			FilePath:   getEnvString("LOG_FILE_PATH", "data/engine.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateProductionConfig checks the loaded configuration for values the
// engine cannot run with.
func ValidateProductionConfig(cfg *ProductionConfig) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Broker.RedisURL == "" {
		return fmt.Errorf("broker redis url is required")
	}
	if cfg.Broker.WorkersPerQueue <= 0 {
		return fmt.Errorf("workers per queue must be positive")
	}
	if cfg.Broker.MaxDeliveries <= 0 {
		return fmt.Errorf("max deliveries must be positive")
	}
	if cfg.Gateway.MaxRetries <= 0 {
		return fmt.Errorf("gateway max retries must be positive")
	}
	if cfg.Billing.MessagesPerMinute <= 0 {
		return fmt.Errorf("messages per minute must be positive")
	}
	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	return nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
