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
	Scheduler SchedulerConfig `json:"scheduler"`
	Google    GoogleConfig    `json:"google"`
	Cache     CacheConfig     `json:"cache"`
	Metrics   MetricsConfig   `json:"metrics"`
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
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// DSN builds the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type SchedulerConfig struct {
	SyncInterval     time.Duration `json:"sync_interval"`
	CampaignInterval time.Duration `json:"campaign_interval"`
	DriftDetection   bool          `json:"drift_detection"`
	LogPath          string        `json:"log_path"`
	LogMaxSizeMB     int           `json:"log_max_size_mb"`
	LogMaxBackups    int           `json:"log_max_backups"`
	LogMaxAgeDays    int           `json:"log_max_age_days"`
}

type GoogleConfig struct {
	CredentialsFile string        `json:"credentials_file"`
	APIBaseURL      string        `json:"api_base_url"`
	RequestTimeout  time.Duration `json:"request_timeout"`
}

type CacheConfig struct {
	RedisEnabled  bool          `json:"redis_enabled"`
	RedisHost     string        `json:"redis_host"`
	RedisPort     int           `json:"redis_port"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
	RenderTTL     time.Duration `json:"render_ttl"`
}

// Addr returns the host:port pair for the Redis client
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "clearsign"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Scheduler: SchedulerConfig{
			SyncInterval:     getEnvDuration("SCHEDULER_SYNC_INTERVAL", 5*time.Minute),
			CampaignInterval: getEnvDuration("SCHEDULER_CAMPAIGN_INTERVAL", 1*time.Minute),
			DriftDetection:   getEnvBool("SCHEDULER_DRIFT_DETECTION", false),
			LogPath:          getEnvString("SCHEDULER_LOG_PATH", "data/scheduler.log"),
			LogMaxSizeMB:     getEnvInt("SCHEDULER_LOG_MAX_SIZE_MB", 50),
			LogMaxBackups:    getEnvInt("SCHEDULER_LOG_MAX_BACKUPS", 5),
			LogMaxAgeDays:    getEnvInt("SCHEDULER_LOG_MAX_AGE_DAYS", 30),
		},
		Google: GoogleConfig{
			CredentialsFile: getEnvString("GOOGLE_CREDENTIALS_FILE", ""),
			APIBaseURL:      getEnvString("GOOGLE_API_BASE_URL", "https://gmail.googleapis.com"),
			RequestTimeout:  getEnvDuration("GOOGLE_REQUEST_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
			RedisHost:     getEnvString("REDIS_HOST", "localhost"),
			RedisPort:     getEnvInt("REDIS_PORT", 6379),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RenderTTL:     getEnvDuration("REDIS_RENDER_TTL", 15*time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Host:    getEnvString("METRICS_HOST", "0.0.0.0"),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "text"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateProductionConfig rejects configurations that cannot run
func ValidateProductionConfig(cfg *ProductionConfig) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Scheduler.SyncInterval <= 0 {
		return fmt.Errorf("scheduler sync interval must be positive")
	}
	if cfg.Scheduler.CampaignInterval <= 0 {
		return fmt.Errorf("scheduler campaign interval must be positive")
	}
	if cfg.Google.APIBaseURL == "" {
		return fmt.Errorf("google api base url is required")
	}
	if cfg.Cache.RedisEnabled && cfg.Cache.RedisHost == "" {
		return fmt.Errorf("redis host is required when redis is enabled")
	}
	return nil
}

// loadEnvFile loads key=value pairs from a .env file when one exists,
// without overriding variables already set in the environment
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}
	return scanner.Err()
}

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
