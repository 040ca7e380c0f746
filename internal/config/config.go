// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Leagues   LeaguesConfig   `mapstructure:"leagues"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AdminConfig lists external identifiers granted the admin role at registration.
type AdminConfig struct {
	Identifiers []string `mapstructure:"identifiers"`
}

// RewardsConfig contains reward catalog settings.
type RewardsConfig struct {
	CatalogFile string `mapstructure:"catalog_file"` // YAML seed file for the predefined catalog
}

// LeaguesConfig contains the weekly league tier ladder and ranking settings.
type LeaguesConfig struct {
	WeekStart string       `mapstructure:"week_start"` // Weekday the ranking week begins on
	Timezone  string       `mapstructure:"timezone"`
	CacheTTL  int          `mapstructure:"cache_ttl"` // Standing cache TTL in seconds
	Tiers     []TierConfig `mapstructure:"tiers"`
}

// TierConfig is one league tier. MaxCoins of -1 marks the open-ended top tier.
type TierConfig struct {
	Name     string `mapstructure:"name"`
	MinCoins int    `mapstructure:"min_coins"`
	MaxCoins int    `mapstructure:"max_coins"`
	Prize    string `mapstructure:"prize"`
}

// NotifierConfig contains webhook notification settings.
type NotifierConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// SchedulerConfig contains background job scheduling settings.
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ReminderTime  string `mapstructure:"reminder_time"`  // HH:MM daily pending-completion digest
	ReconcileTime string `mapstructure:"reconcile_time"` // Cron expression for progress reconciliation
	Timezone      string `mapstructure:"timezone"`
	SkipWeekends  bool   `mapstructure:"skip_weekends"`
}

// MetricsConfig contains metrics exporter settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/karma-server/")
	}

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("leagues.week_start", "Monday")
	v.SetDefault("leagues.timezone", "UTC")
	v.SetDefault("leagues.cache_ttl", 60)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	// Bind specific environment variables (explicit bindings for 12-factor app compliance)
	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")

	// Notifier configuration
	_ = v.BindEnv("notifier.webhook_url", "NOTIFIER_WEBHOOK_URL")
	_ = v.BindEnv("notifier.channel", "NOTIFIER_CHANNEL")
	_ = v.BindEnv("notifier.enabled", "NOTIFIER_ENABLED")

	// Rewards configuration
	_ = v.BindEnv("rewards.catalog_file", "REWARDS_CATALOG_FILE")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.reminder_time", "SCHEDULER_REMINDER_TIME")
	_ = v.BindEnv("scheduler.reconcile_time", "SCHEDULER_RECONCILE_TIME")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")
	_ = v.BindEnv("scheduler.skip_weekends", "SCHEDULER_SKIP_WEEKENDS")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}
	if _, err := c.Leagues.WeekStartDay(); err != nil {
		return err
	}
	return c.Leagues.ValidateTiers()
}

// WeekStartDay parses the configured weekday the ranking week begins on.
func (c *LeaguesConfig) WeekStartDay() (time.Weekday, error) {
	days := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	day, ok := days[strings.ToLower(c.WeekStart)]
	if !ok {
		return 0, fmt.Errorf("invalid leagues.week_start: %q", c.WeekStart)
	}
	return day, nil
}

// GetLocation returns the timezone location of the league week boundary.
func (c *LeaguesConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ValidateTiers checks that the tier ladder is sorted ascending, contiguous,
// starts at zero, and that only the last tier is open-ended. These properties
// make the tier lookup for any weekly score unique.
func (c *LeaguesConfig) ValidateTiers() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("at least one league tier must be configured")
	}
	if c.Tiers[0].MinCoins != 0 {
		return fmt.Errorf("first league tier must start at 0, got %d", c.Tiers[0].MinCoins)
	}
	for i, tier := range c.Tiers {
		if i == len(c.Tiers)-1 {
			if tier.MaxCoins != -1 {
				return fmt.Errorf("top league tier %q must be open-ended (max_coins: -1)", tier.Name)
			}
			continue
		}
		if tier.MaxCoins < tier.MinCoins {
			return fmt.Errorf("league tier %q has max_coins below min_coins", tier.Name)
		}
		if c.Tiers[i+1].MinCoins != tier.MaxCoins+1 {
			return fmt.Errorf("league tiers %q and %q are not contiguous", tier.Name, c.Tiers[i+1].Name)
		}
	}
	return nil
}

// IsAdminIdentifier reports whether an external identifier is configured as admin.
func (c *AdminConfig) IsAdminIdentifier(externalID string) bool {
	for _, id := range c.Identifiers {
		if id == externalID {
			return true
		}
	}
	return false
}

// GetLocation returns the scheduler timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
