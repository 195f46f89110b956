package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig
	MongoDB        MongoDBConfig
	JWT            JWTConfig
	Momo           MomoConfig
	Reconciliation ReconciliationConfig
	Poller         PollerConfig
	LogLevel       string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	AllowedHosts []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int
}

// MomoConfig holds mobile-money gateway configuration
type MomoConfig struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	WebhookSecret string
	MockAPI       bool
}

// ReconciliationConfig holds background-sweep configuration
type ReconciliationConfig struct {
	MaxAge             time.Duration
	BatchLimit         int
	PacingDelay        time.Duration
	MaxSweepsPerMinute int
	MaxSweepsPerHour   int
}

// PollerConfig holds client status-poller configuration
type PollerConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxDuration  time.Duration
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Unmarshal configuration
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// AutomaticEnv cannot map nested keys onto underscore-style variable
	// names, so those are read explicitly on top of the unmarshalled values.
	applyEnvOverrides(&config)

	return &config, nil
}

func applyEnvOverrides(c *Config) {
	c.MongoDB.URI = GetEnv("MONGODB_URI", c.MongoDB.URI)
	c.MongoDB.Database = GetEnv("MONGODB_DATABASE", c.MongoDB.Database)
	c.JWT.Secret = GetEnv("JWT_SECRET", c.JWT.Secret)
	c.Momo.BaseURL = GetEnv("MOMO_BASE_URL", c.Momo.BaseURL)
	c.Momo.APIKey = GetEnv("MOMO_API_KEY", c.Momo.APIKey)
	c.Momo.APISecret = GetEnv("MOMO_API_SECRET", c.Momo.APISecret)
	c.Momo.WebhookSecret = GetEnv("MOMO_WEBHOOK_SECRET", c.Momo.WebhookSecret)
	c.Momo.MockAPI = GetEnvAsBool("MOMO_MOCK_API", c.Momo.MockAPI)
	c.Reconciliation.MaxAge = GetEnvAsDuration("RECONCILIATION_MAX_AGE", c.Reconciliation.MaxAge)
	c.Reconciliation.BatchLimit = GetEnvAsInt("RECONCILIATION_BATCH_LIMIT", c.Reconciliation.BatchLimit)
	c.Reconciliation.PacingDelay = GetEnvAsDuration("RECONCILIATION_PACING_DELAY", c.Reconciliation.PacingDelay)
	c.Reconciliation.MaxSweepsPerMinute = GetEnvAsInt("RECONCILIATION_MAX_SWEEPS_PER_MINUTE", c.Reconciliation.MaxSweepsPerMinute)
	c.Reconciliation.MaxSweepsPerHour = GetEnvAsInt("RECONCILIATION_MAX_SWEEPS_PER_HOUR", c.Reconciliation.MaxSweepsPerHour)
	c.Poller.InitialDelay = GetEnvAsDuration("POLLER_INITIAL_DELAY", c.Poller.InitialDelay)
	c.Poller.Interval = GetEnvAsDuration("POLLER_INTERVAL", c.Poller.Interval)
	c.Poller.MaxDuration = GetEnvAsDuration("POLLER_MAX_DURATION", c.Poller.MaxDuration)
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("Server.Port", "4000")
	viper.SetDefault("Server.AllowedHosts", []string{"localhost:3000"})
	viper.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	viper.SetDefault("MongoDB.Database", "lottoplay")
	viper.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	viper.SetDefault("LogLevel", "info")
	viper.SetDefault("Momo.MockAPI", true)
	viper.SetDefault("Reconciliation.MaxAge", 5*time.Minute)
	viper.SetDefault("Reconciliation.BatchLimit", 20)
	viper.SetDefault("Reconciliation.PacingDelay", 500*time.Millisecond)
	viper.SetDefault("Reconciliation.MaxSweepsPerMinute", 10)
	viper.SetDefault("Reconciliation.MaxSweepsPerHour", 100)
	viper.SetDefault("Poller.InitialDelay", 2*time.Second)
	viper.SetDefault("Poller.Interval", 5*time.Second)
	viper.SetDefault("Poller.MaxDuration", 2*time.Minute)
}
