package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EAK_SERVER_PORT
const EnvPrefix = "EAK"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	EAK      EAKConfig      `mapstructure:"eak"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// EAKConfig holds the sync settings shared by every company
type EAKConfig struct {
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	PartnerBatchSize      int           `mapstructure:"partner_batch_size"`
	AttachmentBatchSize   int           `mapstructure:"attachment_batch_size"`
	VendorBillInterval    time.Duration `mapstructure:"vendor_bill_interval"`
	PartnerStatusInterval time.Duration `mapstructure:"partner_status_interval"`
	AttachmentInterval    time.Duration `mapstructure:"attachment_interval"`
	// RunTimeout bounds one scheduled run over all companies
	RunTimeout           time.Duration `mapstructure:"run_timeout"`
	UnmatchedProductCode string        `mapstructure:"unmatched_product_code"`
	WorkersEnabled       bool          `mapstructure:"workers_enabled"`
}

// StorageConfig holds file storage configuration
type StorageConfig struct {
	// BaseDir holds fetched bill PDFs and exported invoice XML
	BaseDir string `mapstructure:"base_dir"`
}

// SecretsConfig controls how company auth references are resolved
type SecretsConfig struct {
	AWSEnabled bool          `mapstructure:"aws_enabled"`
	AWSRegion  string        `mapstructure:"aws_region"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// Load loads configuration from an optional YAML file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/eak.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// eAK defaults
	v.SetDefault("eak.request_timeout", 60*time.Second)
	v.SetDefault("eak.partner_batch_size", 100)
	v.SetDefault("eak.attachment_batch_size", 10)
	v.SetDefault("eak.vendor_bill_interval", time.Hour)
	v.SetDefault("eak.partner_status_interval", 24*time.Hour)
	v.SetDefault("eak.attachment_interval", 30*time.Minute)
	v.SetDefault("eak.run_timeout", 30*time.Minute)
	v.SetDefault("eak.unmatched_product_code", "EAK-UNMATCHED")
	v.SetDefault("eak.workers_enabled", true)

	// Storage defaults
	v.SetDefault("storage.base_dir", "data/files")

	// Secrets defaults
	v.SetDefault("secrets.aws_enabled", false)
	v.SetDefault("secrets.cache_ttl", time.Hour)
}

// bindEnvVars binds environment variables that do not follow the EAK_ prefix scheme
func bindEnvVars(v *viper.Viper) error {
	return errors.Join(
		v.BindEnv("secrets.aws_region", "EAK_SECRETS_AWS_REGION", "AWS_REGION"),
		v.BindEnv("logger.level", "EAK_LOGGER_LEVEL", "LOG_LEVEL"),
	)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	if c.EAK.RequestTimeout <= 0 {
		return fmt.Errorf("eak.request_timeout must be positive")
	}
	if c.EAK.PartnerBatchSize <= 0 || c.EAK.PartnerBatchSize > 100 {
		return fmt.Errorf("eak.partner_batch_size must be between 1 and 100")
	}
	if c.EAK.AttachmentBatchSize <= 0 {
		return fmt.Errorf("eak.attachment_batch_size must be positive")
	}
	if c.EAK.UnmatchedProductCode == "" {
		return fmt.Errorf("eak.unmatched_product_code is required")
	}
	if c.EAK.WorkersEnabled {
		if c.EAK.VendorBillInterval <= 0 || c.EAK.PartnerStatusInterval <= 0 || c.EAK.AttachmentInterval <= 0 {
			return fmt.Errorf("eak worker intervals must be positive")
		}
	}

	if c.Secrets.AWSEnabled && c.Secrets.AWSRegion == "" {
		return fmt.Errorf("secrets.aws_region is required when secrets.aws_enabled is set")
	}

	return nil
}
