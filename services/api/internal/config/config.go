package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, overridable with TERMFOLIO_CONFIG.
var ConfigPath = defaultConfigPath()

func defaultConfigPath() string {
	if v := os.Getenv("TERMFOLIO_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`

	RateLimitWindow      string `yaml:"rateLimitWindow"`
	RateLimitMaxRequests int    `yaml:"rateLimitMaxRequests"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	AssetsDir      string `yaml:"assetsDir"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	AdminPasswordHash string `yaml:"adminPasswordHash"`
	AdminTokenSecret  string `yaml:"adminTokenSecret"`
	AdminTokenTTL     string `yaml:"adminTokenTTL"`

	AnalyticsRetentionDays int    `yaml:"analyticsRetentionDays"`
	JobTimeout             string `yaml:"jobTimeout"`
	SchedulerEnabled       *bool  `yaml:"schedulerEnabled"`
	RetryWorkers           int    `yaml:"retryWorkers"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("APP_VERSION"); v != "" {
		cfg.Version = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		cfg.RateLimitWindow = v
	}
	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitMaxRequests = n
		}
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("ASSETS_DIR"); v != "" {
		cfg.AssetsDir = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.AdminPasswordHash = v
	}
	if v := os.Getenv("ADMIN_TOKEN_SECRET"); v != "" {
		cfg.AdminTokenSecret = v
	}
	if v := os.Getenv("ANALYTICS_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AnalyticsRetentionDays = n
		}
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		enabled := v == "true" || v == "1"
		cfg.SchedulerEnabled = &enabled
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.RateLimitWindow == "" {
		cfg.RateLimitWindow = "15m"
	}
	if cfg.RateLimitMaxRequests == 0 {
		cfg.RateLimitMaxRequests = 100
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "termfolio.events"
	}
	if cfg.AnalyticsRetentionDays == 0 {
		cfg.AnalyticsRetentionDays = 365
	}
	if cfg.RetryWorkers == 0 {
		cfg.RetryWorkers = 2
	}
}

// SchedulerOn reports whether background jobs should run in this process.
func (c FileConfig) SchedulerOn() bool {
	return c.SchedulerEnabled == nil || *c.SchedulerEnabled
}

// AdminEnabled reports whether the admin api can issue tokens.
func (c FileConfig) AdminEnabled() bool {
	return c.AdminPasswordHash != "" && c.AdminTokenSecret != ""
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RateLimitMaxRequests < 0 {
		return errors.New("config: rateLimitMaxRequests must be positive")
	}
	if _, err := ParseDuration("rateLimitWindow", cfg.RateLimitWindow); err != nil {
		return err
	}
	if _, err := ParseDuration("adminTokenTTL", cfg.AdminTokenTTL); err != nil {
		return err
	}
	if _, err := ParseDuration("jobTimeout", cfg.JobTimeout); err != nil {
		return err
	}
	if cfg.AnalyticsRetentionDays < 1 {
		return errors.New("config: analyticsRetentionDays must be at least 1")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minioAccessKey, minioSecretKey and minioBucket are required when minioEndpoint is set")
	}
	if cfg.AdminTokenSecret != "" && len(cfg.AdminTokenSecret) < 32 {
		return errors.New("config: adminTokenSecret must be at least 32 characters")
	}
	if (cfg.AdminPasswordHash == "") != (cfg.AdminTokenSecret == "") {
		return errors.New("config: adminPasswordHash and adminTokenSecret must be set together")
	}
	return nil
}

// ParseDuration parses an optional duration string; empty yields zero.
func ParseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must not be negative", field)
	}
	return dur, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
