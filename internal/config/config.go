// Package config loads server configuration from YAML with environment
// overrides.
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

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                string   `yaml:"port"`
	LogLevel            string   `yaml:"logLevel"`
	DatabaseURL         string   `yaml:"databaseURL"`
	RedisAddr           string   `yaml:"redisAddr"`
	RedisPassword       string   `yaml:"redisPassword"`
	JWTSecret           string   `yaml:"jwtSecret"`
	KeyEncryptionSecret string   `yaml:"keyEncryptionSecret"`
	UploadDir           string   `yaml:"uploadDir"`
	MaxUploadBytes      int64    `yaml:"maxUploadBytes"`
	TrustedProxyCIDRs   []string `yaml:"trustedProxyCidrs"`

	SignupRateLimitPerMinute int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute  int `yaml:"loginRateLimitPerMinute"`

	RetrySweepInterval string `yaml:"retrySweepInterval"`
	RetryCooldown      string `yaml:"retryCooldown"`
	RetryMaxAttempts   int    `yaml:"retryMaxAttempts"`
	RetryBatchSize     int    `yaml:"retryBatchSize"`
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
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
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
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("KEY_ENCRYPTION_SECRET"); v != "" {
		cfg.KeyEncryptionSecret = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("SIGNUP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignupRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("RETRY_SWEEP_INTERVAL"); v != "" {
		cfg.RetrySweepInterval = strings.TrimSpace(v)
	}
	if v := os.Getenv("RETRY_COOLDOWN"); v != "" {
		cfg.RetryCooldown = strings.TrimSpace(v)
	}
	if v := os.Getenv("RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryMaxAttempts = n
		}
	}
	if v := os.Getenv("RETRY_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryBatchSize = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.RetrySweepInterval == "" {
		cfg.RetrySweepInterval = "2m"
	}
	if cfg.RetryCooldown == "" {
		cfg.RetryCooldown = "5m"
	}
	if cfg.RetryMaxAttempts == 0 {
		cfg.RetryMaxAttempts = 3
	}
	if cfg.RetryBatchSize == 0 {
		cfg.RetryBatchSize = 10
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	if len(cfg.KeyEncryptionSecret) < 32 {
		return errors.New("config: keyEncryptionSecret must be at least 32 bytes")
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if _, err := time.ParseDuration(cfg.RetrySweepInterval); err != nil {
		return fmt.Errorf("config: invalid retrySweepInterval: %w", err)
	}
	if _, err := time.ParseDuration(cfg.RetryCooldown); err != nil {
		return fmt.Errorf("config: invalid retryCooldown: %w", err)
	}
	if cfg.RetryMaxAttempts < 1 || cfg.RetryBatchSize < 1 {
		return errors.New("config: retryMaxAttempts and retryBatchSize must be >= 1")
	}
	return nil
}

// SweepInterval returns the parsed retry sweep interval.
func (c FileConfig) SweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.RetrySweepInterval)
	return d
}

// Cooldown returns the parsed retry cooldown.
func (c FileConfig) Cooldown() time.Duration {
	d, _ := time.ParseDuration(c.RetryCooldown)
	return d
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
