// Package config loads application settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting the service needs.
type Config struct {
	// Storage
	DatabasePath string `mapstructure:"database_path"`

	// Redis (cache + notifications)
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// Auth
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"`

	// Cache TTLs
	TaskListCacheTTL time.Duration `mapstructure:"task_list_cache_ttl"`
	ReportCacheTTL   time.Duration `mapstructure:"report_cache_ttl"`
	NotificationTTL  time.Duration `mapstructure:"notification_ttl"`

	// Attachments
	AllowedExtensions string `mapstructure:"allowed_extensions"`
	MaxFileSize       int64  `mapstructure:"max_file_size"`
	MaxFilesPerTask   int    `mapstructure:"max_files_per_task"`

	// Server
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`
	LogFile    string `mapstructure:"log_file"`
}

// Load reads settings from the environment (TASKDECK_* variables) after
// merging an optional .env file. Missing values fall back to defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TASKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_path", ".taskdeck")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("access_token_expiry", 7*24*time.Hour)
	v.SetDefault("task_list_cache_ttl", 60*time.Second)
	v.SetDefault("report_cache_ttl", 120*time.Second)
	v.SetDefault("notification_ttl", 7*24*time.Hour)
	v.SetDefault("allowed_extensions", "pdf,docx,xlsx,png,jpg,jpeg,zip")
	v.SetDefault("max_file_size", int64(5*1024*1024))
	v.SetDefault("max_files_per_task", 3)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	// Bind explicitly so AutomaticEnv sees keys that are never Set().
	for _, key := range []string{
		"database_path", "redis_addr", "redis_password", "redis_db",
		"jwt_secret", "access_token_expiry",
		"task_list_cache_ttl", "report_cache_ttl", "notification_ttl",
		"allowed_extensions", "max_file_size", "max_files_per_task",
		"listen_addr", "log_level", "log_file",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the settings are usable before anything connects.
func (c *Config) Validate() error {
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if c.MaxFilesPerTask <= 0 {
		return fmt.Errorf("max_files_per_task must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warning", "warn", "error":
	default:
		return fmt.Errorf("log_level %q not one of debug, info, warning, error", c.LogLevel)
	}
	return nil
}

// AllowedExtensionList splits the comma-separated extension setting.
func (c *Config) AllowedExtensionList() []string {
	parts := strings.Split(c.AllowedExtensions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Default returns the built-in configuration, used by tests and the CLI
// when no environment is present.
func Default() *Config {
	return &Config{
		DatabasePath:      ".taskdeck",
		RedisAddr:         "localhost:6379",
		AccessTokenExpiry: 7 * 24 * time.Hour,
		TaskListCacheTTL:  60 * time.Second,
		ReportCacheTTL:    120 * time.Second,
		NotificationTTL:   7 * 24 * time.Hour,
		AllowedExtensions: "pdf,docx,xlsx,png,jpg,jpeg,zip",
		MaxFileSize:       5 * 1024 * 1024,
		MaxFilesPerTask:   3,
		ListenAddr:        ":8080",
		LogLevel:          "info",
	}
}
