package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	FromEmail    string `yaml:"from_email" env:"FROM"`
}

type TelegramConfig struct {
	Token         string  `yaml:"token" env:"TOKEN"`
	Endpoint      string  `yaml:"endpoint" env:"ENDPOINT"`
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	WebhookSecret string  `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
}

type NotificationsConfig struct {
	QueueSize      int  `yaml:"queue_size" env:"QUEUE_SIZE"`
	Retries        uint `yaml:"retries" env:"RETRIES"`
	RetryDelayMs   int  `yaml:"retry_delay_ms" env:"RETRY_DELAY_MS"`
	TimeoutSeconds int  `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

type Config struct {
	Env   string `yaml:"env" env:"ENV"`
	Store string `yaml:"store" env:"STORE"` // postgres | memory

	Log struct {
		File       string `yaml:"file" env:"FILE"`
		MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
		MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	} `yaml:"log" envPrefix:"LOG_"`
	Server struct {
		Port int `yaml:"port" env:"PORT"`
	} `yaml:"server" envPrefix:"SERVER_"`
	Database struct {
		DSN         string `yaml:"url" env:"URL"`
		AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	} `yaml:"database" envPrefix:"DATABASE_"`
	JWT struct {
		Secret string `yaml:"secret" env:"SECRET"`
	} `yaml:"jwt" envPrefix:"JWT_"`
	Email         EmailConfig         `yaml:"email" envPrefix:"EMAIL_"`
	Telegram      TelegramConfig      `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Notifications NotificationsConfig `yaml:"notifications" envPrefix:"NOTIFICATIONS_"`
	Report        struct {
		FontPath string `yaml:"font_path" env:"FONT_PATH"`
	} `yaml:"report" envPrefix:"REPORT_"`
	Tracing struct {
		Enabled bool   `yaml:"enabled" env:"ENABLED"`
		Output  string `yaml:"output" env:"OUTPUT"`
	} `yaml:"tracing" envPrefix:"TRACING_"`
}

// LoadConfig reads the yaml file at path (a missing file is fine when
// allowMissing is set), then applies CF_* environment overrides and defaults.
func LoadConfig(path string, allowMissing bool) (*Config, error) {
	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && allowMissing:
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "CF_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "local"
	}
	if cfg.Store == "" {
		cfg.Store = "postgres"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Telegram.RatePerSecond <= 0 {
		cfg.Telegram.RatePerSecond = 25
	}
	if cfg.Notifications.QueueSize <= 0 {
		cfg.Notifications.QueueSize = 256
	}
	if cfg.Notifications.Retries == 0 {
		cfg.Notifications.Retries = 3
	}
	if cfg.Notifications.RetryDelayMs <= 0 {
		cfg.Notifications.RetryDelayMs = 500
	}
	if cfg.Notifications.TimeoutSeconds <= 0 {
		cfg.Notifications.TimeoutSeconds = 30
	}
}
