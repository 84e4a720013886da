package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration. Values come from built-in defaults,
// then an optional YAML file, then environment variables.
type Config struct {
	HTTPAddr         string         `yaml:"http_addr"`
	DatabaseURL      string         `yaml:"database_url"`
	Redis            RedisConfig    `yaml:"redis"`
	SessionSecret    string         `yaml:"session_secret"`
	JWTSecret        string         `yaml:"jwt_secret"`
	JWTTTL           time.Duration  `yaml:"jwt_ttl"`
	Timezone         string         `yaml:"timezone"`
	CORSOrigins      []string       `yaml:"cors_origins"`
	SecureCookies    bool           `yaml:"secure_cookies"`
	Firebase         FirebaseConfig `yaml:"firebase"`
	Telegram         TelegramConfig `yaml:"telegram"`
	LogLevel         string         `yaml:"log_level"`
	ExportResultDays int            `yaml:"export_result_days"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

// Enabled reports whether enough is configured to create a Firebase app.
func (f FirebaseConfig) Enabled() bool {
	return f.CredentialsFile != "" || f.ProjectID != ""
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// Defaults returns a Config with every optional field populated.
func Defaults() *Config {
	return &Config{
		HTTPAddr:         DefaultHTTPAddr,
		Redis:            RedisConfig{URL: "localhost:6379"},
		JWTTTL:           DefaultJWTTTL,
		Timezone:         DefaultTimezone,
		CORSOrigins:      []string{"*"},
		LogLevel:         "info",
		ExportResultDays: DefaultExportResultDays,
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// missing file at a non-empty path is an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.SessionSecret, "SESSION_SECRET")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.Timezone, "TIMEZONE")
	setString(&c.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS")
	setString(&c.Firebase.ProjectID, "FIREBASE_PROJECT_ID")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Redis.DB = n
	}

	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_TTL %q: %w", v, err)
		}
		c.JWTTTL = d
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}

	if v := os.Getenv("EXPORT_RESULT_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid EXPORT_RESULT_DAYS %q: %w", v, err)
		}
		c.ExportResultDays = n
	}

	if v := os.Getenv("SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SECURE_COOKIES %q: %w", v, err)
		}
		c.SecureCookies = b
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}

	return nil
}

// Validate checks what every command needs.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ExportResultDays < 1 {
		return fmt.Errorf("export_result_days must be at least 1, got %d", c.ExportResultDays)
	}
	return nil
}

// ValidateServe checks the secrets the HTTP server needs on top of Validate.
func (c *Config) ValidateServe() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

// AllowsAnyOrigin reports whether CORS is open to every origin. An empty
// list counts as open, which is how go-chi/cors treats it.
func (c *Config) AllowsAnyOrigin() bool {
	if len(c.CORSOrigins) == 0 {
		return true
	}
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Location resolves the configured market timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
