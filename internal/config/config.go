package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment       string `yaml:"env" validate:"required"`
	HTTPAddr          string `yaml:"http_addr" validate:"required"`
	DBDSN             string `yaml:"db_dsn" validate:"required_unless=StoreDriver memory"`
	StoreDriver       string `yaml:"store_driver" validate:"oneof=postgres memory"`
	MigrationsEnabled bool   `yaml:"migrations_enabled"`
	SchoolTimezone    string `yaml:"school_timezone" validate:"required"`

	TelegramToken     string `yaml:"telegram_token"`
	SendGridAPIKey    string `yaml:"sendgrid_api_key"`
	SendGridFromEmail string `yaml:"sendgrid_from_email" validate:"required_with=SendGridAPIKey"`
	SendGridFromName  string `yaml:"sendgrid_from_name"`

	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" validate:"gt=0"`

	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange" validate:"required_with=AMQPURL"`

	NotifyTimeout            time.Duration `yaml:"notify_timeout" validate:"gt=0"`
	SlotGenerationInterval   time.Duration `yaml:"slot_generation_interval" validate:"gt=0"`
	SlotGenerationWeeksAhead int           `yaml:"slot_generation_weeks_ahead" validate:"gte=0,lte=52"`
	ReminderInterval         time.Duration `yaml:"reminder_interval" validate:"gt=0"`
	ReminderWindow           time.Duration `yaml:"reminder_window" validate:"gt=0"`

	location *time.Location
}

func defaults() Config {
	return Config{
		Environment:              "development",
		HTTPAddr:                 ":8080",
		StoreDriver:              StoreDriverPostgres,
		MigrationsEnabled:        true,
		SchoolTimezone:           "UTC",
		SendGridFromName:         "Riding School",
		IdempotencyTTL:           24 * time.Hour,
		AMQPExchange:             "stable_booking.events",
		NotifyTimeout:            10 * time.Second,
		SlotGenerationInterval:   24 * time.Hour,
		SlotGenerationWeeksAhead: 4,
		ReminderInterval:         15 * time.Minute,
		ReminderWindow:           24 * time.Hour,
	}
}

// Load собирает конфигурацию: значения по умолчанию, YAML из CONFIG_FILE,
// затем переменные окружения (включая .env)
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.SchoolTimezone)
	if err != nil {
		return nil, fmt.Errorf("SCHOOL_TIMEZONE: %w", err)
	}
	cfg.location = loc

	return &cfg, nil
}

// Location returns the school time zone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) applyEnv() error {
	setString(&c.Environment, "ENV")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.DBDSN, "DB_DSN")
	setString(&c.StoreDriver, "STORE_DRIVER")
	setString(&c.SchoolTimezone, "SCHOOL_TIMEZONE")
	setString(&c.TelegramToken, "TELEGRAM_TOKEN")
	setString(&c.SendGridAPIKey, "SENDGRID_API_KEY")
	setString(&c.SendGridFromEmail, "SENDGRID_FROM_EMAIL")
	setString(&c.SendGridFromName, "SENDGRID_FROM_NAME")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.AMQPURL, "AMQP_URL")
	setString(&c.AMQPExchange, "AMQP_EXCHANGE")

	if err := setBool(&c.MigrationsEnabled, "MIGRATIONS_ENABLED"); err != nil {
		return err
	}
	if err := setInt(&c.SlotGenerationWeeksAhead, "SLOT_GENERATION_WEEKS_AHEAD"); err != nil {
		return err
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.IdempotencyTTL, "IDEMPOTENCY_TTL"},
		{&c.NotifyTimeout, "NOTIFY_TIMEOUT"},
		{&c.SlotGenerationInterval, "SLOT_GENERATION_INTERVAL"},
		{&c.ReminderInterval, "REMINDER_INTERVAL"},
		{&c.ReminderWindow, "REMINDER_WINDOW"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
