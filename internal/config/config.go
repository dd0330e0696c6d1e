// Package config содержит логику чтения конфигурации сервиса начислений.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultRunAddress = "localhost:8080"
	DefaultAdminPass  = "adminpass"
	DefaultLanguage   = "en"
	DefaultQueueSize  = 256
	DefaultChatRate   = 1.0

	// ChatBurst ограничивает число команд подряд от одного чата без ожидания.
	ChatBurst = 5
)

// Config содержит параметры конфигурации сервиса начислений.
type Config struct {
	RunAddress      string  `env:"RUN_ADDRESS"`
	DatabaseURI     string  `env:"DATABASE_URI"`
	TelegramToken   string  `env:"TELEGRAM_TOKEN"`
	AdminChatID     int64   `env:"ADMIN_ID"`
	AdminPass       string  `env:"ADMIN_PASS"`
	BotUsername     string  `env:"BOT_USERNAME"`
	NotifyLanguage  string  `env:"NOTIFY_LANGUAGE"`
	NotifyQueueSize int     `env:"NOTIFY_QUEUE_SIZE"`
	ChatRateLimit   float64 `env:"CHAT_RATE_LIMIT"`
}

// UsesDefaultAdminPass сообщает, что секрет администратора не был изменён.
func (c *Config) UsesDefaultAdminPass() bool {
	return c.AdminPass == DefaultAdminPass
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	fromEnv := &Config{}
	if err := env.Parse(fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", DefaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty for in-memory store")
	flag.StringVar(&cfg.TelegramToken, "t", "", "telegram bot token")
	flag.Int64Var(&cfg.AdminChatID, "admin-id", 0, "admin chat id for alerts and /stats")
	flag.StringVar(&cfg.AdminPass, "k", DefaultAdminPass, "admin API secret")
	flag.StringVar(&cfg.BotUsername, "bot-username", "", "bot username for referral links")
	flag.StringVar(&cfg.NotifyLanguage, "lang", DefaultLanguage, "notification language (en, bn)")
	flag.IntVar(&cfg.NotifyQueueSize, "queue", DefaultQueueSize, "notification queue capacity")
	flag.Float64Var(&cfg.ChatRateLimit, "chat-rps", DefaultChatRate, "chat commands per second per chat, 0 disables")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.TelegramToken != "" {
		cfg.TelegramToken = fromEnv.TelegramToken
	}
	if fromEnv.AdminChatID != 0 {
		cfg.AdminChatID = fromEnv.AdminChatID
	}
	if fromEnv.AdminPass != "" {
		cfg.AdminPass = fromEnv.AdminPass
	}
	if fromEnv.BotUsername != "" {
		cfg.BotUsername = fromEnv.BotUsername
	}
	if fromEnv.NotifyLanguage != "" {
		cfg.NotifyLanguage = fromEnv.NotifyLanguage
	}
	if fromEnv.NotifyQueueSize != 0 {
		cfg.NotifyQueueSize = fromEnv.NotifyQueueSize
	}
	if _, ok := os.LookupEnv("CHAT_RATE_LIMIT"); ok {
		cfg.ChatRateLimit = fromEnv.ChatRateLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = DefaultRunAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.NotifyLanguage {
	case "en", "bn":
	default:
		return fmt.Errorf("unsupported notification language %q", c.NotifyLanguage)
	}
	if c.NotifyQueueSize <= 0 {
		return errors.New("notification queue size must be positive")
	}
	if c.ChatRateLimit < 0 {
		return errors.New("chat rate limit must not be negative")
	}
	if c.AdminPass == "" {
		return errors.New("admin secret must not be empty")
	}
	return nil
}
